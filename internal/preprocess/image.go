// Package preprocess converts images into model input bytes.
package preprocess

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/nfnt/resize"

	"github.com/Brownie44l1/tflite-handler/internal/scores"
)

const channels = 3

// Decode reads a JPEG or PNG image.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("invalid image format, supported: JPEG, PNG: %w", err)
	}
	return img, format, nil
}

// Float32s resizes img to size x size and returns its RGB channels scaled
// to [0, 1]. The layout is HWC unless channelsFirst is set, in which case it
// is CHW.
func Float32s(img image.Image, size int, channelsFirst bool) ([]float32, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid target size %d", size)
	}
	resized := resize.Resize(uint(size), uint(size), img, resize.Lanczos3)

	bounds := resized.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	plane := width * height
	inputData := make([]float32, channels*plane)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			rgb := [channels]float32{
				float32(r) / 65535.0,
				float32(g) / 65535.0,
				float32(b) / 65535.0,
			}

			pixelIndex := y*width + x
			for c, v := range rgb {
				if channelsFirst {
					inputData[c*plane+pixelIndex] = v
				} else {
					inputData[pixelIndex*channels+c] = v
				}
			}
		}
	}
	return inputData, nil
}

// Bytes is Float32s encoded as little-endian float32 input bytes.
func Bytes(img image.Image, size int, channelsFirst bool) ([]byte, error) {
	values, err := Float32s(img, size, channelsFirst)
	if err != nil {
		return nil, err
	}
	return scores.EncodeFloat32(values), nil
}
