package preprocess

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestFloat32s(t *testing.T) {
	red := solid(8, 8, color.RGBA{R: 255, A: 255})

	t.Run("ChannelsLast", func(t *testing.T) {
		values, err := Float32s(red, 4, false)
		require.NoError(t, err)
		require.Len(t, values, 4*4*3)
		assert.InDelta(t, 1.0, values[0], 1e-3)
		assert.InDelta(t, 0.0, values[1], 1e-3)
		assert.InDelta(t, 0.0, values[2], 1e-3)
		assert.InDelta(t, 1.0, values[3], 1e-3)
	})

	t.Run("ChannelsFirst", func(t *testing.T) {
		values, err := Float32s(red, 4, true)
		require.NoError(t, err)
		require.Len(t, values, 4*4*3)
		for i := 0; i < 16; i++ {
			assert.InDelta(t, 1.0, values[i], 1e-3)
			assert.InDelta(t, 0.0, values[16+i], 1e-3)
		}
	})

	t.Run("InvalidSize", func(t *testing.T) {
		_, err := Float32s(red, 0, false)
		assert.Error(t, err)
	})
}

func TestDecodeAndBytes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(5, 3, color.RGBA{G: 255, A: 255})))

	img, format, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, "png", format)

	b, err := Bytes(img, 2, false)
	require.NoError(t, err)
	assert.Len(t, b, 2*2*3*4)

	_, _, err = Decode(bytes.NewReader([]byte("not an image")))
	assert.Error(t, err)
}
