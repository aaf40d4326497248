// Package scores turns raw output tensor bytes into class scores and picks
// the winning class.
package scores

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/x448/float16"
)

var (
	// ErrMisaligned is returned when a buffer is not a whole number of elements.
	ErrMisaligned = errors.New("buffer length is not a multiple of the element size")
	// ErrEmpty is returned when there is nothing to rank.
	ErrEmpty = errors.New("empty score sequence")
	// ErrUnsupportedType is returned for output element types that cannot be decoded as scores.
	ErrUnsupportedType = errors.New("unsupported output element type")
)

// ElementType is the element type of an output tensor.
type ElementType int

const (
	Unknown ElementType = iota
	Float32
	Float16
)

func (t ElementType) String() string {
	switch t {
	case Float32:
		return "float32"
	case Float16:
		return "float16"
	default:
		return "unknown"
	}
}

// Ranked is a single class score.
type Ranked struct {
	Index int     `json:"index"`
	Score float32 `json:"score"`
}

// DecodeFloat32 reads b as packed little-endian float32 values.
func DecodeFloat32(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("decode float32 (%d bytes): %w", len(b), ErrMisaligned)
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4 : i*4+4]))
	}
	return out, nil
}

// EncodeFloat32 is the inverse of DecodeFloat32.
func EncodeFloat32(values []float32) []byte {
	out := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:i*4+4], math.Float32bits(v))
	}
	return out
}

// DecodeFloat16 reads b as packed little-endian IEEE half precision values.
func DecodeFloat16(b []byte) ([]float32, error) {
	if len(b)%2 != 0 {
		return nil, fmt.Errorf("decode float16 (%d bytes): %w", len(b), ErrMisaligned)
	}
	out := make([]float32, len(b)/2)
	for i := range out {
		out[i] = float16.Frombits(binary.LittleEndian.Uint16(b[i*2 : i*2+2])).Float32()
	}
	return out, nil
}

// Decode dispatches on the output element type.
func Decode(t ElementType, b []byte) ([]float32, error) {
	switch t {
	case Float32:
		return DecodeFloat32(b)
	case Float16:
		return DecodeFloat16(b)
	default:
		return nil, fmt.Errorf("decode %s: %w", t, ErrUnsupportedType)
	}
}

// Argmax returns the index of the first strict maximum: values are scanned
// in increasing index order and the best index is only replaced by a
// strictly greater value. A NaN compares false both ways, so a leading NaN
// is kept and a later NaN never replaces the best.
func Argmax(values []float32) (int, error) {
	if len(values) == 0 {
		return 0, ErrEmpty
	}
	best := 0
	for i := 1; i < len(values); i++ {
		if values[best] < values[i] {
			best = i
		}
	}
	return best, nil
}

// TopK returns the k highest scores, best first. Equal scores keep the
// lower index first.
func TopK(values []float32, k int) []Ranked {
	if k > len(values) {
		k = len(values)
	}
	if k <= 0 {
		return nil
	}
	ranked := make([]Ranked, len(values))
	for i, v := range values {
		ranked[i] = Ranked{Index: i, Score: v}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked[:k]
}
