//go:build !tflite

package tflite

import (
	"errors"
	"fmt"

	"github.com/Brownie44l1/tflite-handler/internal/engine"
)

// ErrNotCompiled is returned when the binary was built without -tags tflite.
var ErrNotCompiled = errors.New("tflite support not compiled in (build with -tags tflite)")

func init() {
	engine.Register(Kind, func(modelPath string) (engine.Engine, error) {
		return nil, fmt.Errorf("load %s: %w", modelPath, ErrNotCompiled)
	})
}
