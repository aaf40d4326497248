//go:build !tflite

package tflite

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Brownie44l1/tflite-handler/internal/engine"
)

func TestRegisteredWithoutInterpreter(t *testing.T) {
	f, err := engine.Lookup(Kind)
	if !assert.NoError(t, err) {
		return
	}
	e, err := f("/models/model.tflite")
	assert.Nil(t, e)
	assert.ErrorIs(t, err, ErrNotCompiled)
}
