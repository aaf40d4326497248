package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.bin")
	require.NoError(t, os.WriteFile(input, make([]byte, 16), 0o644))

	t.Run("InputRequired", func(t *testing.T) {
		assert.Equal(t, 2, run(dir, "model", "tflite", "tflite", "", 0, "", "DISABLED"))
	})

	t.Run("UnknownEngine", func(t *testing.T) {
		assert.Equal(t, 2, run(dir, "model", "tflite", "coreml", input, 0, "", "DISABLED"))
	})

	t.Run("MissingModelFails", func(t *testing.T) {
		assert.Equal(t, 1, run(dir, "model", "tflite", "tflite", input, 0, "", "DISABLED"))
	})
}
