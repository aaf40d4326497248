package assets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirBundle(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "model.tflite"), []byte("TFL3"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "labels.tflite"), 0o755))
	b := NewDirBundle(root)

	t.Run("ResolvesExistingFile", func(t *testing.T) {
		path, ok := b.Path("model", "tflite")
		require.True(t, ok)
		assert.True(t, filepath.IsAbs(path))
		assert.Equal(t, "model.tflite", filepath.Base(path))
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, ok := b.Path("model", "onnx")
		assert.False(t, ok)
	})

	t.Run("DirectoryIsNotAResource", func(t *testing.T) {
		_, ok := b.Path("labels", "tflite")
		assert.False(t, ok)
	})
}
