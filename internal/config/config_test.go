package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "8080", cfg.Port)
		assert.Equal(t, "model", cfg.ModelName)
		assert.Equal(t, "tflite", cfg.ModelExt)
		assert.Equal(t, "tflite", cfg.EngineKind)
		assert.False(t, cfg.EnginePersistent)
		assert.Equal(t, 5, cfg.TopK)
	})

	t.Run("EnvironmentOverrides", func(t *testing.T) {
		t.Setenv("PORT", "9090")
		t.Setenv("MODEL_DIR", "/srv/models")
		t.Setenv("ENGINE_KIND", "onnx")
		t.Setenv("ENGINE_PERSISTENT", "true")
		t.Setenv("ENGINE_THREADS", "4")

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "9090", cfg.Port)
		assert.Equal(t, "/srv/models", cfg.ModelDir)
		assert.Equal(t, "onnx", cfg.EngineKind)
		assert.True(t, cfg.EnginePersistent)
		assert.Equal(t, 4, cfg.EngineThreads)
	})

	t.Run("ConfigFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "handler.yaml")
		require.NoError(t, os.WriteFile(path, []byte("model_name: digits\nmodel_ext: onnx\napp_log_level: DEBUG\n"), 0o644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "digits", cfg.ModelName)
		assert.Equal(t, "onnx", cfg.ModelExt)
		assert.Equal(t, "DEBUG", cfg.LogLevel)
	})

	t.Run("MissingConfigFile", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("InvalidValues", func(t *testing.T) {
		t.Setenv("ENGINE_THREADS", "-2")
		_, err := Load("")
		assert.ErrorContains(t, err, "engine_threads")
	})
}
