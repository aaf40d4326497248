package logger

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLogger(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	t.Run("WritesAtConfiguredLevel", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, InitLoggerTo(&buf, "warn", "handler-test"))

		Info("not shown")
		Error("inference failed", errors.New("invoke: status 1"))

		out := buf.String()
		assert.NotContains(t, out, "not shown")
		assert.Contains(t, out, "inference failed")
		assert.Contains(t, out, "invoke: status 1")
		assert.Contains(t, out, "handler-test")
	})

	t.Run("RejectsUnknownLevel", func(t *testing.T) {
		var buf bytes.Buffer
		assert.Error(t, InitLoggerTo(&buf, "chatty", ""))
	})
}
