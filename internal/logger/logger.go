package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var applicationName = "tflite-handler"

// InitLogger sets the global level and switches to console output.
func InitLogger(level, appName string) error {
	return InitLoggerTo(os.Stdout, level, appName)
}

// InitLoggerTo is InitLogger with an explicit destination.
func InitLoggerTo(out io.Writer, level, appName string) error {
	switch strings.ToUpper(level) {
	case "DEBUG":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "INFO", "":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "WARN":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "ERROR":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "FATAL":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	case "PANIC":
		zerolog.SetGlobalLevel(zerolog.PanicLevel)
	case "DISABLED":
		zerolog.SetGlobalLevel(zerolog.Disabled)
	default:
		return fmt.Errorf("incorrect log level %s", level)
	}
	if appName != "" {
		applicationName = appName
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: out}).With().
		Timestamp().
		Str("app", applicationName).
		Logger()
	Info("Logger initialized!")
	return nil
}

func Debug(message string) {
	log.Debug().Msg(message)
}

func Info(message string) {
	log.Info().Msg(message)
}

func Warn(message string) {
	log.Warn().Msg(message)
}

func Error(message string, err error) {
	log.Error().Err(err).Msg(message)
}

// Fatal logs and exits the process.
func Fatal(message string, err error) {
	log.Fatal().Err(err).Msg(message)
}
