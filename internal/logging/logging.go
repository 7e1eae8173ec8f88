// Package logging configures zerolog for the cutlog binaries.
package logging

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel   = "CUTLOG_LOG_LEVEL"
	EnvLogNoColor = "CUTLOG_LOG_NOCOLOR"
)

// Init builds the process logger: console output with env-var overrides for
// level and color. The returned logger is also installed as the zerolog
// global.
func Init(app string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
		NoColor:    envBool(EnvLogNoColor),
	}
	logger := zerolog.New(output).
		Level(envLevel(EnvLogLevel, zerolog.InfoLevel)).
		With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger
}

func envLevel(key string, fallback zerolog.Level) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off", "none":
		return zerolog.Disabled
	default:
		return fallback
	}
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return err == nil && v
}
