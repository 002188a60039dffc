package infra

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger constructs a zerolog.Logger for the service. Development gets a
// human readable console writer at debug level; everything else logs JSON.
func NewLogger(appEnv string) zerolog.Logger {
	level := zerolog.InfoLevel
	if appEnv == "development" {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Logger()

	if appEnv == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	return logger
}

// NopLogger returns a logger that drops everything. Clients fall back to it
// when no logger is injected.
func NopLogger() *Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// Logger aliases zerolog.Logger so packages can accept a logger without
// importing the third-party module directly.
type Logger = zerolog.Logger
