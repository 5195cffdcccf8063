package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

const (
	LOG_LEVEL_DEBUG = "DEBUG"
	LOG_LEVEL_INFO  = "INFO"
	LOG_LEVEL_WARN  = "WARN"
	LOG_LEVEL_ERROR = "ERROR"
	LOG_LEVEL_FATAL = "FATAL"
	LOG_LEVEL_PANIC = "PANIC"
)

const logLevelEnv = "SGLOC_LOGLEVEL"

var output io.Writer = os.Stderr

func SetupLogging() {
	zerolog.LevelFieldName = "level_name"
	zerolog.TimestampFieldName = "timestamp"
}

// SetOutput redirects loggers created afterwards, mostly for tests.
func SetOutput(w io.Writer) {
	output = w
}

func ParseLevel(level string) zerolog.Level {
	switch level {
	case LOG_LEVEL_DEBUG:
		return zerolog.DebugLevel
	case LOG_LEVEL_WARN:
		return zerolog.WarnLevel
	case LOG_LEVEL_ERROR:
		return zerolog.ErrorLevel
	case LOG_LEVEL_FATAL:
		return zerolog.FatalLevel
	case LOG_LEVEL_PANIC:
		return zerolog.PanicLevel
	}
	return zerolog.InfoLevel
}

func NewLogger(component string) zerolog.Logger {
	level, ok := os.LookupEnv(logLevelEnv)
	if !ok {
		level = LOG_LEVEL_INFO
	}

	return zerolog.New(output).
		With().
		Str("component", component).
		Timestamp().
		Logger().
		Level(ParseLevel(level))
}
