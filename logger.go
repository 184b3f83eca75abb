package loki

import (
	"github.com/mikeplath/loki/rag"
)

// Logger is the logging interface threaded through the core.
type Logger = rag.Logger

// LogLevel represents the severity level of a log message.
type LogLevel = rag.LogLevel

// Log levels, from silent to most verbose.
const (
	LogLevelOff   = rag.LogLevelOff
	LogLevelError = rag.LogLevelError
	LogLevelWarn  = rag.LogLevelWarn
	LogLevelInfo  = rag.LogLevelInfo
	LogLevelDebug = rag.LogLevelDebug
)

// NewLogger creates the default stderr logger.
func NewLogger(level LogLevel) Logger {
	return rag.NewLogger(level)
}

// SetGlobalLogLevel controls the verbosity of the package-level default
// logger.
func SetGlobalLogLevel(level LogLevel) {
	rag.SetGlobalLogLevel(level)
}
