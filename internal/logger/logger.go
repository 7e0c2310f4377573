// Package logger builds the scoped, leveled loggers shared by the transfer
// roles.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pion/logging"
)

// ParseLevel maps a level name to a pion log level. "critical" has no pion
// equivalent and is reported at error level.
func ParseLevel(name string) (logging.LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace":
		return logging.LogLevelTrace, nil
	case "debug":
		return logging.LogLevelDebug, nil
	case "", "info":
		return logging.LogLevelInfo, nil
	case "warn", "warning":
		return logging.LogLevelWarn, nil
	case "error", "critical":
		return logging.LogLevelError, nil
	case "disabled", "off":
		return logging.LogLevelDisabled, nil
	}
	return logging.LogLevelInfo, fmt.Errorf("unknown log level %q", name)
}

// New returns a logger for scope writing to w (stderr when nil). An unknown
// level falls back to info and is reported through the returned logger.
func New(scope, level string, w io.Writer) logging.LeveledLogger {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := ParseLevel(level)
	factory := &logging.DefaultLoggerFactory{
		Writer:          w,
		DefaultLogLevel: lvl,
		ScopeLevels:     map[string]logging.LogLevel{},
	}
	log := factory.NewLogger(scope)
	if err != nil {
		log.Warnf("%v, using info", err)
	}
	return log
}

// Discard is a logger that drops everything.
func Discard() logging.LeveledLogger {
	return New("discard", "disabled", io.Discard)
}
