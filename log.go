package weft

import (
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

var discardHandler = slog.NewTextHandler(io.Discard, nil)

// logger holds the package logger. Unrecognised input sequences and other
// non-fatal conditions are reported at debug level; nothing is logged at
// higher levels during normal operation.
var logger atomic.Pointer[slog.Logger]

func init() {
	if os.Getenv("WEFT_DEBUG") != "" {
		logger.Store(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	} else {
		logger.Store(slog.New(discardHandler))
	}
}

// SetLogger installs a logger for the package. Pass nil to silence it.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(discardHandler)
	}
	logger.Store(l)
}

func logDebug(msg string, args ...any) {
	logger.Load().Debug(msg, args...)
}
