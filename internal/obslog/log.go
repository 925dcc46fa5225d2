// Package obslog wires up Boruna's structured logging. Grounded on the
// teacher's log/slog usage in internal/kernel/kernel.go, which attaches
// call-site attributes (slog.Any("id", id), slog.String("name", name))
// to a single process-wide logger.
package obslog

import (
	"io"
	"log/slog"
	"os"
)

// New returns a component-scoped logger. h is used as the base handler
// when non-nil (tests pass a buffer-backed handler); production code
// passes nil to get a text handler on stderr, matching the teacher's
// default (internal/log/log.go writes to os.Stderr unless a log file
// is configured).
func New(component string, h slog.Handler) *slog.Logger {
	if h == nil {
		h = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	return slog.New(h).With(slog.String("component", component))
}

// NewJSON returns a component-scoped logger writing JSON lines to w,
// used by CLI subcommands that emit machine-readable output.
func NewJSON(component string, w io.Writer, level slog.Level) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h).With(slog.String("component", component))
}

// Discard returns a logger that drops everything; used as the default
// when a component is constructed without an explicit logger.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
