package mandelzoom

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler discards all log records. Enabled returns false so callers
// skip message formatting entirely, making disabled logging near free.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so SetLogger can
// be called concurrently with logging from render workers.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures logging for the package and its subpackages. The
// library is silent by default; pass nil to restore that.
//
// Levels used:
//   - [slog.LevelDebug]: per-pass progress, remote tile traffic
//   - [slog.LevelInfo]: worker connects, render cycle summaries
//   - [slog.LevelWarn]: join timeouts, compute failures, dropped workers
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current logger. Subpackages call this to share the
// configuration without an import cycle back into their callers.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
