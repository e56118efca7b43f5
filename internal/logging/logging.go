// Package logging holds a process-global structured logger so every
// package can log without threading a *slog.Logger through every
// constructor.
package logging

import (
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

var global atomic.Pointer[slog.Logger]

func init() {
	global.Store(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))
}

// L returns the current global logger.
func L() *slog.Logger { return global.Load() }

// Set replaces the global logger. A nil argument is ignored.
func Set(l *slog.Logger) {
	if l != nil {
		global.Store(l)
	}
}

// New builds a standalone logger for format ("text" or "json") and level,
// writing to w (os.Stderr if nil). It does not touch the global logger;
// callers pass the result to Set themselves.
func New(format string, level slog.Leveler, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}
