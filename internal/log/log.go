// Package log provides a leveled logging interface on top of log/slog.
// The log messages are intended to be user-facing,
// similar to the standard library's log package.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// Level specifies the level of logging.
type Level = slog.Level

// Supported log levels.
const (
	Debug = slog.LevelDebug
	Info  = slog.LevelInfo
	Error = slog.LevelError
)

// Logger is a leveled logger. The zero value is not valid; use New or
// Discard.
type Logger struct{ *slog.Logger }

// New builds a logger that writes to the given writer.
// The logger defaults to level Info.
func New(w io.Writer) *Logger {
	return &Logger{slog.New(&handler{
		W:     w,
		Level: Info,
		mu:    new(sync.Mutex),
	})}
}

// WithLevel builds a copy of this logger that logs messages at or above the
// given level.
func (l *Logger) WithLevel(lvl Level) *Logger {
	return l.withHandler(func(h *handler) { h.Level = lvl })
}

// WithColor builds a copy of this logger that highlights levels and
// messages with ANSI escape sequences.
func (l *Logger) WithColor() *Logger {
	return l.withHandler(func(h *handler) { h.Color = true })
}

// WithName builds a new logger with the provided name. The returned logger is
// safe to use concurrently with this logger.
func (l *Logger) WithName(name string) *Logger {
	return l.withHandler(func(h *handler) {
		if len(h.name) > 0 {
			h.name += "."
		}
		h.name += name
	})
}

func (l *Logger) withHandler(f func(*handler)) *Logger {
	h, ok := l.Handler().(*handler)
	if !ok {
		return l
	}
	out := *h
	f(&out)
	return &Logger{slog.New(&out)}
}

// Level reports the minimum level at which this logger records messages.
func (l *Logger) Level() Level {
	if h, ok := l.Handler().(*handler); ok {
		return h.Level
	}
	return Error + 1
}

// Log logs a printf-style message at the given level.
// Trailing newlines are dropped.
func (l *Logger) Log(lvl Level, format string, args ...any) {
	ctx := context.Background()
	if !l.Enabled(ctx, lvl) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.Logger.Log(ctx, lvl, strings.TrimRight(msg, "\n"))
}

// Debugf logs a message at the Debug level.
func (l *Logger) Debugf(format string, args ...any) {
	l.Log(Debug, format, args...)
}

// Infof logs a message at the Info level.
func (l *Logger) Infof(format string, args ...any) {
	l.Log(Info, format, args...)
}

// Errorf logs a message at the Error level.
func (l *Logger) Errorf(format string, args ...any) {
	l.Log(Error, format, args...)
}
