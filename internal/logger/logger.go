// Package logger wraps log/slog with the kiosk's conventions: text output in
// development, JSON otherwise, and helpers that attach page and showtime
// attributes so every line emitted by a page instance can be correlated.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger with additional functionality
type Logger struct {
	*slog.Logger
}

// New creates a logger writing to stdout.  level is one of debug, info,
// warn or error; dev selects the human readable text handler.
func New(level string, dev bool) *Logger {
	return NewWithWriter(os.Stdout, level, dev)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level string, dev bool) *Logger {
	lvl := getLogLevel(level)
	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}
	var handler slog.Handler
	if dev {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return &Logger{Logger: slog.New(handler)}
}

// Nop returns a logger that discards everything.  Components fall back to it
// when constructed without one.
func Nop() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))}
}

// getLogLevel converts string to slog.Level
func getLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithPage adds the page instance id to logger context
func (l *Logger) WithPage(pageID string) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("page_id", pageID))}
}

// WithShowtime adds the showtime id to logger context
func (l *Logger) WithShowtime(showtimeID int64) *Logger {
	return &Logger{Logger: l.Logger.With(slog.Int64("showtime_id", showtimeID))}
}

// WithComponent tags lines with the emitting component (hold, seatmap, ...).
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("component", name))}
}

// WithError adds error to logger context
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return &Logger{Logger: l.Logger.With(slog.String("error", err.Error()))}
}

// Or returns l, or a discarding logger when l is nil.
func Or(l *Logger) *Logger {
	if l == nil {
		return Nop()
	}
	return l
}
