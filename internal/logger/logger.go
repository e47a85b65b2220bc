package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger and adds the printf-style methods some libraries
// expect from a logger.
type Logger struct {
	*slog.Logger
}

func New(level string) *Logger {
	return NewWithFormat(os.Stdout, level, "text")
}

func NewWithFormat(w io.Writer, level, format string) *Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return &Logger{Logger: slog.New(handler)}
}

// Nop discards everything. Used by tests and CLIs that print their own output.
func Nop() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Component returns a child logger tagged with the component name.
func (l *Logger) Component(name string) *Logger {
	return &Logger{Logger: l.With("component", name)}
}

func (l *Logger) Infof(format string, args ...any) {
	l.Info(fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...any) {
	l.Error(fmt.Sprintf(format, args...))
}

// Println and Printf satisfy tgbotapi.BotLogger.
func (l *Logger) Println(v ...any) {
	l.Debug(fmt.Sprint(v...))
}

func (l *Logger) Printf(format string, v ...any) {
	l.Debug(fmt.Sprintf(format, v...))
}
