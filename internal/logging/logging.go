// Package logging wraps zerolog into a small structured logger used by
// every internal package. It keeps the teacher's terse, tag-first style
// (main.go and execution_service.go prefix every line with a short emoji
// tag: "🐋 WHALE", "⚠️ TrendAnalyzer") but carries the tag as zerolog's
// `component` field and emits JSON instead of Printf strings, so the
// BOOK_CHECK/EXIT_DECISION/EXIT_ORDER_SUBMIT/EXIT_ORDER_RESULT lines spec.md
// §7 calls for are greppable and machine-parseable.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the engine's structured logger, scoped to one component.
type Logger struct {
	zl zerolog.Logger
}

// New builds a root logger writing JSON to w (os.Stdout in production,
// a buffer in tests). component becomes every line's "component" field,
// the structured analogue of the teacher's emoji tag prefix.
func New(w io.Writer, component string) *Logger {
	if w == nil {
		w = os.Stdout
	}
	zl := zerolog.New(w).With().Timestamp().Str("component", component).Logger()
	return &Logger{zl: zl}
}

// NewConsole builds a human-readable console logger for local/dev runs,
// matching the teacher's stdout-friendly habits without giving up
// structure for anything emitted through Event/Fields.
func NewConsole(component string) *Logger {
	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	zl := zerolog.New(cw).With().Timestamp().Str("component", component).Logger()
	return &Logger{zl: zl}
}

// With returns a child logger scoped to a sub-component, e.g.
// log.With("hedgepolicy") used from within the execution engine.
func (l *Logger) With(subComponent string) *Logger {
	return &Logger{zl: l.zl.With().Str("sub", subComponent).Logger()}
}

// Event emits one of the engine's structured decision-log lines (spec.md
// §7): BOOK_CHECK, EXIT_DECISION, EXIT_ORDER_SUBMIT, EXIT_ORDER_RESULT, and
// similar. fields become top-level JSON keys alongside "event".
func (l *Logger) Event(event string, fields map[string]any) {
	e := l.zl.Info().Str("event", event)
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	e.Msg(event)
}

// Info logs a plain informational line, the structured equivalent of the
// teacher's log.Printf("ℹ️ ...", ...).
func (l *Logger) Info(msg string, fields map[string]any) {
	e := l.zl.Info()
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	e.Msg(msg)
}

// Warn logs a recoverable problem, the structured equivalent of the
// teacher's "⚠️ ..." lines.
func (l *Logger) Warn(msg string, fields map[string]any) {
	e := l.zl.Warn()
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	e.Msg(msg)
}

// Error logs a failure with its underlying Go error attached.
func (l *Logger) Error(msg string, err error, fields map[string]any) {
	e := l.zl.Error().Err(err)
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	e.Msg(msg)
}

// Debug logs verbose tracing information, disabled by default via level.
func (l *Logger) Debug(msg string, fields map[string]any) {
	e := l.zl.Debug()
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	e.Msg(msg)
}

// SetLevel adjusts the global zerolog level, driven by config's LOG_LEVEL.
func SetLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
