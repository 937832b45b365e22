// SPDX-License-Identifier: EPL-2.0

// Package logger provides a module-aware structured logger built on log/slog.
//
// Components receive a Logger and scope it with Module:
//
//	log := logger.New(os.Stderr, logger.LevelInfo, logger.FormatText).Module("opensl")
//	log.Info("stream configured",
//	    logger.String("stream", id),
//	    logger.Int("rate", 48000))
//
// Modules nest, so Module("opensl").Module("stream") logs module="opensl.stream".
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// Level is a textual log level as used in configuration.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Format selects the slog handler.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Field is a structured log field.
type Field struct {
	Key   string
	Value any
}

// Logger is the logging interface injected into components.
type Logger interface {
	Module(name string) Logger
	With(fields ...Field) Logger

	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// Enabled reports whether messages at level would be written.
	Enabled(level Level) bool
}

// ParseLevel converts a configuration string to a Level.
func ParseLevel(s string) (Level, error) {
	switch l := Level(strings.ToLower(strings.TrimSpace(s))); l {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return l, nil
	case "warning":
		return LevelWarn, nil
	case "":
		return LevelInfo, nil
	default:
		return "", fmt.Errorf("unknown log level %q", s)
	}
}

// ParseFormat converts a configuration string to a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown log format %q", s)
	}
}

func (l Level) slog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New returns a Logger writing to w.
func New(w io.Writer, level Level, format Format) Logger {
	return &slogLogger{l: NewSlog(w, level, format)}
}

// NewSlog returns the slog logger New wraps, for APIs that take one.
func NewSlog(w io.Writer, level Level, format Format) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level.slog()}
	if format == FormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// FromSlog wraps an existing slog logger. A nil logger yields NewNop.
func FromSlog(l *slog.Logger) Logger {
	if l == nil {
		return NewNop()
	}
	return &slogLogger{l: l}
}

// NewNop returns a Logger that discards everything.
func NewNop() Logger {
	return &slogLogger{l: slog.New(slog.DiscardHandler)}
}

type slogLogger struct {
	l      *slog.Logger
	module string
}

func (s *slogLogger) Module(name string) Logger {
	module := name
	if s.module != "" {
		module = s.module + "." + name
	}
	return &slogLogger{l: s.l, module: module}
}

func (s *slogLogger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return s
	}
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		args = append(args, fieldToAttr(f))
	}
	return &slogLogger{l: s.l.With(args...), module: s.module}
}

func (s *slogLogger) Enabled(level Level) bool {
	return s.l.Enabled(context.Background(), level.slog())
}

func (s *slogLogger) Debug(msg string, fields ...Field) { s.log(slog.LevelDebug, msg, fields) }
func (s *slogLogger) Info(msg string, fields ...Field)  { s.log(slog.LevelInfo, msg, fields) }
func (s *slogLogger) Warn(msg string, fields ...Field)  { s.log(slog.LevelWarn, msg, fields) }
func (s *slogLogger) Error(msg string, fields ...Field) { s.log(slog.LevelError, msg, fields) }

func (s *slogLogger) log(level slog.Level, msg string, fields []Field) {
	ctx := context.Background()
	if !s.l.Enabled(ctx, level) {
		return
	}

	attrs := make([]slog.Attr, 0, len(fields)+1)
	if s.module != "" {
		attrs = append(attrs, slog.String("module", s.module))
	}
	for _, f := range fields {
		attrs = append(attrs, fieldToAttr(f))
	}
	s.l.LogAttrs(ctx, level, msg, attrs...)
}

func fieldToAttr(f Field) slog.Attr {
	switch v := f.Value.(type) {
	case string:
		return slog.String(f.Key, v)
	case int:
		return slog.Int(f.Key, v)
	case int64:
		return slog.Int64(f.Key, v)
	case uint64:
		return slog.Uint64(f.Key, v)
	case float64:
		return slog.Float64(f.Key, v)
	case bool:
		return slog.Bool(f.Key, v)
	case time.Duration:
		return slog.Duration(f.Key, v)
	default:
		return slog.Any(f.Key, v)
	}
}

func String(key, value string) Field { return Field{Key: key, Value: value} }

func Int(key string, value int) Field { return Field{Key: key, Value: value} }

func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }

func Uint64(key string, value uint64) Field { return Field{Key: key, Value: value} }

func Float64(key string, value float64) Field { return Field{Key: key, Value: value} }

func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

func Duration(key string, value time.Duration) Field { return Field{Key: key, Value: value} }

// Error stores err under the "error" key; a nil error logs as nil.
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

func Any(key string, value any) Field { return Field{Key: key, Value: value} }
