// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package log

import (
	"fmt"
	"os"
	"strings"

	"github.com/luxfi/node/utils/logging"
	"go.uber.org/zap"
)

// Logger is the structured logger used across samizdat
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	Fatal(msg string, fields ...zap.Field)
	With(fields ...zap.Field) Logger
	Sync() error
}

// sink is the part of luxfi's logging.Logger this package drives.
type sink interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	Fatal(msg string, fields ...zap.Field)
	Stop()
}

var _ sink = logging.Logger(nil)

// luxLogger wraps luxfi/node's Logger and carries With fields itself.
type luxLogger struct {
	log    sink
	fields []zap.Field
	exit   func(int)
}

// New creates a new info-level logger
func New() Logger {
	l, err := NewWithLevel("info")
	if err != nil {
		return NoOp()
	}
	return l
}

// NewWithLevel creates a logger at the given level
// (debug, info, warn, error, fatal).
func NewWithLevel(level string) (Logger, error) {
	return newNamed("samizdat", level)
}

// NewLogger creates an info-level logger with a name
func NewLogger(name string) Logger {
	l, err := newNamed(name, "info")
	if err != nil {
		return NoOp()
	}
	return l
}

func newNamed(name, level string) (Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	factory := logging.NewFactory(logging.Config{
		DisplayLevel: lvl,
		LogLevel:     lvl,
	})
	l, err := factory.Make(name)
	if err != nil {
		return nil, fmt.Errorf("make logger %q: %w", name, err)
	}
	return &luxLogger{log: l, exit: os.Exit}, nil
}

// ParseLevel maps a level name to a luxfi logging level
func ParseLevel(level string) (logging.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return logging.Debug, nil
	case "info", "":
		return logging.Info, nil
	case "warn":
		return logging.Warn, nil
	case "error":
		return logging.Error, nil
	case "fatal":
		return logging.Fatal, nil
	}
	return logging.Info, fmt.Errorf("unknown log level %q", level)
}

func (l *luxLogger) Debug(msg string, fields ...zap.Field) { l.log.Debug(msg, l.merge(fields)...) }
func (l *luxLogger) Info(msg string, fields ...zap.Field)  { l.log.Info(msg, l.merge(fields)...) }
func (l *luxLogger) Warn(msg string, fields ...zap.Field)  { l.log.Warn(msg, l.merge(fields)...) }
func (l *luxLogger) Error(msg string, fields ...zap.Field) { l.log.Error(msg, l.merge(fields)...) }

// Fatal logs, flushes and exits the process.
func (l *luxLogger) Fatal(msg string, fields ...zap.Field) {
	l.log.Fatal(msg, l.merge(fields)...)
	l.log.Stop()
	l.exit(1)
}

func (l *luxLogger) With(fields ...zap.Field) Logger {
	return &luxLogger{log: l.log, fields: l.merge(fields), exit: l.exit}
}

// Sync flushes any buffered log entries
func (l *luxLogger) Sync() error {
	l.log.Stop()
	return nil
}

func (l *luxLogger) merge(fields []zap.Field) []zap.Field {
	if len(l.fields) == 0 {
		return fields
	}
	out := make([]zap.Field, 0, len(l.fields)+len(fields))
	out = append(out, l.fields...)
	return append(out, fields...)
}

// zapLogger wraps a zap Logger
type zapLogger struct {
	log *zap.Logger
}

// FromZap wraps an existing zap logger
func FromZap(l *zap.Logger) Logger {
	return &zapLogger{log: l}
}

func (l *zapLogger) Debug(msg string, fields ...zap.Field) { l.log.Debug(msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...zap.Field)  { l.log.Info(msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...zap.Field)  { l.log.Warn(msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...zap.Field) { l.log.Error(msg, fields...) }
func (l *zapLogger) Fatal(msg string, fields ...zap.Field) { l.log.Fatal(msg, fields...) }

func (l *zapLogger) With(fields ...zap.Field) Logger {
	return &zapLogger{log: l.log.With(fields...)}
}

func (l *zapLogger) Sync() error {
	return l.log.Sync()
}

// NoOp returns a no-op logger
func NoOp() Logger {
	return &noOpLogger{}
}

// NoLog is a no-op logger instance
var NoLog = NoOp()

// noOpLogger is a logger that does nothing
type noOpLogger struct{}

func (n *noOpLogger) Debug(string, ...zap.Field) {}
func (n *noOpLogger) Info(string, ...zap.Field)  {}
func (n *noOpLogger) Warn(string, ...zap.Field)  {}
func (n *noOpLogger) Error(string, ...zap.Field) {}
func (n *noOpLogger) Fatal(string, ...zap.Field) {}
func (n *noOpLogger) With(...zap.Field) Logger   { return n }
func (n *noOpLogger) Sync() error                { return nil }

func String(key, val string) zap.Field {
	return zap.String(key, val)
}

func Int(key string, val int) zap.Field {
	return zap.Int(key, val)
}

func Uint64(key string, val uint64) zap.Field {
	return zap.Uint64(key, val)
}

func Int64(key string, val int64) zap.Field {
	return zap.Int64(key, val)
}

func Stringer(key string, val fmt.Stringer) zap.Field {
	return zap.Stringer(key, val)
}

func Error(err error) zap.Field {
	return zap.Error(err)
}
