// Package logging provides the printf-style Logger used across the pipeline,
// backed by zap.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const callerSkipFrames = 1

// Logger is the logging interface used by the converter, the commands and
// the HTTP handlers.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// Format selects the encoder.
type Format string

const (
	// FormatConsole is human-readable output for the CLI.
	FormatConsole Format = "console"

	// FormatJSON is structured output for the HTTP server.
	FormatJSON Format = "json"
)

// Config contains logger initialization inputs.
type Config struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string

	// Format is console or json. Empty means console.
	Format Format
}

// ZapLogger implements Logger on a zap.SugaredLogger.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// New builds a logger writing to stderr.
func New(cfg Config) (*ZapLogger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.DisableStacktrace = true
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	switch cfg.Format {
	case "", FormatConsole:
		zcfg.Encoding = "console"
		zcfg.DisableCaller = true
	case FormatJSON:
		zcfg.Encoding = "json"
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}

	built, err := zcfg.Build(zap.AddCallerSkip(callerSkipFrames))
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return &ZapLogger{sugar: built.Sugar()}, nil
}

// FromZap wraps an existing zap logger.
func FromZap(l *zap.Logger) *ZapLogger {
	return &ZapLogger{sugar: l.WithOptions(zap.AddCallerSkip(callerSkipFrames)).Sugar()}
}

// NewNop returns a logger that discards everything.
func NewNop() *ZapLogger {
	return &ZapLogger{sugar: zap.NewNop().Sugar()}
}

// ParseLevel converts a level name into a zap level. Empty means info.
func ParseLevel(s string) (zapcore.Level, error) {
	if strings.TrimSpace(s) == "" {
		return zapcore.InfoLevel, nil
	}

	var level zapcore.Level
	if err := level.Set(strings.ToLower(s)); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid level %q: %w", s, err)
	}
	return level, nil
}

func (l *ZapLogger) s() *zap.SugaredLogger {
	if l == nil || l.sugar == nil {
		return zap.NewNop().Sugar()
	}
	return l.sugar
}

func (l *ZapLogger) Debug(msg string, args ...interface{}) { l.s().Debugf(msg, args...) }
func (l *ZapLogger) Info(msg string, args ...interface{})  { l.s().Infof(msg, args...) }
func (l *ZapLogger) Warn(msg string, args ...interface{})  { l.s().Warnf(msg, args...) }
func (l *ZapLogger) Error(msg string, args ...interface{}) { l.s().Errorf(msg, args...) }

// With returns a logger that adds key/value pairs to every entry.
func (l *ZapLogger) With(keysAndValues ...interface{}) *ZapLogger {
	return &ZapLogger{sugar: l.s().With(keysAndValues...)}
}

// Sync flushes buffered entries.
func (l *ZapLogger) Sync() error {
	return l.s().Sync()
}
