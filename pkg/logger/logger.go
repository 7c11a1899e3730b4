// Package logger builds the process wide slog logger on top of zap.
package logger

import (
	"fmt"
	"log/slog"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// ZapLevel maps a slog level onto the zap level scale.
func ZapLevel(l slog.Level) zapcore.Level {
	switch {
	case l < slog.LevelInfo:
		return zapcore.DebugLevel
	case l < slog.LevelWarn:
		return zapcore.InfoLevel
	case l < slog.LevelError:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

// NewZap returns a production JSON logger or, for the console format, a
// development logger. Service name and hostname are attached to every entry.
func NewZap(level slog.Level, format, serviceName string) (*zap.Logger, error) {
	const op = "logger.NewZap"

	var config zap.Config
	switch format {
	case FormatConsole:
		config = zap.NewDevelopmentConfig()
	case FormatJSON, "":
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		return nil, fmt.Errorf("%s: unknown format %q", op, format)
	}
	config.Level = zap.NewAtomicLevelAt(ZapLevel(level))
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}

	l, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if serviceName != "" {
		l = l.With(zap.String("service_name", serviceName))
	}
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		l = l.With(zap.String("hostname", hostname))
	}
	return l, nil
}

// NewSlog bridges a zap logger to slog.
func NewSlog(zl *zap.Logger) *slog.Logger {
	return slog.New(zapslog.NewHandler(zl.Core(), zapslog.WithCaller(true)))
}

// Init installs a zap backed default slog logger. The returned func flushes
// buffered entries.
func Init(level slog.Level, format, serviceName string) (func(), error) {
	zl, err := NewZap(level, format, serviceName)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(NewSlog(zl))
	return func() { _ = zl.Sync() }, nil
}
