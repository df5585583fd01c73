// Package logging builds the zap loggers used by the conduit commands.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the level and encoding of a logger.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // console or json
}

// New returns a console logger for development or a JSON logger for
// production, both writing to stderr.
func New(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		l, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
		level = l
	}

	var base zap.Config
	switch cfg.Format {
	case "", "console":
		base = zap.NewDevelopmentConfig()
		base.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
		base.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	case "json":
		base = zap.NewProductionConfig()
		base.EncoderConfig.TimeKey = "timestamp"
		base.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}
	base.Level = zap.NewAtomicLevelAt(level)
	base.OutputPaths = []string{"stderr"}
	base.ErrorOutputPaths = []string{"stderr"}
	base.DisableStacktrace = level > zapcore.DebugLevel

	return base.Build()
}

// Must is New that panics on error.
func Must(cfg Config) *zap.Logger {
	l, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return l
}
