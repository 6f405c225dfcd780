// Package logging builds the zap loggers used across the weaver.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects the logger flavour
type Options struct {
	// Verbose enables debug output with the human-readable development encoder
	Verbose bool
	// JSON forces the structured production encoder
	JSON bool
	// Quiet discards everything below warnings
	Quiet bool
}

// New builds a logger writing to stderr. Errors building the configured
// logger fall back to a no-op logger rather than failing the command.
func New(opts Options) *zap.Logger {
	var cfg zap.Config
	if opts.Verbose && !opts.JSON {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Sampling = nil
		cfg.EncoderConfig.TimeKey = "time"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		if !opts.JSON {
			cfg.Encoding = "console"
		}
	}

	switch {
	case opts.Verbose:
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case opts.Quiet:
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger.Named("weaver")
}

// Nop returns a logger that discards everything
func Nop() *zap.Logger {
	return zap.NewNop()
}
