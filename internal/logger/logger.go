package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects the encoding, verbosity and sink of the process logger.
type Options struct {
	JSON  bool
	Debug bool
	// Service is attached to every entry as "service" when set.
	Service string
	// Output is a zap sink URL or path. Defaults to stdout.
	Output string
}

// New builds the process logger. Entries use "step" as the message key.
func New(opts Options) (*zap.Logger, error) {
	encoding, level := "console", zapcore.InfoLevel
	if opts.JSON {
		encoding = "json"
	}
	if opts.Debug {
		level = zapcore.DebugLevel
	}

	output := opts.Output
	if output == "" {
		output = "stdout"
	}

	cfg := zap.Config{
		Encoding:          encoding,
		Level:             zap.NewAtomicLevelAt(level),
		DisableStacktrace: !opts.Debug,
		OutputPaths:       []string{output},
		ErrorOutputPaths:  []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:    "step",
			LevelKey:      "level",
			TimeKey:       "time",
			CallerKey:     "caller",
			StacktraceKey: "stacktrace",
			EncodeLevel:   zapcore.LowercaseLevelEncoder,
			EncodeTime:    zapcore.RFC3339TimeEncoder,
			EncodeCaller:  zapcore.ShortCallerEncoder,
		},
	}
	if opts.Service != "" {
		cfg.InitialFields = map[string]any{"service": opts.Service}
	}

	return cfg.Build()
}
