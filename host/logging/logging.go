// Package logging builds the zap loggers used across rcpanel.
package logging

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the logger destination and verbosity
type Options struct {
	// Debug enables debug level
	Debug bool
	// File, when set, sends logs to a rolling file instead of stderr.
	// The interactive panel needs this because the terminal is in raw mode.
	File string
	// MaxSizeMB, MaxBackups and MaxAgeDays control rotation of File
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New returns a sugared logger for opts, and a function that flushes it
func New(name string, opts Options) (*zap.SugaredLogger, func()) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if opts.Debug {
		level.SetLevel(zapcore.DebugLevel)
	}

	var (
		sink    zapcore.WriteSyncer
		encoder zapcore.Encoder
		closer  io.Closer
	)
	if opts.File != "" {
		rolling := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 10),
			MaxBackups: orDefault(opts.MaxBackups, 3),
			MaxAge:     orDefault(opts.MaxAgeDays, 28),
		}
		sink = zapcore.AddSync(rolling)
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		closer = rolling
	} else {
		sink = zapcore.Lock(os.Stderr)
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	logger := zap.New(zapcore.NewCore(encoder, sink, level), zap.AddCaller()).Named(name).Sugar()
	return logger, func() {
		_ = logger.Sync()
		if closer != nil {
			_ = closer.Close()
		}
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
