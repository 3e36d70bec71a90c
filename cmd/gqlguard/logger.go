package main

import (
	"fmt"

	"github.com/jensneuse/abstractlogger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	config "github.com/hanpama/gqlguard/internal/config"
)

func newLogger(c config.LogConfig) (abstractlogger.Logger, func(), error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return nil, nil, fmt.Errorf("log.level: %w", err)
	}
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	logger, err := zc.Build()
	if err != nil {
		return nil, nil, err
	}
	return abstractlogger.NewZapLogger(logger, abstractLevel(level)), func() { _ = logger.Sync() }, nil
}

func abstractLevel(l zapcore.Level) abstractlogger.Level {
	switch l {
	case zapcore.DebugLevel:
		return abstractlogger.DebugLevel
	case zapcore.InfoLevel:
		return abstractlogger.InfoLevel
	case zapcore.WarnLevel:
		return abstractlogger.WarnLevel
	default:
		return abstractlogger.ErrorLevel
	}
}
