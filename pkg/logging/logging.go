// Package logging builds the service logger.
package logging

import (
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds an ectologger backed by zap. Pretty mode uses the development
// encoder for local runs; otherwise JSON production output.
func New(level string, pretty bool) (ectologger.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if pretty {
		zcfg = zap.NewDevelopmentConfig()
	}

	if lvl, err := zapcore.ParseLevel(level); err == nil {
		zcfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	zl, err := zcfg.Build()
	if err != nil {
		return nil, err
	}

	return zapadapter.NewZapEctoLogger(zl, nil), nil
}
