package app

import (
	"fmt"
	"time"

	"github.com/fiffu/pricewatch/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger logs JSON with UTC timestamps in production and console output elsewhere.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	logCfg := zap.NewDevelopmentConfig()
	if cfg.IsProduction() {
		logCfg = zap.NewProductionConfig()
		logCfg.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			zapcore.ISO8601TimeEncoder(t.UTC(), enc)
		}
	}

	log, err := logCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return log.With(zap.String("env", cfg.Env)), nil
}
