package app

import (
	"github.com/fiffu/pricewatch/config"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// Core provides everything needed to check prices, without starting any servers or jobs.
var Core = fx.Options(
	fx.Provide(NewLogger),
	fx.Provide(config.NewConfig),

	fx.Provide(NewDatabase),
	fx.Provide(NewHTTPClient),
	fx.Provide(NewPriceCache),
	fx.Provide(NewExtractor),
	fx.Provide(NewEvaluator),
	fx.Provide(NewMonitor),

	fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: log}
	}),
)

// Server adds the HTTP API and the cron jobs on top of Core.
var Server = fx.Options(
	Core,
	fx.Provide(NewScheduler),
	fx.Provide(NewHTTPServer),
)
