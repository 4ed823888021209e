package app

import (
	"context"

	"github.com/fiffu/pricewatch/config"
	"github.com/fiffu/pricewatch/lib/monitor"
	"github.com/fiffu/pricewatch/lib/scheduler"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewScheduler(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, mon *monitor.Monitor) (*scheduler.Scheduler, error) {
	s, err := scheduler.New(log, mon, scheduler.Options{
		CheckInterval: cfg.CheckInterval(),
		Retention:     cfg.HistoryRetention(),
		BatchTimeout:  cfg.CheckInterval(),
	})
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.Start()
			return nil
		},
		OnStop: s.Stop,
	})
	return s, nil
}
