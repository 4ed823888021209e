// Package scheduler drives the periodic batch check and the history retention purge.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/fiffu/pricewatch/lib/monitor"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// PurgeSchedule runs the retention purge once a day, at 03:00.
const PurgeSchedule = "0 3 * * *"

type Monitor interface {
	CheckAllProducts(ctx context.Context, userID *uint) ([]monitor.CheckResult, error)
	PurgeHistory(ctx context.Context, cutoff time.Time) (int64, error)
}

type Options struct {
	CheckInterval time.Duration
	Retention     time.Duration
	BatchTimeout  time.Duration // zero means no limit
}

type Scheduler struct {
	log  *zap.Logger
	mon  Monitor
	opts Options
	cron *cron.Cron
	now  func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

func New(log *zap.Logger, mon Monitor, opts Options) (*Scheduler, error) {
	if opts.CheckInterval <= 0 {
		return nil, fmt.Errorf("check interval must be positive, got %s", opts.CheckInterval)
	}

	stdLog := zap.NewStdLog(log)
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cron.PrintfLogger(stdLog)),
		cron.WithChain(
			cron.Recover(cron.PrintfLogger(stdLog)),
			cron.SkipIfStillRunning(cron.PrintfLogger(stdLog)),
		),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		log:    log,
		mon:    mon,
		opts:   opts,
		cron:   c,
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
	}

	if _, err := c.AddFunc(fmt.Sprintf("@every %s", opts.CheckInterval), s.RunBatch); err != nil {
		return nil, fmt.Errorf("schedule batch check: %w", err)
	}
	if opts.Retention > 0 {
		if _, err := c.AddFunc(PurgeSchedule, s.RunPurge); err != nil {
			return nil, fmt.Errorf("schedule history purge: %w", err)
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Sugar().Infow("Scheduler started", "check_interval", s.opts.CheckInterval, "retention", s.opts.Retention)
}

// Stop cancels running jobs and waits for them to return or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()

	select {
	case <-done.Done():
		s.log.Sugar().Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) RunBatch() {
	ctx := s.ctx
	if s.opts.BatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.BatchTimeout)
		defer cancel()
	}

	start := s.now()
	results, err := s.mon.CheckAllProducts(ctx, nil)
	if err != nil {
		s.log.Sugar().Errorw("Scheduled batch check failed", "err", err)
		return
	}
	s.log.Sugar().Infow("Scheduled batch check done", "priced", len(results), "took", s.now().Sub(start))
}

func (s *Scheduler) RunPurge() {
	cutoff := s.now().UTC().Add(-s.opts.Retention)
	if _, err := s.mon.PurgeHistory(s.ctx, cutoff); err != nil {
		s.log.Sugar().Errorw("Scheduled history purge failed", "cutoff", cutoff, "err", err)
	}
}
