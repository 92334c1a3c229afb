package membership

import (
	"context"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"

	"membersync/internal/constants"
	"membersync/internal/logger"
	"membersync/pkg/errors"
	"membersync/pkg/logging"
)

// StoreRefresher refreshes all container kinds of one store.
type StoreRefresher interface {
	RefreshStore(ctx context.Context, storeID string) ([]Report, error)
}

type SchedulerConfig struct {
	Interval    time.Duration
	Jitter      time.Duration
	Concurrency int
}

// Scheduler periodically refreshes every store, a bounded number at a time.
type Scheduler struct {
	stores    StoreLister
	refresher StoreRefresher
	cfg       SchedulerConfig
	logger    logger.Logger
}

func NewScheduler(stores StoreLister, refresher StoreRefresher, cfg SchedulerConfig, log logger.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Duration(constants.DefaultScheduleIntervalSeconds) * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = constants.DefaultStoreConcurrency
	}
	return &Scheduler{stores: stores, refresher: refresher, cfg: cfg, logger: log}
}

// Start runs a pass immediately and then every interval plus a random
// jitter, until ctx is canceled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Infow("Starting membership scheduler",
		"interval", s.cfg.Interval,
		"jitter", s.cfg.Jitter,
		"concurrency", s.cfg.Concurrency,
	)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			if err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.ErrorwCtx(ctx, "Scheduled refresh pass failed", "error", err)
			}
			timer.Reset(s.next())
		}
	}
}

func (s *Scheduler) next() time.Duration {
	if s.cfg.Jitter <= 0 {
		return s.cfg.Interval
	}
	return s.cfg.Interval + rand.N(s.cfg.Jitter)
}

// RunOnce refreshes every store once. Per-store failures are logged and do
// not fail the pass; only listing the stores does.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	storeIDs, err := s.stores.ListStoreIDs(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrDataAccess)
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for _, storeID := range storeIDs {
		g.Go(func() error {
			storeCtx := logging.WithStoreID(gctx, storeID)
			reports, err := s.refresher.RefreshStore(storeCtx, storeID)
			if err != nil {
				if errors.IsRefreshInProgress(err) {
					s.logger.InfowCtx(storeCtx, "Store refresh skipped, another refresh holds the lock")
				} else {
					s.logger.ErrorwCtx(storeCtx, "Store refresh failed", "error", err)
				}
			}
			for _, report := range reports {
				if report.Failed() {
					s.logger.WarnwCtx(storeCtx, "Store refresh finished with failures",
						"kind", report.Kind,
						"failures", len(report.Failures),
					)
				}
			}
			return nil
		})
	}

	_ = g.Wait()
	s.logger.InfowCtx(ctx, "Scheduled refresh pass completed",
		"stores", len(storeIDs),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return ctx.Err()
}
