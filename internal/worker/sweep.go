package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/whackboard/internal/cache"
	"github.com/whackboard/internal/config"
	"github.com/whackboard/internal/domain"
	"github.com/whackboard/internal/epoch"
	"github.com/whackboard/internal/store"
)

// SweepWorker periodically rolls dormant profiles into the current month and
// rebuilds the Redis mirror from the store. Rollover is otherwise lazy (it
// happens on the next scoring event), so the sweep only exists to keep
// monthly reads from carrying stale counters for users who stopped playing.
type SweepWorker struct {
	store   store.ProfileStore
	cache   *cache.Cache
	config  *config.WorkerConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewSweepWorker creates a new sweep worker. cache may be nil.
func NewSweepWorker(
	profiles store.ProfileStore,
	scoreCache *cache.Cache,
	cfg *config.WorkerConfig,
	logger *slog.Logger,
) *SweepWorker {
	return &SweepWorker{
		store:  profiles,
		cache:  scoreCache,
		config: cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the background sweep process
func (w *SweepWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("sweep worker started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the background sweep process
func (w *SweepWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("sweep worker stopped")
	return nil
}

// run is the main worker loop
func (w *SweepWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// sweep runs one full cycle: rollover pass, then cache rebuild
func (w *SweepWorker) sweep(ctx context.Context) {
	w.logger.Info("starting sweep cycle")
	startTime := time.Now()

	rolled, err := w.RolloverSweep(ctx)
	if err != nil {
		w.logger.Error("rollover sweep failed", "error", err)
	}

	if err := w.RebuildCache(ctx); err != nil {
		w.logger.Error("cache rebuild failed", "error", err)
	}

	w.logger.Info("sweep cycle completed",
		"duration", time.Since(startTime),
		"rolled_over", rolled,
	)
}

// RolloverSweep rolls every dormant profile forward into the current month.
// Each profile goes through ApplyUpdate so the rollover takes the same
// per-user critical section as the scoring pipeline.
func (w *SweepWorker) RolloverSweep(ctx context.Context) (int, error) {
	token := epoch.MonthToken(time.Now())
	rolled := 0

	for {
		ids, err := w.store.ListStale(ctx, token, w.config.BatchSize)
		if err != nil {
			return rolled, err
		}
		if len(ids) == 0 {
			return rolled, nil
		}

		passRolled := 0
		for _, id := range ids {
			_, err := w.store.ApplyUpdate(ctx, id, "", func(p *domain.Profile) error {
				epoch.MaybeRollover(p, token)
				return nil
			})
			if err != nil {
				w.logger.Error("failed to roll over profile", "user_id", id, "error", err)
				continue
			}
			passRolled++
		}
		rolled += passRolled

		// A pass with zero progress means every remaining update failed;
		// stop instead of refetching the same ids forever.
		if passRolled == 0 || len(ids) < w.config.BatchSize {
			return rolled, nil
		}
	}
}

// RebuildCache replaces the Redis mirror with a fresh store snapshot. Used
// on startup recovery and every sweep cycle.
func (w *SweepWorker) RebuildCache(ctx context.Context) error {
	if w.cache == nil {
		return nil
	}

	profiles, err := w.store.ListAll(ctx)
	if err != nil {
		return err
	}

	token := epoch.MonthToken(time.Now())
	if err := w.cache.Rebuild(ctx, profiles, token); err != nil {
		return err
	}

	w.logger.Debug("rebuilt cache", "profile_count", len(profiles))
	return nil
}

// IsRunning returns whether the worker is currently running
func (w *SweepWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// RunOnce runs a single sweep cycle (useful for manual triggers)
func (w *SweepWorker) RunOnce(ctx context.Context) {
	w.sweep(ctx)
}
