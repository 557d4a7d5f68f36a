// Package watch schedules bulk reindex passes: once at startup, on a fixed
// interval, and when the refs of a local git repository move.
//
// Bulk runs are guarded by a cross-process lock so that several relic-search
// processes sharing a base directory do not index the same repositories at
// the same time. The process holding the lock is the leader for that run;
// the others skip it.
package watch

import (
	"context"
	"log/slog"
	"time"
)

// Locker is a non-blocking cross-process lock.
type Locker interface {
	TryLock() (bool, error)
	Unlock() error
}

// RunTracker remembers when the last bulk run happened.
type RunTracker interface {
	NeedsRun(now time.Time, interval time.Duration) bool
	MarkRun(now time.Time)
	RemoveStale(names []string) []string
	Save() error
}

// Options configures a Scheduler.
type Options struct {
	// Interval between bulk runs. Zero disables periodic runs.
	Interval time.Duration
	// Lock is optional; without it every run proceeds.
	Lock Locker
	// Tracker is optional; without it the startup run always proceeds.
	Tracker RunTracker
	Logger  *slog.Logger
	// Now is used for run bookkeeping; nil means time.Now.
	Now func() time.Time
}

// Scheduler triggers bulk reindex runs over a fixed set of repositories.
type Scheduler struct {
	reindexAll func(ctx context.Context, names []string) error
	names      []string
	opts       Options
	logger     *slog.Logger
}

// NewScheduler creates a scheduler running reindexAll over names.
func NewScheduler(reindexAll func(ctx context.Context, names []string) error, names []string, opts Options) *Scheduler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scheduler{
		reindexAll: reindexAll,
		names:      append([]string(nil), names...),
		opts:       opts,
		logger:     logger,
	}
}

// RunOnce performs a bulk run if this process can take the lock. It reports
// whether the run happened. Pass failures are logged, not returned; only
// lock errors are.
func (s *Scheduler) RunOnce(ctx context.Context) (bool, error) {
	if s.opts.Lock != nil {
		acquired, err := s.opts.Lock.TryLock()
		if err != nil {
			return false, err
		}
		if !acquired {
			s.logger.Info("Another instance is reindexing, skipping run")
			return false, nil
		}
		defer func() {
			if err := s.opts.Lock.Unlock(); err != nil {
				s.logger.Error("Failed to release reindex lock", "error", err)
			}
		}()
	}

	s.logger.Info("Starting bulk reindex", "repos", len(s.names))
	start := s.opts.Now()
	err := s.reindexAll(ctx, s.names)
	if err != nil {
		s.logger.Error("Bulk reindex finished with failures", "error", err)
	} else {
		s.logger.Info("Bulk reindex finished", "repos", len(s.names), "duration", s.opts.Now().Sub(start))
	}

	if t := s.opts.Tracker; t != nil {
		for _, name := range t.RemoveStale(s.names) {
			s.logger.Info("Forgetting unconfigured repository", "repo", name)
		}
		t.MarkRun(s.opts.Now())
		if err := t.Save(); err != nil {
			s.logger.Warn("Failed to save run state", "error", err)
		}
	}
	return true, nil
}

// Run performs the startup run when due, then one run per interval until ctx
// is done. With a zero interval Run returns after the startup run.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.startupDue() {
		if _, err := s.RunOnce(ctx); err != nil {
			return err
		}
	} else {
		s.logger.Info("Skipping startup reindex, last run is recent")
	}

	if s.opts.Interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.Error("Periodic reindex failed", "error", err)
			}
		}
	}
}

func (s *Scheduler) startupDue() bool {
	if s.opts.Tracker == nil || s.opts.Interval <= 0 {
		return true
	}
	return s.opts.Tracker.NeedsRun(s.opts.Now(), s.opts.Interval)
}
