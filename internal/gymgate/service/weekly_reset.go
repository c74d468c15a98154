package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/gymgate/server/internal/gymgate/clock"
	"github.com/gymgate/server/internal/gymgate/store"
	"github.com/gymgate/server/internal/logger"
)

// WeeklyResetScheduler zeroes stale weekly counters on a cron schedule in
// the gym's timezone. The engine's lazy reset stays authoritative; the sweep
// only keeps idle members' stored counters current.
//
// An empty schedule disables the sweep.
type WeeklyResetScheduler struct {
	store   store.MembershipStore
	clock   clock.Clock
	log     *logger.Logger
	timeout time.Duration

	schedule string
	cron     *cron.Cron

	mu      sync.Mutex
	started bool
}

type WeeklyResetConfig struct {
	// Schedule is a standard 5-field cron spec, e.g. "0 0 * * 1".
	Schedule string

	// Timeout bounds one sweep. Defaults to 30s.
	Timeout time.Duration
}

// NewWeeklyResetScheduler validates the schedule but does not start it.
func NewWeeklyResetScheduler(st store.MembershipStore, clk clock.Clock, cfg WeeklyResetConfig, log *logger.Logger) (*WeeklyResetScheduler, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	s := &WeeklyResetScheduler{
		store:    st,
		clock:    clk,
		log:      log,
		timeout:  cfg.Timeout,
		schedule: cfg.Schedule,
	}
	if cfg.Schedule == "" {
		return s, nil
	}

	c := cron.New(cron.WithLocation(clk.Location()))
	if _, err := c.AddFunc(cfg.Schedule, s.sweep); err != nil {
		return nil, fmt.Errorf("weekly reset schedule %q: %w", cfg.Schedule, err)
	}
	s.cron = c
	return s, nil
}

// Start runs one sweep immediately to catch up after downtime, then hands
// over to the cron schedule.
func (s *WeeklyResetScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		s.log.Info("weekly reset disabled (no schedule)")
		return
	}
	if s.started {
		return
	}
	s.started = true

	s.sweep()
	s.cron.Start()
	s.log.Info("weekly reset started", "schedule", s.schedule, "timezone", s.clock.Location().String())
}

// Stop waits for a running sweep to finish.
func (s *WeeklyResetScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil || !s.started {
		return
	}
	<-s.cron.Stop().Done()
	s.started = false
}

// RunOnce zeroes every counter last reset before the current ISO week.
func (s *WeeklyResetScheduler) RunOnce(ctx context.Context) (int64, error) {
	now := s.clock.Now()
	weekStart := clock.StartOfISOWeek(now, s.clock.Location())
	return s.store.ResetStaleCounters(ctx, weekStart, now)
}

func (s *WeeklyResetScheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := s.RunOnce(ctx)
	if err != nil {
		s.log.Error("weekly reset failed", "error", err)
		return
	}
	if n > 0 {
		s.log.Info("weekly reset", "enrollments", n)
	}
}
