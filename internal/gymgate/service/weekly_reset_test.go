package service_test

import (
	"context"
	"testing"

	"github.com/gymgate/server/internal/gymgate/access"
	"github.com/gymgate/server/internal/gymgate/clock"
	"github.com/gymgate/server/internal/gymgate/service"
	"github.com/gymgate/server/internal/gymgate/store/memory"
)

func TestWeeklyReset_RunOnce(t *testing.T) {
	mem := memory.New(
		enrolled("111", access.ModalityTwo, 2, lastWeek),
		enrolled("222", access.ModalityTwo, 1, testWeekStart),
	)
	sched, err := service.NewWeeklyResetScheduler(mem, clock.NewFixed(testNow), service.WeeklyResetConfig{}, nil)
	if err != nil {
		t.Fatalf("NewWeeklyResetScheduler: %v", err)
	}

	n, err := sched.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 enrollment reset, got %d", n)
	}
	if got := counter(t, mem, "111"); got.WeeklyAccesses != 0 || !got.LastAccessResetAt.Equal(testNow) {
		t.Errorf("stale enrollment not reset: %+v", got)
	}
	if got := counter(t, mem, "222").WeeklyAccesses; got != 1 {
		t.Errorf("current-week counter should be kept, got %d", got)
	}

	// A second sweep in the same week is a no-op.
	if n, _ := sched.RunOnce(context.Background()); n != 0 {
		t.Errorf("expected idempotent sweep, got %d", n)
	}
}

func TestWeeklyReset_DisabledWhenScheduleEmpty(t *testing.T) {
	mem := memory.New(enrolled("111", access.ModalityTwo, 2, lastWeek))
	sched, err := service.NewWeeklyResetScheduler(mem, clock.NewFixed(testNow), service.WeeklyResetConfig{}, nil)
	if err != nil {
		t.Fatalf("NewWeeklyResetScheduler: %v", err)
	}

	sched.Start()
	sched.Stop()

	if got := counter(t, mem, "111").WeeklyAccesses; got != 2 {
		t.Errorf("disabled scheduler must not sweep, got %d", got)
	}
}

func TestWeeklyReset_StartSweepsImmediately(t *testing.T) {
	mem := memory.New(enrolled("111", access.ModalityTwo, 2, lastWeek))
	sched, err := service.NewWeeklyResetScheduler(mem, clock.NewFixed(testNow), service.WeeklyResetConfig{Schedule: "0 0 * * 1"}, nil)
	if err != nil {
		t.Fatalf("NewWeeklyResetScheduler: %v", err)
	}

	sched.Start()
	sched.Start()
	defer sched.Stop()

	if got := counter(t, mem, "111").WeeklyAccesses; got != 0 {
		t.Errorf("expected catch-up sweep on start, got %d", got)
	}
}

func TestWeeklyReset_InvalidSchedule(t *testing.T) {
	_, err := service.NewWeeklyResetScheduler(memory.New(), clock.NewFixed(testNow), service.WeeklyResetConfig{Schedule: "every monday"}, nil)
	if err == nil {
		t.Fatal("expected error for invalid cron spec")
	}
}

func TestWeeklyReset_StoreErrorIsLogged(t *testing.T) {
	sched, err := service.NewWeeklyResetScheduler(failingReader{}, clock.NewFixed(testNow), service.WeeklyResetConfig{Schedule: "@weekly"}, nil)
	if err != nil {
		t.Fatalf("NewWeeklyResetScheduler: %v", err)
	}
	if _, err := sched.RunOnce(context.Background()); err == nil {
		t.Fatal("expected store error")
	}
	sched.Start()
	sched.Stop()
}
