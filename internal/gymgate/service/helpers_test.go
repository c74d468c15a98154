package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gymgate/server/internal/gymgate/access"
	"github.com/gymgate/server/internal/gymgate/clock"
	"github.com/gymgate/server/internal/gymgate/service"
	"github.com/gymgate/server/internal/gymgate/store"
	"github.com/gymgate/server/internal/gymgate/store/memory"
)

// Friday of ISO week 42; the week starts Monday 2026-10-12.
var (
	testNow       = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	testWeekStart = time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)
	lastWeek      = testWeekStart.AddDate(0, 0, -3)
)

type testEnv struct {
	svc   *service.AccessService
	mem   *memory.Store
	clock *clock.Fixed
}

// newTestEnv wires an AccessService over a memory store. records, when
// non-nil, wraps the memory store as the recorder.
func newTestEnv(t *testing.T, records func(*memory.Store) store.AccessRecordStore, seed ...memory.Member) testEnv {
	t.Helper()

	mem := memory.New(seed...)
	clk := clock.NewFixed(testNow)
	engine := access.NewEngine(access.Config{MinTimeBetweenAccesses: 10 * time.Minute})

	var rs store.AccessRecordStore = mem
	if records != nil {
		rs = records(mem)
	}

	svc := service.NewAccessService(service.NewMemberDirectory(mem), engine, rs, service.Options{
		StorageTimeout: 50 * time.Millisecond,
		Clock:          clk,
	})
	return testEnv{svc: svc, mem: mem, clock: clk}
}

func enrolled(identifier string, modality access.Modality, weekly int, resetAt time.Time) memory.Member {
	start := testNow.AddDate(0, -1, 0)
	end := testNow.AddDate(0, 1, 0)
	return memory.Member{
		Member: access.Member{ID: "m-" + identifier, Identifier: identifier, Name: "Ana", LastName: "Paz", Active: true},
		Enrollment: &access.Enrollment{
			ID:                "e-" + identifier,
			Modality:          modality,
			StartDate:         &start,
			EndDate:           &end,
			WeeklyAccesses:    weekly,
			LastAccessResetAt: resetAt,
		},
	}
}

func counter(t *testing.T, mem *memory.Store, identifier string) access.Enrollment {
	t.Helper()
	en, ok := mem.Enrollment("e-" + identifier)
	if !ok {
		t.Fatalf("enrollment e-%s missing", identifier)
	}
	return en
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ── Fakes ────────────────────────────────────────────────────────────────────

// flakyRecorder fails the first failN Apply calls with err, then delegates.
type flakyRecorder struct {
	store.AccessRecordStore

	mu    sync.Mutex
	failN int
	err   error
	calls []store.CounterMutation
}

func (r *flakyRecorder) Apply(ctx context.Context, rec store.AccessRecord, mut store.CounterMutation) error {
	r.mu.Lock()
	r.calls = append(r.calls, mut)
	fail := r.failN > 0
	if fail {
		r.failN--
	}
	r.mu.Unlock()

	if fail {
		return r.err
	}
	return r.AccessRecordStore.Apply(ctx, rec, mut)
}

// blockingRecorder never completes until its context is done.
type blockingRecorder struct {
	store.AccessRecordStore
}

func (blockingRecorder) Apply(ctx context.Context, _ store.AccessRecord, _ store.CounterMutation) error {
	<-ctx.Done()
	return ctx.Err()
}

// ctxRecorder refuses to write on a cancelled context.
type ctxRecorder struct {
	store.AccessRecordStore
}

func (r ctxRecorder) Apply(ctx context.Context, rec store.AccessRecord, mut store.CounterMutation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.AccessRecordStore.Apply(ctx, rec, mut)
}

// failingReader is a snapshot reader whose storage is down.
type failingReader struct{}

var errStorageDown = errors.New("storage down")

func (failingReader) LoadSnapshot(context.Context, string) (*access.Snapshot, error) {
	return nil, errStorageDown
}

func (failingReader) ResetStaleCounters(context.Context, time.Time, time.Time) (int64, error) {
	return 0, errStorageDown
}
