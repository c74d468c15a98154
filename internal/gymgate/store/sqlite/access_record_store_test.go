package sqlite_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gymgate/server/internal/gymgate/access"
	"github.com/gymgate/server/internal/gymgate/store"
	sqlitestore "github.com/gymgate/server/internal/gymgate/store/sqlite"
)

var weekStart = time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)

func newRecordStore(t *testing.T) (*sql.DB, *sqlitestore.AccessRecordStore) {
	t.Helper()
	conn := openTestDB(t)
	return conn, sqlitestore.NewAccessRecordStore(conn, newTestWriter(t, conn), time.UTC)
}

// ═══════════════════════════════════════════════════════════════════════════
// Apply: record insert
// ═══════════════════════════════════════════════════════════════════════════

func TestAccessRecordStore_Apply_InsertsRecord(t *testing.T) {
	conn, rs := newRecordStore(t)
	eid := seedMember(t, conn, seedOpts{identifier: "1", active: true, modality: "TWO", resetAt: weekStart})
	at := weekStart.Add(10 * time.Hour)

	err := rs.Apply(context.Background(), store.AccessRecord{
		ID:           "acc-1",
		MembershipID: eid,
		Identifier:   "1",
		At:           at,
		Reason:       access.ReasonAccountSuspended,
	}, store.CounterMutation{})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	var (
		allowed int
		reason  sql.NullString
		atMs    int64
	)
	if err := conn.QueryRowContext(context.Background(),
		`SELECT allowed, reason_code, accessed_at_ms FROM access_records WHERE access_id = 'acc-1'`,
	).Scan(&allowed, &reason, &atMs); err != nil {
		t.Fatalf("query: %v", err)
	}
	if allowed != 0 {
		t.Errorf("expected allowed=0, got %d", allowed)
	}
	if reason.String != "ACCOUNT_SUSPENDED" {
		t.Errorf("expected ACCOUNT_SUSPENDED, got %q", reason.String)
	}
	if atMs != at.UnixMilli() {
		t.Errorf("expected accessed_at_ms=%d, got %d", at.UnixMilli(), atMs)
	}
}

func TestAccessRecordStore_Apply_GrantStoresNullReason(t *testing.T) {
	conn, rs := newRecordStore(t)
	eid := seedMember(t, conn, seedOpts{identifier: "1", active: true, modality: "TWO", resetAt: weekStart})

	if err := rs.Apply(context.Background(), store.AccessRecord{
		ID: "acc-1", MembershipID: eid, Identifier: "1", At: weekStart, Allowed: true,
	}, store.CounterMutation{}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	var reason sql.NullString
	if err := conn.QueryRowContext(context.Background(),
		`SELECT reason_code FROM access_records WHERE access_id = 'acc-1'`,
	).Scan(&reason); err != nil {
		t.Fatalf("query: %v", err)
	}
	if reason.Valid {
		t.Errorf("expected NULL reason, got %q", reason.String)
	}
}

func TestAccessRecordStore_RecordsAreAppendOnly(t *testing.T) {
	conn, rs := newRecordStore(t)
	eid := seedMember(t, conn, seedOpts{identifier: "1", active: true, modality: "TWO", resetAt: weekStart})
	if err := rs.Apply(context.Background(), store.AccessRecord{
		ID: "acc-1", MembershipID: eid, Identifier: "1", At: weekStart, Allowed: true,
	}, store.CounterMutation{}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if _, err := conn.ExecContext(context.Background(),
		`UPDATE access_records SET allowed = 0 WHERE access_id = 'acc-1'`); err == nil {
		t.Error("expected UPDATE to be rejected")
	}
	if _, err := conn.ExecContext(context.Background(),
		`DELETE FROM access_records WHERE access_id = 'acc-1'`); err == nil {
		t.Error("expected DELETE to be rejected")
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Apply: counter mutation
// ═══════════════════════════════════════════════════════════════════════════

func TestAccessRecordStore_Apply_Increment(t *testing.T) {
	conn, rs := newRecordStore(t)
	eid := seedMember(t, conn, seedOpts{identifier: "1", active: true, modality: "TWO", weekly: 1, resetAt: weekStart})

	err := rs.Apply(context.Background(), store.AccessRecord{
		ID: "acc-1", MembershipID: eid, Identifier: "1", At: weekStart.Add(time.Hour), Allowed: true,
	}, store.CounterMutation{Increment: true, Capacity: 2})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if weekly, _ := weeklyAccesses(t, conn, eid); weekly != 2 {
		t.Errorf("expected weekly=2, got %d", weekly)
	}
}

func TestAccessRecordStore_Apply_IncrementAtCapacityRollsBack(t *testing.T) {
	conn, rs := newRecordStore(t)
	eid := seedMember(t, conn, seedOpts{identifier: "1", active: true, modality: "TWO", weekly: 2, resetAt: weekStart})

	err := rs.Apply(context.Background(), store.AccessRecord{
		ID: "acc-1", MembershipID: eid, Identifier: "1", At: weekStart.Add(time.Hour), Allowed: true,
	}, store.CounterMutation{Increment: true, Capacity: 2})
	if !errors.Is(err, store.ErrCounterConflict) {
		t.Fatalf("expected ErrCounterConflict, got %v", err)
	}

	if n := countRecords(t, conn, eid); n != 0 {
		t.Errorf("expected the record insert to roll back, got %d rows", n)
	}
	if weekly, _ := weeklyAccesses(t, conn, eid); weekly != 2 {
		t.Errorf("expected weekly to stay 2, got %d", weekly)
	}
}

func TestAccessRecordStore_Apply_MissingEnrollment(t *testing.T) {
	_, rs := newRecordStore(t)

	err := rs.Apply(context.Background(), store.AccessRecord{
		ID: "acc-1", MembershipID: "e-gone", Identifier: "1", At: weekStart, Allowed: true,
	}, store.CounterMutation{Increment: true, Capacity: 2})
	if !errors.Is(err, store.ErrMembershipNotFound) {
		t.Fatalf("expected ErrMembershipNotFound, got %v", err)
	}
}

func TestAccessRecordStore_Apply_ResetThenIncrement(t *testing.T) {
	conn, rs := newRecordStore(t)
	eid := seedMember(t, conn, seedOpts{identifier: "1", active: true, modality: "TWO", weekly: 2, resetAt: weekStart.AddDate(0, 0, -7)})
	now := weekStart.Add(30 * time.Hour)
	zero := 0

	err := rs.Apply(context.Background(), store.AccessRecord{
		ID: "acc-1", MembershipID: eid, Identifier: "1", At: now, Allowed: true,
	}, store.CounterMutation{
		ResetTo:     &zero,
		ResetAt:     now,
		StaleBefore: weekStart,
		Increment:   true,
		Capacity:    2,
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	weekly, resetMs := weeklyAccesses(t, conn, eid)
	if weekly != 1 {
		t.Errorf("expected weekly=1, got %d", weekly)
	}
	if resetMs != now.UnixMilli() {
		t.Errorf("expected reset stamp %d, got %d", now.UnixMilli(), resetMs)
	}
}

func TestAccessRecordStore_Apply_ResetSkippedWhenAlreadyFresh(t *testing.T) {
	conn, rs := newRecordStore(t)
	freshReset := weekStart.Add(time.Hour)
	eid := seedMember(t, conn, seedOpts{identifier: "1", active: true, modality: "TWO", weekly: 1, resetAt: freshReset})
	zero := 0

	err := rs.Apply(context.Background(), store.AccessRecord{
		ID: "acc-1", MembershipID: eid, Identifier: "1", At: weekStart.Add(2 * time.Hour),
		Reason: access.ReasonAccountSuspended,
	}, store.CounterMutation{ResetTo: &zero, ResetAt: weekStart.Add(2 * time.Hour), StaleBefore: weekStart})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	weekly, resetMs := weeklyAccesses(t, conn, eid)
	if weekly != 1 || resetMs != freshReset.UnixMilli() {
		t.Errorf("expected counter untouched, got weekly=%d reset=%d", weekly, resetMs)
	}
}

func TestAccessRecordStore_Apply_ConcurrentIncrementsNeverExceedCapacity(t *testing.T) {
	conn, rs := newRecordStore(t)
	eid := seedMember(t, conn, seedOpts{identifier: "1", active: true, modality: "THREE", resetAt: weekStart})

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := rs.Apply(context.Background(), store.AccessRecord{
				ID:           "acc-" + string(rune('a'+i)),
				MembershipID: eid,
				Identifier:   "1",
				At:           weekStart.Add(time.Duration(i) * time.Minute),
				Allowed:      true,
			}, store.CounterMutation{Increment: true, Capacity: 3})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, store.ErrCounterConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if ok != 3 || conflicts != 7 {
		t.Errorf("expected 3 ok / 7 conflicts, got %d / %d", ok, conflicts)
	}
	if weekly, _ := weeklyAccesses(t, conn, eid); weekly != 3 {
		t.Errorf("expected weekly=3, got %d", weekly)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// ListRecent
// ═══════════════════════════════════════════════════════════════════════════

func TestAccessRecordStore_ListRecent(t *testing.T) {
	conn, rs := newRecordStore(t)
	eid := seedMember(t, conn, seedOpts{identifier: "1", active: true, modality: "FREE", resetAt: weekStart})
	other := seedMember(t, conn, seedOpts{identifier: "2", active: true, modality: "FREE", resetAt: weekStart})
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if err := rs.Apply(ctx, store.AccessRecord{
			ID: "acc-" + string(rune('a'+i)), MembershipID: eid, Identifier: "1",
			At: weekStart.Add(time.Duration(i) * time.Hour), Allowed: true,
		}, store.CounterMutation{}); err != nil {
			t.Fatalf("Apply: %v", err)
		}
	}
	if err := rs.Apply(ctx, store.AccessRecord{
		ID: "acc-other", MembershipID: other, Identifier: "2", At: weekStart.Add(9 * time.Hour), Allowed: true,
	}, store.CounterMutation{}); err != nil {
		t.Fatalf("Apply other: %v", err)
	}

	recs, err := rs.ListRecent(ctx, eid, 2)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].ID != "acc-d" || recs[1].ID != "acc-c" {
		t.Errorf("expected newest first, got %s, %s", recs[0].ID, recs[1].ID)
	}
	if !recs[0].At.Equal(weekStart.Add(3 * time.Hour)) {
		t.Errorf("unexpected time %v", recs[0].At)
	}

	all, err := rs.ListRecent(ctx, eid, 0)
	if err != nil {
		t.Fatalf("ListRecent all: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("expected 4 records without limit, got %d", len(all))
	}
}
