package memory

import (
	"context"
	"fmt"

	"github.com/gymgate/server/internal/gymgate/store"
)

func (s *Store) Apply(_ context.Context, rec store.AccessRecord, mut store.CounterMutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	owner, ok := s.enrollOwner[rec.MembershipID]
	if !ok {
		return fmt.Errorf("Apply %s: %w", rec.MembershipID, store.ErrMembershipNotFound)
	}
	en := s.enrollments[owner]

	// Work on a copy so a refused increment leaves the reset unapplied too.
	next := *en
	if mut.ResetTo != nil && next.LastAccessResetAt.Before(mut.StaleBefore) {
		next.WeeklyAccesses = *mut.ResetTo
		next.LastAccessResetAt = mut.ResetAt
	}
	if mut.Increment {
		if mut.Capacity > 0 && next.WeeklyAccesses >= mut.Capacity {
			return fmt.Errorf("Apply %s: %w", rec.MembershipID, store.ErrCounterConflict)
		}
		next.WeeklyAccesses++
	}

	*en = next
	s.records = append(s.records, rec)
	return nil
}

func (s *Store) ListRecent(_ context.Context, membershipID string, limit int) ([]store.AccessRecord, error) {
	s.mu.RLock()
	var out []store.AccessRecord
	for i := len(s.records) - 1; i >= 0; i-- {
		if r := s.records[i]; r.MembershipID == membershipID {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
