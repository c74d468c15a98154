package memory

import (
	"context"
	"strings"
	"time"

	"github.com/gymgate/server/internal/gymgate/access"
)

func (s *Store) LoadSnapshot(_ context.Context, identifier string) (*access.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byIdentifier[strings.TrimSpace(identifier)]
	if !ok {
		return nil, nil
	}

	m := s.members[id]
	m.BirthDate = cloneTime(m.BirthDate)
	snap := &access.Snapshot{Member: m}

	if en, ok := s.enrollments[id]; ok {
		c := *en
		c.StartDate = cloneTime(en.StartDate)
		c.EndDate = cloneTime(en.EndDate)
		snap.Enrollment = &c

		if last := s.lastRecordLocked(en.ID); last != nil {
			snap.LastAccess = &access.LastAccess{
				At:      last.At,
				Allowed: last.Allowed,
				Reason:  last.Reason,
			}
		}
	}
	return snap, nil
}

func (s *Store) ResetStaleCounters(_ context.Context, staleBefore, resetAt time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, en := range s.enrollments {
		if en.LastAccessResetAt.Before(staleBefore) {
			en.WeeklyAccesses = 0
			en.LastAccessResetAt = resetAt
			n++
		}
	}
	return n, nil
}
