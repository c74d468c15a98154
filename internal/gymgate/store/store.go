package store

import (
	"context"
	"errors"
	"time"

	"github.com/gymgate/server/internal/gymgate/access"
)

var (
	// ErrMembershipNotFound means the enrollment a mutation targets no longer
	// exists.
	ErrMembershipNotFound = errors.New("membership not found")

	// ErrCounterConflict means the guarded increment was refused because the
	// stored counter already reached capacity.
	ErrCounterConflict = errors.New("weekly counter conflict")
)

// MembershipStore is the snapshot reader. It reflects storage at call time and
// never caches.
type MembershipStore interface {
	// LoadSnapshot returns nil, nil when no member has the identifier.
	LoadSnapshot(ctx context.Context, identifier string) (*access.Snapshot, error)

	// ResetStaleCounters zeros every weekly counter last reset before
	// staleBefore and stamps resetAt. Returns the number of enrollments reset.
	ResetStaleCounters(ctx context.Context, staleBefore, resetAt time.Time) (int64, error)
}
