package store

import (
	"context"
	"time"

	"github.com/gymgate/server/internal/gymgate/access"
)

// AccessRecord is one access attempt. Records are append-only.
type AccessRecord struct {
	ID           string
	MembershipID string
	Identifier   string
	At           time.Time
	Allowed      bool
	Reason       access.ReasonCode
}

// CounterMutation is the counter change a decision asks for. The zero value
// changes nothing.
type CounterMutation struct {
	// ResetTo zeroes the counter when the stored reset timestamp precedes
	// StaleBefore. A counter already reset this week is left alone.
	ResetTo     *int
	ResetAt     time.Time
	StaleBefore time.Time

	// Increment adds one visit, refused with ErrCounterConflict once the
	// counter reached Capacity. Capacity 0 means unbounded.
	Increment bool
	Capacity  int
}

// AccessRecordStore is the access recorder.
type AccessRecordStore interface {
	// Apply appends rec and applies mut as one atomic unit: either both are
	// persisted or neither is.
	Apply(ctx context.Context, rec AccessRecord, mut CounterMutation) error

	// ListRecent returns up to limit records of a membership, newest first.
	ListRecent(ctx context.Context, membershipID string, limit int) ([]AccessRecord, error)
}
