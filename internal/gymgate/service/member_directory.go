package service

import (
	"context"
	"strings"

	"github.com/gymgate/server/internal/gymgate/access"
	"github.com/gymgate/server/internal/gymgate/store"
)

// MemberDirectory resolves presented identifiers to membership snapshots.
type MemberDirectory struct {
	store store.MembershipStore
}

func NewMemberDirectory(st store.MembershipStore) *MemberDirectory {
	return &MemberDirectory{store: st}
}

// Normalize trims surrounding whitespace. Anything else is kept as presented.
func (d *MemberDirectory) Normalize(identifier string) (string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "", ErrInvalidIdentifier
	}
	return identifier, nil
}

// Lookup returns nil, nil for an unknown identifier.
func (d *MemberDirectory) Lookup(ctx context.Context, identifier string) (*access.Snapshot, error) {
	identifier, err := d.Normalize(identifier)
	if err != nil {
		return nil, err
	}
	return d.store.LoadSnapshot(ctx, identifier)
}
