package fixture

import (
	"context"
	"strings"
	"time"

	"github.com/gymgate/server/internal/gymgate/access"
	"github.com/gymgate/server/internal/gymgate/clock"
	"github.com/gymgate/server/internal/gymgate/store"
	"github.com/gymgate/server/internal/gymgate/store/memory"
)

type Backend interface {
	store.MembershipStore
	store.AccessRecordStore
}

// Router serves fixture identifiers and memberships from an in-memory store
// and everything else from primary.
//
// A fixture member is rebuilt from Roster as of clk.Now() before each lookup,
// so its enrollment window and weekly counter stay relative to today however
// long the process runs. Its access records are kept.
type Router struct {
	primary  Backend
	fixtures *memory.Store
	clk      clock.Clock
	opt      Options
}

func NewRouter(primary Backend, clk clock.Clock, opt Options) *Router {
	return &Router{
		primary:  primary,
		fixtures: memory.New(Roster(clk.Now(), clk.Location(), opt)...),
		clk:      clk,
		opt:      opt,
	}
}

// Fixtures exposes the in-memory fixture store.
func (r *Router) Fixtures() *memory.Store { return r.fixtures }

// IsFixture reports whether the identifier belongs to a fixture member.
func (r *Router) IsFixture(identifier string) bool {
	return r.fixtures.Has(identifier)
}

func (r *Router) LoadSnapshot(ctx context.Context, identifier string) (*access.Snapshot, error) {
	if r.IsFixture(identifier) {
		r.refresh(identifier)
		return r.fixtures.LoadSnapshot(ctx, identifier)
	}
	return r.primary.LoadSnapshot(ctx, identifier)
}

func (r *Router) ResetStaleCounters(ctx context.Context, staleBefore, resetAt time.Time) (int64, error) {
	n, err := r.fixtures.ResetStaleCounters(ctx, staleBefore, resetAt)
	if err != nil {
		return n, err
	}
	m, err := r.primary.ResetStaleCounters(ctx, staleBefore, resetAt)
	return n + m, err
}

func (r *Router) Apply(ctx context.Context, rec store.AccessRecord, mut store.CounterMutation) error {
	if r.fixtures.HasMembership(rec.MembershipID) {
		return r.fixtures.Apply(ctx, rec, mut)
	}
	return r.primary.Apply(ctx, rec, mut)
}

func (r *Router) ListRecent(ctx context.Context, membershipID string, limit int) ([]store.AccessRecord, error) {
	if r.fixtures.HasMembership(membershipID) {
		return r.fixtures.ListRecent(ctx, membershipID, limit)
	}
	return r.primary.ListRecent(ctx, membershipID, limit)
}

// refresh resets one fixture member to its roster state as of now.
func (r *Router) refresh(identifier string) {
	identifier = strings.TrimSpace(identifier)
	for _, m := range Roster(r.clk.Now(), r.clk.Location(), r.opt) {
		if m.Member.Identifier == identifier {
			r.fixtures.Put(m)
			return
		}
	}
}
