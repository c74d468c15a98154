package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/gymgate/server/internal/gymgate/access"
	"github.com/gymgate/server/internal/gymgate/clock"
	"github.com/gymgate/server/internal/gymgate/store"
	"github.com/gymgate/server/internal/gymgate/types"
	"github.com/gymgate/server/internal/logger"
)

var (
	ErrInvalidIdentifier = errors.New("identifier is required")
	ErrMemberNotFound    = errors.New("member not found")
	ErrNoEnrollment      = errors.New("member has no enrollment")
)

const (
	DefaultStorageTimeout = 3 * time.Second
	DefaultHistoryLimit   = 20
	MaxHistoryLimit       = 100
)

type Options struct {
	// StorageTimeout bounds every storage call of one request. A timeout is
	// a RECORD_FAILURE, never retried.
	StorageTimeout time.Duration

	Clock  clock.Clock
	Logger *logger.Logger

	// NewID generates access record ids. Defaults to uuid.NewString.
	NewID func() string
}

type AccessService struct {
	directory *MemberDirectory
	engine    *access.Engine
	records   store.AccessRecordStore
	clock     clock.Clock
	log       *logger.Logger
	timeout   time.Duration
	newID     func() string
}

func NewAccessService(dir *MemberDirectory, engine *access.Engine, records store.AccessRecordStore, opt Options) *AccessService {
	if opt.StorageTimeout <= 0 {
		opt.StorageTimeout = DefaultStorageTimeout
	}
	if opt.Clock == nil {
		opt.Clock = clock.NewSystem(engine.Location())
	}
	if opt.Logger == nil {
		opt.Logger = logger.NewNop()
	}
	if opt.NewID == nil {
		opt.NewID = uuid.NewString
	}
	return &AccessService{
		directory: dir,
		engine:    engine,
		records:   records,
		clock:     opt.Clock,
		log:       opt.Logger,
		timeout:   opt.StorageTimeout,
		newID:     opt.NewID,
	}
}

// DecideAndRecord decides whether the identifier gets in and persists the
// attempt together with the counter mutation.
//
// Storage failures never escape: they come back as a denied RECORD_FAILURE
// response. The returned error is ErrInvalidIdentifier or an invariant
// violation wrapping access.ErrInvariant.
func (s *AccessService) DecideAndRecord(ctx context.Context, req types.AccessRequest) (types.AccessResponse, error) {
	now := s.clock.Now()

	identifier, err := s.directory.Normalize(req.Identifier)
	if err != nil {
		return types.AccessResponse{}, err
	}

	snap, d, err := s.decide(ctx, identifier, now)
	if err != nil {
		if errors.Is(err, access.ErrInvariant) {
			s.log.Error("invariant violated", "identifier", identifier, "error", err)
			return types.AccessResponse{}, err
		}
		s.log.Error("snapshot load failed", "identifier", identifier, "error", err)
		return recordFailure(now), nil
	}

	log := s.log.With("identifier", identifier)

	// Nothing to attach a record to.
	if snap == nil || snap.Enrollment == nil {
		log.Info("access denied", "reason_code", d.Reason)
		return s.respond(snap, d, now, ""), nil
	}

	rec := store.AccessRecord{
		ID:           s.newID(),
		MembershipID: snap.Enrollment.ID,
		Identifier:   identifier,
		At:           now,
		Allowed:      d.Allowed,
		Reason:       d.Reason,
	}

	sctx, cancel := s.storageContext(ctx)
	err = s.records.Apply(sctx, rec, mutationFor(d, now))
	cancel()
	if err != nil {
		log.Error("access record failed", "membership_id", rec.MembershipID, "error", err)
		s.appendFailureRecord(ctx, rec)
		return recordFailure(now), nil
	}

	log.Info("access decided",
		"membership_id", rec.MembershipID,
		"allowed", d.Allowed,
		"reason_code", d.Reason,
		"duplicate_scan", d.DuplicateScan,
		"counter_reset", d.ResetCounterTo != nil,
	)
	return s.respond(snap, d, now, rec.ID), nil
}

// Validate is DecideAndRecord without persistence.
func (s *AccessService) Validate(ctx context.Context, req types.AccessRequest) (types.AccessResponse, error) {
	now := s.clock.Now()

	identifier, err := s.directory.Normalize(req.Identifier)
	if err != nil {
		return types.AccessResponse{}, err
	}

	snap, d, err := s.decide(ctx, identifier, now)
	if err != nil {
		if errors.Is(err, access.ErrInvariant) {
			s.log.Error("invariant violated", "identifier", identifier, "error", err)
			return types.AccessResponse{}, err
		}
		s.log.Error("snapshot load failed", "identifier", identifier, "error", err)
		return recordFailure(now), nil
	}

	// The summary shows the counter as it would be after this visit.
	return s.respond(snap, d, now, ""), nil
}

// Usage reports the member's quota for the current ISO week.
func (s *AccessService) Usage(ctx context.Context, identifier string) (types.WeeklyUsageResponse, error) {
	now := s.clock.Now()

	snap, err := s.lookupEnrolled(ctx, identifier)
	if err != nil {
		return types.WeeklyUsageResponse{}, err
	}

	u, err := s.engine.Usage(snap, now)
	if err != nil {
		return types.WeeklyUsageResponse{}, err
	}

	return types.WeeklyUsageResponse{
		Identifier:        snap.Member.Identifier,
		Modality:          modalityString(u.Modality),
		WeeklyAccesses:    u.WeeklyAccesses,
		Capacity:          u.Capacity,
		RemainingAccesses: u.Remaining,
		WeekStart:         u.WeekStart.Format(time.RFC3339),
	}, nil
}

// History lists the enrollment's most recent access records, newest first.
// limit <= 0 means DefaultHistoryLimit; it is capped at MaxHistoryLimit.
func (s *AccessService) History(ctx context.Context, identifier string, limit int) (types.AccessHistoryResponse, error) {
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}

	snap, err := s.lookupEnrolled(ctx, identifier)
	if err != nil {
		return types.AccessHistoryResponse{}, err
	}

	sctx, cancel := s.storageContext(ctx)
	defer cancel()
	recs, err := s.records.ListRecent(sctx, snap.Enrollment.ID, limit)
	if err != nil {
		return types.AccessHistoryResponse{}, err
	}

	items := make([]types.AccessRecordView, 0, len(recs))
	for _, r := range recs {
		items = append(items, types.AccessRecordView{
			AccessID:   r.ID,
			AccessedAt: r.At.In(s.engine.Location()).Format(time.RFC3339Nano),
			Allowed:    r.Allowed,
			ReasonCode: reasonString(r.Reason),
		})
	}
	return types.AccessHistoryResponse{Identifier: snap.Member.Identifier, Items: items}, nil
}

func (s *AccessService) decide(ctx context.Context, identifier string, now time.Time) (*access.Snapshot, access.Decision, error) {
	sctx, cancel := s.storageContext(ctx)
	defer cancel()

	snap, err := s.directory.Lookup(sctx, identifier)
	if err != nil {
		return nil, access.Decision{}, err
	}
	d, err := s.engine.Decide(snap, now)
	if err != nil {
		return nil, access.Decision{}, err
	}
	return snap, d, nil
}

func (s *AccessService) lookupEnrolled(ctx context.Context, identifier string) (*access.Snapshot, error) {
	sctx, cancel := s.storageContext(ctx)
	defer cancel()

	snap, err := s.directory.Lookup(sctx, identifier)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, ErrMemberNotFound
	}
	if snap.Enrollment == nil {
		return nil, ErrNoEnrollment
	}
	return snap, nil
}

// storageContext detaches from the caller's cancellation: a decision runs to
// completion or times out.
func (s *AccessService) storageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
}

// appendFailureRecord logs a denied RECORD_FAILURE attempt without touching
// the counter. Best effort: storage may be what failed in the first place.
func (s *AccessService) appendFailureRecord(ctx context.Context, failed store.AccessRecord) {
	rec := failed
	rec.ID = s.newID()
	rec.Allowed = false
	rec.Reason = access.ReasonRecordFailure

	sctx, cancel := s.storageContext(ctx)
	defer cancel()
	if err := s.records.Apply(sctx, rec, store.CounterMutation{}); err != nil {
		s.log.Warn("failure record not persisted", "membership_id", rec.MembershipID, "error", err)
	}
}

func mutationFor(d access.Decision, now time.Time) store.CounterMutation {
	mut := store.CounterMutation{
		Increment: d.ShouldIncrementCounter,
		Capacity:  d.Capacity,
	}
	if d.ResetCounterTo != nil {
		mut.ResetTo = d.ResetCounterTo
		mut.ResetAt = now
		mut.StaleBefore = d.WeekStart
	}
	return mut
}
