// Package access holds the access decision engine: a pure function of a
// membership snapshot and the current instant. It performs no I/O and is safe
// for concurrent use.
package access

import (
	"fmt"
	"time"

	"github.com/gymgate/server/internal/gymgate/clock"
)

type Config struct {
	// MinTimeBetweenAccesses is the duplicate-scan window. A granted scan
	// followed by another within this window counts as the same visit. Zero
	// disables the window.
	MinTimeBetweenAccesses time.Duration

	// Location is the gym's civil timezone. Defaults to UTC.
	Location *time.Location
}

type Engine struct {
	minInterval time.Duration
	loc         *time.Location
}

func NewEngine(cfg Config) *Engine {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	interval := cfg.MinTimeBetweenAccesses
	if interval < 0 {
		interval = 0
	}
	return &Engine{minInterval: interval, loc: loc}
}

func (e *Engine) Location() *time.Location { return e.loc }

// Decide evaluates snap at now. Every domain outcome, including an unknown
// identifier, is a Decision; an error means the snapshot violates an invariant
// and must not be turned into a denial.
func (e *Engine) Decide(snap *Snapshot, now time.Time) (Decision, error) {
	now = now.In(e.loc)
	d := Decision{WeekStart: clock.StartOfISOWeek(now, e.loc)}

	if snap == nil {
		return deny(d, ReasonUnknownIdentifier), nil
	}
	en := snap.Enrollment
	if en == nil {
		return deny(d, ReasonNoEnrollment), nil
	}
	if err := validateEnrollment(en); err != nil {
		return Decision{}, err
	}

	// The reset applies whatever the outcome, so it is settled before any
	// allow/deny rule runs.
	d.EffectiveWeekly = en.WeeklyAccesses
	if e.needsReset(en, now) {
		zero := 0
		d.ResetCounterTo = &zero
		d.EffectiveWeekly = 0
	}
	d.Capacity, _ = en.Modality.Capacity()

	if !snap.Member.Active {
		return deny(d, ReasonAccountSuspended), nil
	}
	if en.Modality == ModalityNone || en.StartDate == nil || en.EndDate == nil {
		return deny(d, ReasonEnrollmentNotConfigured), nil
	}
	if !e.withinPeriod(en, now) {
		return deny(d, ReasonOutsideEnrollmentPeriod), nil
	}

	if en.Modality == ModalityFree {
		d.Allowed = true
		return d, nil
	}

	if e.isDuplicateScan(snap.LastAccess, now) {
		d.Allowed = true
		d.DuplicateScan = true
		return d, nil
	}
	if d.EffectiveWeekly >= d.Capacity {
		return deny(d, ReasonWeeklyLimitReached), nil
	}

	d.Allowed = true
	d.ShouldIncrementCounter = true
	return d, nil
}

// Usage reports the quota for the ISO week containing now, applying the same
// reset rule as Decide without asking for it to be persisted.
func (e *Engine) Usage(snap *Snapshot, now time.Time) (WeeklyUsage, error) {
	if snap == nil || snap.Enrollment == nil {
		return WeeklyUsage{}, fmt.Errorf("%w: usage needs an enrollment", ErrInvalidSnapshot)
	}
	en := snap.Enrollment
	if err := validateEnrollment(en); err != nil {
		return WeeklyUsage{}, err
	}

	now = now.In(e.loc)
	u := WeeklyUsage{
		Modality:       en.Modality,
		WeeklyAccesses: en.WeeklyAccesses,
		WeekStart:      clock.StartOfISOWeek(now, e.loc),
	}
	if e.needsReset(en, now) {
		u.WeeklyAccesses = 0
	}
	if n, ok := en.Modality.Capacity(); ok {
		remaining := max(n-u.WeeklyAccesses, 0)
		u.Capacity = &n
		u.Remaining = &remaining
	}
	return u, nil
}

func (e *Engine) needsReset(en *Enrollment, now time.Time) bool {
	return !clock.SameISOWeek(now, en.LastAccessResetAt, e.loc)
}

func (e *Engine) withinPeriod(en *Enrollment, now time.Time) bool {
	return clock.CompareDates(now, *en.StartDate, e.loc) >= 0 &&
		clock.CompareDates(now, *en.EndDate, e.loc) <= 0
}

// isDuplicateScan treats a scan shortly after a granted one as a re-read of
// the same visit. Denied attempts never open the window.
func (e *Engine) isDuplicateScan(last *LastAccess, now time.Time) bool {
	if last == nil || !last.Allowed || e.minInterval == 0 {
		return false
	}
	return now.Sub(last.At) < e.minInterval
}

func validateEnrollment(en *Enrollment) error {
	if err := en.Modality.validate(); err != nil {
		return err
	}
	if en.WeeklyAccesses < 0 {
		return fmt.Errorf("%w: negative weekly accesses %d on enrollment %s",
			ErrInvalidSnapshot, en.WeeklyAccesses, en.ID)
	}
	return nil
}

func deny(d Decision, reason ReasonCode) Decision {
	d.Allowed = false
	d.Reason = reason
	d.ShouldIncrementCounter = false
	d.DuplicateScan = false
	return d
}
