package access

import (
	"fmt"
	"strings"
	"time"
)

// Modality is the membership plan. The empty value means no plan is
// configured on the enrollment.
type Modality string

const (
	ModalityNone  Modality = ""
	ModalityFree  Modality = "FREE"
	ModalityTwo   Modality = "TWO"
	ModalityThree Modality = "THREE"
)

// ParseModality accepts the stored spelling of a modality. An empty string
// parses to ModalityNone; anything unrecognised is an invariant violation.
func ParseModality(s string) (Modality, error) {
	m := Modality(strings.TrimSpace(s))
	if err := m.validate(); err != nil {
		return ModalityNone, err
	}
	return m, nil
}

func (m Modality) validate() error {
	switch m {
	case ModalityNone, ModalityFree, ModalityTwo, ModalityThree:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidModality, string(m))
}

// Capacity is the weekly visit allowance. ok is false for FREE (unbounded)
// and for an unconfigured modality.
func (m Modality) Capacity() (n int, ok bool) {
	switch m {
	case ModalityTwo:
		return 2, true
	case ModalityThree:
		return 3, true
	}
	return 0, false
}

// ReasonCode explains a denial. Codes are stable strings exposed to callers.
type ReasonCode string

const (
	ReasonNone                    ReasonCode = ""
	ReasonUnknownIdentifier       ReasonCode = "UNKNOWN_IDENTIFIER"
	ReasonNoEnrollment            ReasonCode = "NO_ENROLLMENT"
	ReasonAccountSuspended        ReasonCode = "ACCOUNT_SUSPENDED"
	ReasonEnrollmentNotConfigured ReasonCode = "ENROLLMENT_NOT_CONFIGURED"
	ReasonOutsideEnrollmentPeriod ReasonCode = "OUTSIDE_ENROLLMENT_PERIOD"
	ReasonWeeklyLimitReached      ReasonCode = "WEEKLY_LIMIT_REACHED"
	ReasonRecordFailure           ReasonCode = "RECORD_FAILURE"
)

// Member carries the person's identity. Only Active takes part in the
// decision; the rest is for display.
type Member struct {
	ID         string
	Identifier string
	Name       string
	LastName   string
	BirthDate  *time.Time
	Active     bool
}

// Enrollment is the counter state of the member's current enrollment.
// StartDate and EndDate are civil dates; the window is inclusive on both ends.
type Enrollment struct {
	ID                string
	Modality          Modality
	StartDate         *time.Time
	EndDate           *time.Time
	WeeklyAccesses    int
	LastAccessResetAt time.Time
}

// LastAccess is the most recent access attempt recorded for the enrollment.
type LastAccess struct {
	At      time.Time
	Allowed bool
	Reason  ReasonCode
}

// Snapshot is everything the engine needs for one decision. A nil *Snapshot
// means the identifier is unknown; a nil Enrollment means the member was never
// enrolled.
type Snapshot struct {
	Member     Member
	Enrollment *Enrollment
	LastAccess *LastAccess
}

// Decision is the engine's verdict plus the counter mutation it requires.
type Decision struct {
	Allowed bool
	Reason  ReasonCode

	// ShouldIncrementCounter is set only for a granted, non-duplicate visit
	// under capacity.
	ShouldIncrementCounter bool

	// ResetCounterTo is non-nil when the stored counter belongs to an earlier
	// ISO week. It is independent of Allowed.
	ResetCounterTo *int

	// WeekStart is Monday 00:00 of the decision's ISO week.
	WeekStart time.Time

	// EffectiveWeekly is the weekly count the decision was made against,
	// before any increment.
	EffectiveWeekly int

	// Capacity is zero for FREE and unconfigured modalities.
	Capacity int

	DuplicateScan bool
}

// WeeklyUsage is a read-only view of an enrollment's quota for the current
// ISO week.
type WeeklyUsage struct {
	Modality       Modality
	WeeklyAccesses int
	Capacity       *int
	Remaining      *int
	WeekStart      time.Time
}
