package service

import (
	"time"

	"github.com/gymgate/server/internal/gymgate/access"
	"github.com/gymgate/server/internal/gymgate/types"
)

func (s *AccessService) respond(snap *access.Snapshot, d access.Decision, now time.Time, accessID string) types.AccessResponse {
	resp := types.AccessResponse{
		Allowed:    d.Allowed,
		ReasonCode: reasonString(d.Reason),
		AccessID:   accessID,
		ServerTime: now.Format(time.RFC3339Nano),
	}
	if snap != nil {
		resp.Membership = summarize(snap, d)
	}
	return resp
}

// recordFailure is the fail-closed response. No membership is attached since
// the stored state is unknown.
func recordFailure(now time.Time) types.AccessResponse {
	return types.AccessResponse{
		Allowed:    false,
		ReasonCode: reasonString(access.ReasonRecordFailure),
		ServerTime: now.Format(time.RFC3339Nano),
	}
}

// summarize reports the counter as it stands after the decision's mutation.
func summarize(snap *access.Snapshot, d access.Decision) *types.MembershipSummary {
	m := snap.Member
	sum := &types.MembershipSummary{
		MemberID:   m.ID,
		Identifier: m.Identifier,
		Name:       m.Name,
		LastName:   m.LastName,
		BirthDate:  dateString(m.BirthDate),
	}

	en := snap.Enrollment
	if en == nil {
		return sum
	}
	sum.Modality = modalityString(en.Modality)
	sum.StartDate = dateString(en.StartDate)
	sum.EndDate = dateString(en.EndDate)

	weekly := d.EffectiveWeekly
	if d.ShouldIncrementCounter {
		weekly++
	}
	sum.WeeklyAccesses = weekly
	if n, ok := en.Modality.Capacity(); ok {
		remaining := max(n-weekly, 0)
		sum.RemainingAccesses = &remaining
	}
	return sum
}

func reasonString(r access.ReasonCode) *string {
	if r == access.ReasonNone {
		return nil
	}
	s := string(r)
	return &s
}

func modalityString(m access.Modality) *string {
	if m == access.ModalityNone {
		return nil
	}
	s := string(m)
	return &s
}

func dateString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.DateOnly)
	return &s
}
