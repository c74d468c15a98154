package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/gymgate/server/internal/db"
	"github.com/gymgate/server/internal/gymgate/access"
)

type MembershipStore struct {
	db     *sql.DB
	writer *dbpkg.Writer
	loc    *time.Location
}

// NewMembershipStore reads civil dates as midnight in loc.
func NewMembershipStore(db *sql.DB, writer *dbpkg.Writer, loc *time.Location) *MembershipStore {
	if loc == nil {
		loc = time.UTC
	}
	return &MembershipStore{db: db, writer: writer, loc: loc}
}

// LoadSnapshot fetches member, enrollment and latest access record in one
// statement.
func (s *MembershipStore) LoadSnapshot(ctx context.Context, identifier string) (*access.Snapshot, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, nil
	}

	var (
		memberID, ident, name, lastName string
		birthDate                       sql.NullString
		active                          int

		enrollmentID, modality, startDate, endDate sql.NullString
		weekly, resetMs                            sql.NullInt64

		lastAtMs, lastAllowed sql.NullInt64
		lastReason            sql.NullString
	)

	err := s.db.QueryRowContext(ctx, `
SELECT m.member_id, m.identifier, m.name, m.last_name, m.birth_date, m.active,
       e.enrollment_id, e.modality, e.start_date, e.end_date,
       e.weekly_accesses, e.last_access_reset_at_ms,
       a.accessed_at_ms, a.allowed, a.reason_code
FROM members m
LEFT JOIN enrollments e ON e.member_id = m.member_id
LEFT JOIN access_records a ON a.access_id = (
  SELECT r.access_id FROM access_records r
  WHERE r.enrollment_id = e.enrollment_id
  ORDER BY r.accessed_at_ms DESC, r.rowid DESC
  LIMIT 1
)
WHERE m.identifier = ?;
`, identifier).Scan(
		&memberID, &ident, &name, &lastName, &birthDate, &active,
		&enrollmentID, &modality, &startDate, &endDate,
		&weekly, &resetMs,
		&lastAtMs, &lastAllowed, &lastReason,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("LoadSnapshot query: %w", err)
	}

	snap := &access.Snapshot{
		Member: access.Member{
			ID:         memberID,
			Identifier: ident,
			Name:       name,
			LastName:   lastName,
			Active:     active == 1,
		},
	}
	if snap.Member.BirthDate, err = s.parseDate(birthDate); err != nil {
		return nil, err
	}

	if !enrollmentID.Valid {
		return snap, nil
	}

	m, err := access.ParseModality(modality.String)
	if err != nil {
		return nil, fmt.Errorf("LoadSnapshot enrollment %s: %w", enrollmentID.String, err)
	}
	en := &access.Enrollment{
		ID:                enrollmentID.String,
		Modality:          m,
		WeeklyAccesses:    int(weekly.Int64),
		LastAccessResetAt: fromMillis(resetMs.Int64, s.loc),
	}
	if en.StartDate, err = s.parseDate(startDate); err != nil {
		return nil, err
	}
	if en.EndDate, err = s.parseDate(endDate); err != nil {
		return nil, err
	}
	snap.Enrollment = en

	if lastAtMs.Valid {
		snap.LastAccess = &access.LastAccess{
			At:      fromMillis(lastAtMs.Int64, s.loc),
			Allowed: lastAllowed.Int64 == 1,
			Reason:  access.ReasonCode(lastReason.String),
		}
	}
	return snap, nil
}

func (s *MembershipStore) ResetStaleCounters(ctx context.Context, staleBefore, resetAt time.Time) (int64, error) {
	staleMs := staleBefore.UnixMilli()
	resetMs := resetAt.UnixMilli()

	var n int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE enrollments
SET weekly_accesses = 0,
    last_access_reset_at_ms = ?,
    updated_at_ms = ?
WHERE last_access_reset_at_ms < ?;
`, resetMs, resetMs, staleMs)
		if err != nil {
			return fmt.Errorf("ResetStaleCounters: %w", err)
		}
		n, _ = res.RowsAffected()
		return nil
	})
	return n, err
}

func (s *MembershipStore) parseDate(v sql.NullString) (*time.Time, error) {
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dbpkg.DateLayout, strings.TrimSpace(v.String), s.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: bad stored date %q", access.ErrInvalidSnapshot, v.String)
	}
	return &t, nil
}

func fromMillis(ms int64, loc *time.Location) time.Time {
	return time.UnixMilli(ms).In(loc)
}
