package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type SeedDevOptions struct {
	// Identifier of the starter member. Empty skips seeding.
	Identifier string

	// Location is the gym's timezone; enrollment dates are civil dates in it.
	Location *time.Location

	Now time.Time
}

// SeedDev creates (or refreshes) one active TWO-visit member enrolled from a
// month ago to a month ahead, so a fresh dev database has someone to scan.
func SeedDev(ctx context.Context, db *sql.DB, opt SeedDevOptions) error {
	identifier := strings.TrimSpace(opt.Identifier)
	if identifier == "" {
		return nil
	}
	loc := opt.Location
	if loc == nil {
		loc = time.UTC
	}
	now := opt.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.In(loc)
	nowMs := now.UnixMilli()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO members(member_id, identifier, name, last_name, active, created_at_ms, updated_at_ms)
VALUES (?, ?, 'Dev', 'Member', 1, ?, ?)
ON CONFLICT(identifier) DO UPDATE SET
  active = 1,
  updated_at_ms = excluded.updated_at_ms;
`, uuid.NewString(), identifier, nowMs, nowMs); err != nil {
		return fmt.Errorf("seed member %s: %w", identifier, err)
	}

	var memberID string
	if err := tx.QueryRowContext(ctx,
		`SELECT member_id FROM members WHERE identifier = ?;`, identifier,
	).Scan(&memberID); err != nil {
		return fmt.Errorf("seed member lookup: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO enrollments(
  enrollment_id, member_id, modality, start_date, end_date,
  weekly_accesses, last_access_reset_at_ms, created_at_ms, updated_at_ms
) VALUES (?, ?, 'TWO', ?, ?, 0, ?, ?, ?)
ON CONFLICT(member_id) DO UPDATE SET
  modality   = excluded.modality,
  start_date = excluded.start_date,
  end_date   = excluded.end_date,
  updated_at_ms = excluded.updated_at_ms;
`,
		uuid.NewString(), memberID,
		now.AddDate(0, -1, 0).Format(DateLayout), now.AddDate(0, 1, 0).Format(DateLayout),
		nowMs, nowMs, nowMs,
	); err != nil {
		return fmt.Errorf("seed enrollment %s: %w", identifier, err)
	}

	return tx.Commit()
}

// DateLayout is how civil dates are stored.
const DateLayout = "2006-01-02"
