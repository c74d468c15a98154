package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/gymgate/server/internal/db"
	"github.com/gymgate/server/internal/gymgate/access"
	"github.com/gymgate/server/internal/gymgate/store"
)

type AccessRecordStore struct {
	db     *sql.DB
	writer *dbpkg.Writer
	loc    *time.Location
}

func NewAccessRecordStore(db *sql.DB, writer *dbpkg.Writer, loc *time.Location) *AccessRecordStore {
	if loc == nil {
		loc = time.UTC
	}
	return &AccessRecordStore{db: db, writer: writer, loc: loc}
}

// Apply runs the counter mutation and the record insert in one transaction.
// The increment is a single guarded UPDATE, never a read-modify-write.
func (s *AccessRecordStore) Apply(ctx context.Context, rec store.AccessRecord, mut store.CounterMutation) error {
	if rec.At.IsZero() {
		rec.At = time.Now()
	}
	atMs := rec.At.UnixMilli()

	var allowed int
	if rec.Allowed {
		allowed = 1
	}
	var reason any
	if rec.Reason != access.ReasonNone {
		reason = string(rec.Reason)
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if mut.ResetTo != nil {
			if _, err := tx.ExecContext(ctx, `
UPDATE enrollments
SET weekly_accesses = ?,
    last_access_reset_at_ms = ?,
    updated_at_ms = ?
WHERE enrollment_id = ? AND last_access_reset_at_ms < ?;
`, *mut.ResetTo, mut.ResetAt.UnixMilli(), atMs, rec.MembershipID, mut.StaleBefore.UnixMilli()); err != nil {
				return fmt.Errorf("Apply reset: %w", err)
			}
		}

		if mut.Increment {
			res, err := tx.ExecContext(ctx, `
UPDATE enrollments
SET weekly_accesses = weekly_accesses + 1,
    updated_at_ms = ?
WHERE enrollment_id = ? AND (? = 0 OR weekly_accesses < ?);
`, atMs, rec.MembershipID, mut.Capacity, mut.Capacity)
			if err != nil {
				return fmt.Errorf("Apply increment: %w", err)
			}
			if n, _ := res.RowsAffected(); n != 1 {
				return s.incrementRefused(ctx, tx, rec.MembershipID)
			}
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO access_records(
  access_id, enrollment_id, identifier, accessed_at_ms, allowed, reason_code
) VALUES (?, ?, ?, ?, ?, ?);
`, rec.ID, rec.MembershipID, rec.Identifier, atMs, allowed, reason); err != nil {
			return fmt.Errorf("Apply insert: %w", err)
		}

		return nil
	})
}

// incrementRefused tells a vanished enrollment apart from a full counter.
func (s *AccessRecordStore) incrementRefused(ctx context.Context, tx *sql.Tx, membershipID string) error {
	var exists int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM enrollments WHERE enrollment_id = ?;`, membershipID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("Apply increment check: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("Apply %s: %w", membershipID, store.ErrMembershipNotFound)
	}
	return fmt.Errorf("Apply %s: %w", membershipID, store.ErrCounterConflict)
}

func (s *AccessRecordStore) ListRecent(ctx context.Context, membershipID string, limit int) ([]store.AccessRecord, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT access_id, enrollment_id, identifier, accessed_at_ms, allowed, reason_code
FROM access_records
WHERE enrollment_id = ?
ORDER BY accessed_at_ms DESC, rowid DESC
LIMIT ?;
`, membershipID, limit)
	if err != nil {
		return nil, fmt.Errorf("ListRecent query: %w", err)
	}
	defer rows.Close()

	var out []store.AccessRecord
	for rows.Next() {
		var (
			rec     store.AccessRecord
			atMs    int64
			allowed int
			reason  sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.MembershipID, &rec.Identifier, &atMs, &allowed, &reason); err != nil {
			return nil, fmt.Errorf("ListRecent scan: %w", err)
		}
		rec.At = fromMillis(atMs, s.loc)
		rec.Allowed = allowed == 1
		rec.Reason = access.ReasonCode(reason.String)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListRecent rows: %w", err)
	}
	return out, nil
}
