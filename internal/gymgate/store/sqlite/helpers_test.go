package sqlite_test

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gymgate/server/internal/db"
)

// openTestDB returns an in-memory SQLite connection with the production
// PRAGMAs and schema. Closed automatically when the test finishes.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// Shared cache keeps the in-memory database alive across the pool's
	// connection recycling; the test name keeps databases apart.
	dsn := fmt.Sprintf(
		"file:test_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
		strings.ReplaceAll(t.Name(), "/", "_"),
	)

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("openTestDB: sql.Open: %v", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: ping: %v", err)
	}

	if err := db.Migrate(context.Background(), conn); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: migrate: %v", err)
	}

	t.Cleanup(func() { conn.Close() })
	return conn
}

func newTestWriter(t *testing.T, conn *sql.DB) *db.Writer {
	t.Helper()

	w := db.NewWriter(conn)
	t.Cleanup(w.Close)
	return w
}

type seedOpts struct {
	identifier string
	active     bool
	modality   any // nil for NULL
	start, end any // "YYYY-MM-DD" or nil
	weekly     int
	resetAt    time.Time
}

// seedMember inserts a member with an enrollment and returns the enrollment id.
func seedMember(t *testing.T, conn *sql.DB, o seedOpts) string {
	t.Helper()
	ctx := context.Background()
	memberID := "m-" + o.identifier
	enrollmentID := "e-" + o.identifier

	active := 0
	if o.active {
		active = 1
	}
	if _, err := conn.ExecContext(ctx, `
INSERT INTO members(member_id, identifier, name, last_name, birth_date, active, created_at_ms, updated_at_ms)
VALUES (?, ?, 'Test', 'Member', '1990-05-17', ?, 0, 0);
`, memberID, o.identifier, active); err != nil {
		t.Fatalf("seed member: %v", err)
	}

	if _, err := conn.ExecContext(ctx, `
INSERT INTO enrollments(
  enrollment_id, member_id, modality, start_date, end_date,
  weekly_accesses, last_access_reset_at_ms, created_at_ms, updated_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, 0, 0);
`, enrollmentID, memberID, o.modality, o.start, o.end, o.weekly, o.resetAt.UnixMilli()); err != nil {
		t.Fatalf("seed enrollment: %v", err)
	}
	return enrollmentID
}

func seedMemberOnly(t *testing.T, conn *sql.DB, identifier string) {
	t.Helper()
	if _, err := conn.ExecContext(context.Background(), `
INSERT INTO members(member_id, identifier, active, created_at_ms, updated_at_ms)
VALUES (?, ?, 1, 0, 0);
`, "m-"+identifier, identifier); err != nil {
		t.Fatalf("seed member only: %v", err)
	}
}

func weeklyAccesses(t *testing.T, conn *sql.DB, enrollmentID string) (int, int64) {
	t.Helper()
	var weekly int
	var resetMs int64
	if err := conn.QueryRowContext(context.Background(),
		`SELECT weekly_accesses, last_access_reset_at_ms FROM enrollments WHERE enrollment_id = ?`, enrollmentID,
	).Scan(&weekly, &resetMs); err != nil {
		t.Fatalf("weeklyAccesses: %v", err)
	}
	return weekly, resetMs
}

func countRecords(t *testing.T, conn *sql.DB, enrollmentID string) int {
	t.Helper()
	var n int
	if err := conn.QueryRowContext(context.Background(),
		`SELECT COUNT(*) FROM access_records WHERE enrollment_id = ?`, enrollmentID,
	).Scan(&n); err != nil {
		t.Fatalf("countRecords: %v", err)
	}
	return n
}
