// Package sqlite is the SQLite storage backend. Reads go straight to the
// connection; every write is funnelled through db.Writer.
package sqlite

import (
	"database/sql"
	"time"

	dbpkg "github.com/gymgate/server/internal/db"
)

// Store serves both the snapshot reader and the access recorder over one
// connection and writer.
type Store struct {
	*MembershipStore
	*AccessRecordStore
}

func New(db *sql.DB, writer *dbpkg.Writer, loc *time.Location) *Store {
	return &Store{
		MembershipStore:   NewMembershipStore(db, writer, loc),
		AccessRecordStore: NewAccessRecordStore(db, writer, loc),
	}
}
