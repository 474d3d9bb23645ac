package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/prevaildb/prevail/core"
)

// SQLite is a snapshot store backed by a relational table plus a pointer row
// naming the latest completed snapshot. The pointer is committed only after
// the body insert, so a crash mid-write leaves the previous snapshot latest.
type SQLite struct {
	db *sql.DB
}

// Open a snapshot store on the given database handle
func Open(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

// Write persists a snapshot body under the next id and then records that id
// as latest, in a separate transaction
func (s *SQLite) Write(state []byte, logOffset uint64) (uint64, error) {
	id, err := s.NextSnapshotID()
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return 0, fmt.Errorf("could not start a write transaction: %v", err)
	}
	defer tx.Rollback()

	// OR REPLACE so a torn body row left by a crash before the pointer
	// moved is overwritten when its id is reused
	statement := `INSERT OR REPLACE INTO snapshots (id, log_offset, data) VALUES (?, ?, ?)`
	if _, err := tx.Exec(statement, id, logOffset, state); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	// the body is durable, now move the latest pointer
	statement = `INSERT INTO snapshot_latest (k, id) VALUES (1, ?)
	             ON CONFLICT (k) DO UPDATE SET id = excluded.id`
	if _, err := s.db.Exec(statement, id); err != nil {
		return 0, err
	}
	return id, nil
}

// ReadLatest returns the most recently completed snapshot
func (s *SQLite) ReadLatest() (core.Snapshot, error) {
	snapshot := core.Snapshot{}
	statement := `SELECT s.id, s.log_offset, s.data FROM snapshots s
	              JOIN snapshot_latest l ON l.id = s.id LIMIT 1`
	err := s.db.QueryRow(statement).Scan(&snapshot.ID, &snapshot.LogOffset, &snapshot.State)
	if err == sql.ErrNoRows {
		return core.Snapshot{}, core.ErrNoSnapshot
	}
	if err != nil {
		return core.Snapshot{}, err
	}
	return snapshot, nil
}

// NextSnapshotID is the id the next written snapshot will get
func (s *SQLite) NextSnapshotID() (uint64, error) {
	var id uint64
	statement := `SELECT id FROM snapshot_latest WHERE k = 1`
	err := s.db.QueryRow(statement).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return id + 1, nil
}

// Close the underlying database connection
func (s *SQLite) Close() error {
	return s.db.Close()
}
