package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/prevaildb/prevail/core"
)

// SQLite is a durable command log stored as rows in a relational table,
// one row per record, ordered by an integer sequence column.
type SQLite struct {
	db *sql.DB
}

// Open a command log on the given database handle
func Open(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

// Append one record durably and return its assigned sequence number
func (l *SQLite) Append(data []byte) (uint64, error) {
	id, err := uuid.NewV1()
	if err != nil {
		return 0, fmt.Errorf("could not generate record id: %v", err)
	}

	tx, err := l.db.BeginTx(context.Background(), nil)
	if err != nil {
		return 0, fmt.Errorf("could not start a write transaction: %v", err)
	}
	defer tx.Rollback()

	var sequence uint64
	statement := `SELECT COALESCE(MAX(seq)+1, 0) FROM records`
	if err := tx.QueryRow(statement).Scan(&sequence); err != nil {
		return 0, err
	}

	statement = `INSERT INTO records (seq, id, data) VALUES (?, ?, ?)`
	if _, err := tx.Exec(statement, sequence, id.String(), data); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return sequence, nil
}

// Len is the count of records ever appended
func (l *SQLite) Len() (uint64, error) {
	var n uint64
	statement := `SELECT COALESCE(MAX(seq)+1, 0) FROM records`
	if err := l.db.QueryRow(statement).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// ReadFrom returns an independent cursor over records with sequence number
// >= sequence
func (l *SQLite) ReadFrom(ctx context.Context, sequence uint64) (core.RecordIterator, error) {
	statement := `SELECT seq, id, data FROM records WHERE seq >= ? ORDER BY seq ASC`
	rows, err := l.db.QueryContext(ctx, statement, sequence)
	if err != nil {
		return nil, err
	}
	return &iterator{rows: rows}, nil
}

// Close the log and the underlying database connection
func (l *SQLite) Close() error {
	return l.db.Close()
}
