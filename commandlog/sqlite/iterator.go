package sqlite

import (
	"database/sql"

	"github.com/prevaildb/prevail/core"
)

type iterator struct {
	rows *sql.Rows
}

// Next return the next record
func (i *iterator) Next() (core.Record, error) {
	if !i.rows.Next() {
		if err := i.rows.Err(); err != nil {
			return core.Record{}, err
		}
		return core.Record{}, core.ErrNoMoreRecords
	}
	record := core.Record{}
	if err := i.rows.Scan(&record.Sequence, &record.ID, &record.Data); err != nil {
		return core.Record{}, err
	}
	return record, nil
}

// Close closes the iterator
func (i *iterator) Close() {
	i.rows.Close()
}
