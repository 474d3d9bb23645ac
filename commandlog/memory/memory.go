package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/prevaildb/prevail/core"
)

// Memory is a command log held in process memory, for tests and embedding
type Memory struct {
	lock    sync.Mutex
	records []core.Record
}

// Create an in memory command log
func Create() *Memory {
	return &Memory{
		records: make([]core.Record, 0),
	}
}

// Append one record and return its assigned sequence number
func (l *Memory) Append(data []byte) (uint64, error) {
	id, err := uuid.NewV1()
	if err != nil {
		return 0, fmt.Errorf("could not generate record id: %v", err)
	}

	l.lock.Lock()
	defer l.lock.Unlock()

	sequence := uint64(len(l.records))
	stored := make([]byte, len(data))
	copy(stored, data)
	l.records = append(l.records, core.Record{
		Sequence: sequence,
		ID:       id.String(),
		Data:     stored,
	})
	return sequence, nil
}

// Len is the count of records ever appended
func (l *Memory) Len() (uint64, error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	return uint64(len(l.records)), nil
}

// ReadFrom returns an independent cursor over records with sequence number
// >= sequence
func (l *Memory) ReadFrom(ctx context.Context, sequence uint64) (core.RecordIterator, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	records := make([]core.Record, 0)
	for _, record := range l.records {
		if record.Sequence >= sequence {
			records = append(records, record)
		}
	}
	return &iterator{records: records}, nil
}

// Close does nothing
func (l *Memory) Close() error {
	return nil
}

type iterator struct {
	records []core.Record
	next    int
}

// Next return the next record
func (i *iterator) Next() (core.Record, error) {
	if i.next >= len(i.records) {
		return core.Record{}, core.ErrNoMoreRecords
	}
	record := i.records[i.next]
	i.next++
	return record, nil
}

// Close closes the iterator
func (i *iterator) Close() {}
