package core

import (
	"context"
	"errors"
)

// Record is one entry in the durable command log. The sequence number is the
// sole ordering and resume authority; the ID is a time-ordered tag generated
// by the log backend, used for debugging and tamper evidence only.
type Record struct {
	Sequence uint64
	ID       string
	Data     []byte
}

// Snapshot is a full checkpoint of serialized state. LogOffset is the
// sequence number of the last log record reflected in State.
type Snapshot struct {
	ID        uint64
	LogOffset uint64
	State     []byte
}

// ErrNoMoreRecords is returned by a RecordIterator when the log is exhausted
var ErrNoMoreRecords = errors.New("no more records")

// ErrNoSnapshot is returned by ReadLatest when no snapshot was ever taken
var ErrNoSnapshot = errors.New("no snapshot found")

// RecordIterator is a cursor over log records in increasing sequence order
type RecordIterator interface {
	// Next returns the next record or ErrNoMoreRecords
	Next() (Record, error)
	// Close releases the resources held by the iterator
	Close()
}

// Log is the interface a durable command log backend must uphold.
//
// Append must not return until the record is durable; sequence numbers start
// at zero, are strictly increasing and contiguous, and are never reused.
type Log interface {
	Append(data []byte) (uint64, error)
	// Len is the count of records ever appended
	Len() (uint64, error)
	// ReadFrom returns an independent cursor over records with
	// sequence number >= sequence
	ReadFrom(ctx context.Context, sequence uint64) (RecordIterator, error)
	Close() error
}

// SnapshotStore is the interface a snapshot backend must uphold.
//
// Write allocates the next snapshot id, persists the body atomically and
// records the new latest id as a separate final step, so that a crash
// mid-write leaves the previous snapshot as latest.
type SnapshotStore interface {
	Write(state []byte, logOffset uint64) (uint64, error)
	// ReadLatest returns the most recently completed snapshot or ErrNoSnapshot
	ReadLatest() (Snapshot, error)
	Close() error
}
