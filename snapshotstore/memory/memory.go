package memory

import (
	"sync"

	"github.com/prevaildb/prevail/core"
)

// Memory is a snapshot store held in process memory, for tests and embedding
type Memory struct {
	lock      sync.Mutex
	snapshots map[uint64]core.Snapshot
	latest    uint64
	hasLatest bool
}

// Create an in memory snapshot store
func Create() *Memory {
	return &Memory{
		snapshots: make(map[uint64]core.Snapshot),
	}
}

// Write persists a snapshot under the next id and marks it latest
func (s *Memory) Write(state []byte, logOffset uint64) (uint64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	id := uint64(0)
	if s.hasLatest {
		id = s.latest + 1
	}
	stored := make([]byte, len(state))
	copy(stored, state)
	s.snapshots[id] = core.Snapshot{ID: id, LogOffset: logOffset, State: stored}
	s.latest = id
	s.hasLatest = true
	return id, nil
}

// ReadLatest returns the most recently written snapshot
func (s *Memory) ReadLatest() (core.Snapshot, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if !s.hasLatest {
		return core.Snapshot{}, core.ErrNoSnapshot
	}
	return s.snapshots[s.latest], nil
}

// NextSnapshotID is the id the next written snapshot will get
func (s *Memory) NextSnapshotID() (uint64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if !s.hasLatest {
		return 0, nil
	}
	return s.latest + 1, nil
}

// Close does nothing
func (s *Memory) Close() error {
	return nil
}
