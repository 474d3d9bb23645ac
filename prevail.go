// Package prevail persists an in-memory value by durably logging the
// commands that produced each state transition and replaying them after a
// restart, with periodic snapshots bounding the replay cost.
package prevail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/prevaildb/prevail/core"
)

// Engine owns the current state value and coordinates apply + log as one
// logical operation. S is the user-defined state type.
//
// The Marshal and Unmarshal fields control how commands and state are
// encoded; they default to encoding/json and must only be changed before the
// first command is executed or snapshot taken.
type Engine[S any] struct {
	Marshal   MarshalFunc
	Unmarshal UnmarshalFunc

	mu         sync.RWMutex
	state      S
	lastSeq    uint64
	hasApplied bool
	released   bool

	log       core.Log
	snapshots core.SnapshotStore
	register  *Register[S]
}

// New opens a fresh engine on the given backends, constructing the state
// from the initial factory. It fails if the log can not report its length.
func New[S any](log core.Log, snapshots core.SnapshotStore, register *Register[S], initial func() S) (*Engine[S], error) {
	if _, err := log.Len(); err != nil {
		return nil, fmt.Errorf("%w: opening command log: %v", ErrStorage, err)
	}
	return &Engine[S]{
		Marshal:   json.Marshal,
		Unmarshal: json.Unmarshal,
		state:     initial(),
		log:       log,
		snapshots: snapshots,
		register:  register,
	}, nil
}

// Resume recovers an engine from its backends: the state is seeded from the
// latest snapshot, or from the initial factory if none exists, and every log
// record after the snapshot offset is replayed in sequence order.
func Resume[S any](log core.Log, snapshots core.SnapshotStore, register *Register[S], initial func() S) (*Engine[S], error) {
	return ResumeWithContext(context.Background(), log, snapshots, register, initial)
}

// ResumeWithContext is Resume with a context that can cancel the replay
// between records.
func ResumeWithContext[S any](ctx context.Context, log core.Log, snapshots core.SnapshotStore, register *Register[S], initial func() S) (*Engine[S], error) {
	e := &Engine[S]{
		Marshal:   json.Marshal,
		Unmarshal: json.Unmarshal,
		log:       log,
		snapshots: snapshots,
		register:  register,
	}

	from := uint64(0)
	snapshot, err := snapshots.ReadLatest()
	switch {
	case errors.Is(err, core.ErrNoSnapshot):
		e.state = initial()
	case err != nil:
		return nil, fmt.Errorf("%w: reading latest snapshot: %v", ErrSnapshot, err)
	default:
		if err := e.Unmarshal(snapshot.State, &e.state); err != nil {
			return nil, fmt.Errorf("%w: decoding snapshot %d: %v", ErrSnapshot, snapshot.ID, err)
		}
		e.lastSeq = snapshot.LogOffset
		e.hasApplied = true
		from = snapshot.LogOffset + 1
	}

	iterator, err := log.ReadFrom(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("%w: reading command log from %d: %v", ErrStorage, from, err)
	}
	defer iterator.Close()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		record, err := iterator.Next()
		if errors.Is(err, core.ErrNoMoreRecords) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: reading command log: %v", ErrStorage, err)
		}
		if err := e.replay(record); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// replay folds one log record into the seeded state
func (e *Engine[S]) replay(record core.Record) error {
	entry, err := decodeEntry(record.Data)
	if err != nil {
		return &ReplayError{Sequence: record.Sequence, Err: err}
	}
	f, ok := e.register.Type(entry.Name)
	if !ok {
		return &ReplayError{Sequence: record.Sequence, Err: fmt.Errorf("%w: %s", ErrCommandNotRegistered, entry.Name)}
	}
	command := f()
	if err := e.Unmarshal(entry.Command, command); err != nil {
		return &ReplayError{Sequence: record.Sequence, Err: err}
	}
	e.state = command.Execute(e.state)
	e.lastSeq = record.Sequence
	e.hasApplied = true
	return nil
}

// ExecuteCommand durably appends the command to the log and, only after the
// append succeeds, applies it to the in-memory state. It returns the sequence
// number the log assigned. A failed append leaves the state unchanged.
func (e *Engine[S]) ExecuteCommand(command Command[S]) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.released {
		return 0, ErrEngineReleased
	}
	name, ok := commandName(command)
	if !ok || name == "" {
		return 0, ErrCommandNeedsToBeAPointer
	}
	if _, ok := e.register.Type(name); !ok {
		return 0, fmt.Errorf("%w: %s", ErrCommandNotRegistered, name)
	}

	data, err := encodeEntry(e.Marshal, name, command)
	if err != nil {
		return 0, fmt.Errorf("%w: encoding command %s: %v", ErrSerialization, name, err)
	}

	sequence, err := e.log.Append(data)
	if err != nil {
		return 0, fmt.Errorf("%w: appending command %s: %v", ErrStorage, name, err)
	}

	// the append is durable, the transition is now guaranteed to apply
	e.state = command.Execute(e.state)
	e.lastSeq = sequence
	e.hasApplied = true
	return sequence, nil
}

// Tap runs read against a consistent point-in-time view of the state.
// Taps run concurrently with each other; read must not mutate reference
// types reachable from the state value.
func (e *Engine[S]) Tap(read func(state S)) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.released {
		return ErrEngineReleased
	}
	read(e.state)
	return nil
}

// Len is the count of commands ever logged
func (e *Engine[S]) Len() (uint64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.released {
		return 0, ErrEngineReleased
	}
	n, err := e.log.Len()
	if err != nil {
		return 0, fmt.Errorf("%w: command log length: %v", ErrStorage, err)
	}
	return n, nil
}

// IsEmpty reports whether the command history is empty
func (e *Engine[S]) IsEmpty() (bool, error) {
	n, err := e.Len()
	return n == 0, err
}

// TakeSnapshot checkpoints the current committed state together with the
// sequence number of the last record reflected in it. The log is not
// truncated. Snapshotting is exclusive with command execution.
func (e *Engine[S]) TakeSnapshot() (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.released {
		return 0, ErrEngineReleased
	}
	if !e.hasApplied {
		return 0, fmt.Errorf("%w: no commands logged", ErrSnapshot)
	}
	data, err := e.Marshal(e.state)
	if err != nil {
		return 0, fmt.Errorf("%w: encoding state: %v", ErrSnapshot, err)
	}
	id, err := e.snapshots.Write(data, e.lastSeq)
	if err != nil {
		return 0, fmt.Errorf("%w: writing snapshot: %v", ErrSnapshot, err)
	}
	return id, nil
}

// IntoInner is terminal: it closes the log and snapshot store and yields
// ownership of the state value. The engine rejects all operations afterwards.
func (e *Engine[S]) IntoInner() (S, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var zero S
	if e.released {
		return zero, ErrEngineReleased
	}
	e.released = true

	state := e.state
	e.state = zero
	if err := e.log.Close(); err != nil {
		return state, fmt.Errorf("%w: closing command log: %v", ErrStorage, err)
	}
	if err := e.snapshots.Close(); err != nil {
		return state, fmt.Errorf("%w: closing snapshot store: %v", ErrSnapshot, err)
	}
	return state, nil
}
