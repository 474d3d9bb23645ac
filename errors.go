package prevail

import (
	"errors"
	"fmt"
)

var (
	// ErrStorage when the log or snapshot medium rejects an I/O operation
	ErrStorage = errors.New("storage failure")

	// ErrSerialization when a command or state can not be encoded or decoded
	ErrSerialization = errors.New("serialization failure")

	// ErrSnapshot when a checkpoint can not be written or read
	ErrSnapshot = errors.New("snapshot failure")

	// ErrReplay when a log record can not be decoded or applied during resume
	ErrReplay = errors.New("replay failure")

	// ErrConcurrency when exclusive write access can not be obtained
	ErrConcurrency = errors.New("concurrency failure")

	// ErrEngineReleased when the engine is used after IntoInner
	ErrEngineReleased = fmt.Errorf("%w: engine released", ErrConcurrency)

	// ErrCommandNotRegistered when executing a command type that is not registered
	ErrCommandNotRegistered = errors.New("command not registered")

	// ErrCommandNeedsToBeAPointer when registering a non pointer command type
	ErrCommandNeedsToBeAPointer = errors.New("command needs to be a pointer")

	// ErrCommandNameMissing when the command type has no name to register
	ErrCommandNameMissing = errors.New("missing command name")

	// ErrNoCommandsToRegister when Register is called with no commands
	ErrNoCommandsToRegister = errors.New("no commands to register")
)

// ReplayError reports the log record that made a resume fail. It matches
// ErrReplay via errors.Is and unwraps to the underlying cause.
type ReplayError struct {
	Sequence uint64
	Err      error
}

func (e *ReplayError) Error() string {
	return fmt.Sprintf("replay failure: record %d: %v", e.Sequence, e.Err)
}

func (e *ReplayError) Unwrap() error {
	return e.Err
}

func (e *ReplayError) Is(target error) bool {
	return target == ErrReplay
}
