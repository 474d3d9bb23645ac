package prevail

import (
	"reflect"
)

// Command is the contract a state transition must uphold. Execute is a pure
// function from the old state to the new state: it performs no I/O and has no
// side effects, because it will be re-executed verbatim during replay. A
// command can not fail; any failure belongs to logging or serialization.
type Command[S any] interface {
	Execute(old S) S
}

type commandFunc[S any] func() Command[S]

// Register maps command type names to factory functions so that logged
// commands can be rebuilt to their concrete type during replay.
type Register[S any] struct {
	r map[string]commandFunc[S]
}

// NewRegister returns an empty command register
func NewRegister[S any]() *Register[S] {
	return &Register[S]{
		r: make(map[string]commandFunc[S]),
	}
}

// Register one or more command types. Commands must be pointers to named
// structs; the struct name becomes the name stored in the log record.
func (r *Register[S]) Register(commands ...Command[S]) error {
	if len(commands) == 0 {
		return ErrNoCommandsToRegister
	}
	for _, command := range commands {
		typ := reflect.TypeOf(command)
		if typ == nil || typ.Kind() != reflect.Ptr {
			return ErrCommandNeedsToBeAPointer
		}
		name := typ.Elem().Name()
		if name == "" {
			return ErrCommandNameMissing
		}
		elem := typ.Elem()
		r.r[name] = func() Command[S] {
			return reflect.New(elem).Interface().(Command[S])
		}
	}
	return nil
}

// Type returns the factory for a registered command name
func (r *Register[S]) Type(name string) (commandFunc[S], bool) {
	f, ok := r.r[name]
	return f, ok
}

// name of a command as stored in the log
func commandName[S any](command Command[S]) (string, bool) {
	typ := reflect.TypeOf(command)
	if typ == nil || typ.Kind() != reflect.Ptr {
		return "", false
	}
	return typ.Elem().Name(), true
}
