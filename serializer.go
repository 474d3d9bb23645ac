package prevail

import (
	"encoding/json"
)

// MarshalFunc encodes a command or state value to bytes
type MarshalFunc func(v interface{}) ([]byte, error)

// UnmarshalFunc decodes bytes into a command or state value
type UnmarshalFunc func(data []byte, v interface{}) error

// logEntry is the self-describing envelope stored in the durable log. Name
// resolves the concrete command type from the register during replay. The
// command payload is kept as raw bytes so the payload serializer can be
// swapped without touching the envelope encoding.
type logEntry struct {
	Name    string
	Command []byte
}

func encodeEntry(marshal MarshalFunc, name string, command interface{}) ([]byte, error) {
	payload, err := marshal(command)
	if err != nil {
		return nil, err
	}
	return json.Marshal(logEntry{Name: name, Command: payload})
}

func decodeEntry(data []byte) (logEntry, error) {
	entry := logEntry{}
	err := json.Unmarshal(data, &entry)
	return entry, err
}
