// Package fs stores snapshots on the filesystem: one body file per snapshot
// id plus a pointer file naming the latest completed id. The pointer is
// written only after the body is fully in place, so a crash mid-write leaves
// the previous snapshot as latest.
package fs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/prevaildb/prevail/core"
)

const (
	snapshotFileSuffix = "snapshot"
	latestFileName     = "latest"
)

// FS is a snapshot store rooted at a directory
type FS struct {
	dir string
}

// snapshotBody is the stored representation of one snapshot
type snapshotBody struct {
	ID        uint64
	LogOffset uint64
	State     []byte
}

// Open the snapshot store in the given directory, creating it if needed
func Open(dir string) (*FS, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("could not create snapshot directory: %v", err)
	}
	return &FS{dir: dir}, nil
}

// Write persists a snapshot body under the next id and then records that id
// as latest, as a separate final step
func (s *FS) Write(state []byte, logOffset uint64) (uint64, error) {
	id, err := s.nextSnapshotID()
	if err != nil {
		return 0, err
	}

	body, err := json.Marshal(snapshotBody{ID: id, LogOffset: logOffset, State: state})
	if err != nil {
		return 0, fmt.Errorf("could not serialize snapshot: %v", err)
	}
	if err := writeFileAtomic(s.bodyPath(id), body); err != nil {
		return 0, fmt.Errorf("could not write snapshot %d: %v", id, err)
	}
	if err := writeFileAtomic(s.latestPath(), []byte(strconv.FormatUint(id, 10))); err != nil {
		return 0, fmt.Errorf("could not write latest snapshot pointer: %v", err)
	}
	return id, nil
}

// ReadLatest returns the most recently completed snapshot
func (s *FS) ReadLatest() (core.Snapshot, error) {
	raw, err := os.ReadFile(s.latestPath())
	if errors.Is(err, os.ErrNotExist) {
		return core.Snapshot{}, core.ErrNoSnapshot
	}
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("could not read latest snapshot pointer: %v", err)
	}
	id, err := strconv.ParseUint(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("could not parse latest snapshot pointer: %v", err)
	}

	data, err := os.ReadFile(s.bodyPath(id))
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("could not read snapshot %d: %v", id, err)
	}
	body := snapshotBody{}
	if err := json.Unmarshal(data, &body); err != nil {
		return core.Snapshot{}, fmt.Errorf("could not deserialize snapshot %d: %v", id, err)
	}
	return core.Snapshot{ID: body.ID, LogOffset: body.LogOffset, State: body.State}, nil
}

// NextSnapshotID is the id the next written snapshot will get
func (s *FS) NextSnapshotID() (uint64, error) {
	return s.nextSnapshotID()
}

// Close does nothing, files are closed after every operation
func (s *FS) Close() error {
	return nil
}

func (s *FS) nextSnapshotID() (uint64, error) {
	raw, err := os.ReadFile(s.latestPath())
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("could not read latest snapshot pointer: %v", err)
	}
	id, err := strconv.ParseUint(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("could not parse latest snapshot pointer: %v", err)
	}
	return id + 1, nil
}

func (s *FS) bodyPath(id uint64) string {
	return filepath.Join(s.dir, fmt.Sprintf("%d.%s", id, snapshotFileSuffix))
}

func (s *FS) latestPath() string {
	return filepath.Join(s.dir, latestFileName)
}

// writeFileAtomic writes to a temp file in the same directory and renames it
// into place
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
