package memory

import (
	"testing"

	"github.com/prevaildb/prevail/core"
	"github.com/prevaildb/prevail/snapshotstore/suite"
)

func TestSuite(t *testing.T) {
	f := func() (suite.Store, func(), error) {
		return Create(), func() {}, nil
	}
	plant := func(store suite.Store, id uint64) error {
		s := store.(*Memory)
		s.lock.Lock()
		defer s.lock.Unlock()
		s.snapshots[id] = core.Snapshot{ID: id, LogOffset: 99, State: []byte(`torn`)}
		return nil
	}
	suite.Test(t, f, plant)
}
