package suite

import (
	"errors"
	"fmt"
	"testing"

	"github.com/prevaildb/prevail/core"
)

// Store is the contract exercised by the suite; all backends also expose
// their next snapshot id.
type Store interface {
	core.SnapshotStore
	NextSnapshotID() (uint64, error)
}

type storeFunc = func() (Store, func(), error)

// plantFunc simulates a crash between the body write and the pointer move:
// it persists a body artifact for the given id without marking it latest.
// The artifact content does not matter, the pointer never references it.
type plantFunc = func(store Store, id uint64) error

// Test runs the acceptance suite every snapshot store backend must pass
func Test(t *testing.T, sf storeFunc, plant plantFunc) {
	tests := []struct {
		title string
		run   func(t *testing.T, store Store)
	}{
		{"should report no snapshot when empty", reportsNoSnapshot},
		{"should write and read back the latest snapshot", writesAndReadsLatest},
		{"should allocate monotonically increasing ids", allocatesMonotonicIDs},
		{"should keep the newest snapshot as latest", keepsNewestAsLatest},
	}
	for _, test := range tests {
		t.Run(test.title, func(t *testing.T) {
			store, closeFunc, err := sf()
			if err != nil {
				t.Fatal(err)
			}
			defer closeFunc()
			test.run(t, store)
		})
	}
	t.Run("should recover from a crash before the pointer moved", func(t *testing.T) {
		store, closeFunc, err := sf()
		if err != nil {
			t.Fatal(err)
		}
		defer closeFunc()
		survivesTornBodyWrite(t, store, plant)
	})
}

func survivesTornBodyWrite(t *testing.T, store Store, plant plantFunc) {
	if _, err := store.Write([]byte(`{"panda":5}`), 4); err != nil {
		t.Fatal(err)
	}

	// a crash left a body for the next id with no pointer update
	if err := plant(store, 1); err != nil {
		t.Fatal(err)
	}

	snapshot, err := store.ReadLatest()
	if err != nil {
		t.Fatal(err)
	}
	if snapshot.ID != 0 || snapshot.LogOffset != 4 {
		t.Fatalf("expected latest snapshot (0, 4) got (%d, %d)", snapshot.ID, snapshot.LogOffset)
	}

	// the orphan id is reused by the next successful write
	id, err := store.Write([]byte(`{"panda":9}`), 9)
	if err != nil {
		t.Fatal(err)
	}
	if id != 1 {
		t.Fatalf("expected snapshot id 1 got %d", id)
	}
	snapshot, err = store.ReadLatest()
	if err != nil {
		t.Fatal(err)
	}
	if snapshot.ID != 1 || snapshot.LogOffset != 9 {
		t.Fatalf("expected latest snapshot (1, 9) got (%d, %d)", snapshot.ID, snapshot.LogOffset)
	}
	if string(snapshot.State) != `{"panda":9}` {
		t.Fatalf("wrong latest snapshot state: %s", snapshot.State)
	}
	next, err := store.NextSnapshotID()
	if err != nil {
		t.Fatal(err)
	}
	if next != 2 {
		t.Fatalf("expected next snapshot id 2 got %d", next)
	}
}

func reportsNoSnapshot(t *testing.T, store Store) {
	if _, err := store.ReadLatest(); !errors.Is(err, core.ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot got %v", err)
	}
	next, err := store.NextSnapshotID()
	if err != nil {
		t.Fatal(err)
	}
	if next != 0 {
		t.Fatalf("expected first snapshot id 0 got %d", next)
	}
}

func writesAndReadsLatest(t *testing.T, store Store) {
	state := []byte(`{"panda":5}`)
	id, err := store.Write(state, 4)
	if err != nil {
		t.Fatal(err)
	}
	if id != 0 {
		t.Fatalf("expected snapshot id 0 got %d", id)
	}

	snapshot, err := store.ReadLatest()
	if err != nil {
		t.Fatal(err)
	}
	if snapshot.ID != 0 {
		t.Fatalf("expected snapshot id 0 got %d", snapshot.ID)
	}
	if snapshot.LogOffset != 4 {
		t.Fatalf("expected log offset 4 got %d", snapshot.LogOffset)
	}
	if string(snapshot.State) != string(state) {
		t.Fatalf("wrong snapshot state: %s", snapshot.State)
	}
}

func allocatesMonotonicIDs(t *testing.T, store Store) {
	for i := 0; i < 3; i++ {
		id, err := store.Write([]byte(fmt.Sprintf(`{"n":%d}`, i)), uint64(i))
		if err != nil {
			t.Fatal(err)
		}
		if id != uint64(i) {
			t.Fatalf("expected snapshot id %d got %d", i, id)
		}
		next, err := store.NextSnapshotID()
		if err != nil {
			t.Fatal(err)
		}
		if next != uint64(i+1) {
			t.Fatalf("expected next snapshot id %d got %d", i+1, next)
		}
	}
}

func keepsNewestAsLatest(t *testing.T, store Store) {
	if _, err := store.Write([]byte(`{"n":1}`), 10); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Write([]byte(`{"n":2}`), 20); err != nil {
		t.Fatal(err)
	}

	snapshot, err := store.ReadLatest()
	if err != nil {
		t.Fatal(err)
	}
	if snapshot.ID != 1 || snapshot.LogOffset != 20 {
		t.Fatalf("expected latest snapshot (1, 20) got (%d, %d)", snapshot.ID, snapshot.LogOffset)
	}
	if string(snapshot.State) != `{"n":2}` {
		t.Fatalf("wrong latest snapshot state: %s", snapshot.State)
	}
}
