package prevail_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"pgregory.net/rapid"

	"github.com/prevaildb/prevail"
	logbbolt "github.com/prevaildb/prevail/commandlog/bbolt"
	logmemory "github.com/prevaildb/prevail/commandlog/memory"
	"github.com/prevaildb/prevail/core"
	snapfs "github.com/prevaildb/prevail/snapshotstore/fs"
	snapmemory "github.com/prevaildb/prevail/snapshotstore/memory"
)

type counters = map[string]int64

type Increment struct {
	Key    string
	Amount int64
}

func (c *Increment) Execute(old counters) counters {
	state := make(counters, len(old)+1)
	for k, v := range old {
		state[k] = v
	}
	state[c.Key] += c.Amount
	return state
}

type Decrement struct {
	Key    string
	Amount int64
}

func (c *Decrement) Execute(old counters) counters {
	state := make(counters, len(old)+1)
	for k, v := range old {
		state[k] = v
	}
	state[c.Key] -= c.Amount
	return state
}

func newRegister(t testing.TB) *prevail.Register[counters] {
	t.Helper()
	register := prevail.NewRegister[counters]()
	if err := register.Register(&Increment{}, &Decrement{}); err != nil {
		t.Fatal(err)
	}
	return register
}

func initialCounters() counters {
	return make(counters)
}

func newMemoryEngine(t testing.TB) (*prevail.Engine[counters], *logmemory.Memory, *snapmemory.Memory) {
	t.Helper()
	log := logmemory.Create()
	snapshots := snapmemory.Create()
	engine, err := prevail.New(log, snapshots, newRegister(t), initialCounters)
	if err != nil {
		t.Fatal(err)
	}
	return engine, log, snapshots
}

func read(t testing.TB, engine *prevail.Engine[counters], key string) int64 {
	t.Helper()
	var value int64
	err := engine.Tap(func(state counters) {
		value = state[key]
	})
	if err != nil {
		t.Fatal(err)
	}
	return value
}

func TestExecuteCommandAndTap(t *testing.T) {
	engine, _, _ := newMemoryEngine(t)

	empty, err := engine.IsEmpty()
	if err != nil {
		t.Fatal(err)
	}
	if !empty {
		t.Fatal("expected a fresh engine to have an empty history")
	}

	sequence, err := engine.ExecuteCommand(&Increment{Key: "panda", Amount: 5})
	if err != nil {
		t.Fatal(err)
	}
	if sequence != 0 {
		t.Fatalf("expected sequence 0 got %d", sequence)
	}
	n, err := engine.Len()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected length 1 got %d", n)
	}
	if v := read(t, engine, "panda"); v != 5 {
		t.Fatalf("expected panda=5 got %d", v)
	}

	if _, err := engine.ExecuteCommand(&Decrement{Key: "panda", Amount: 2}); err != nil {
		t.Fatal(err)
	}
	if v := read(t, engine, "panda"); v != 3 {
		t.Fatalf("expected panda=3 got %d", v)
	}
	n, err = engine.Len()
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected length 2 got %d", n)
	}
}

func TestTapIsIdempotent(t *testing.T) {
	engine, _, _ := newMemoryEngine(t)
	if _, err := engine.ExecuteCommand(&Increment{Key: "panda", Amount: 7}); err != nil {
		t.Fatal(err)
	}
	first := read(t, engine, "panda")
	second := read(t, engine, "panda")
	if first != second {
		t.Fatalf("taps with no intervening command differ: %d vs %d", first, second)
	}
}

func TestCommandNotRegistered(t *testing.T) {
	log := logmemory.Create()
	register := prevail.NewRegister[counters]()
	if err := register.Register(&Increment{}); err != nil {
		t.Fatal(err)
	}
	engine, err := prevail.New(log, snapmemory.Create(), register, initialCounters)
	if err != nil {
		t.Fatal(err)
	}

	_, err = engine.ExecuteCommand(&Decrement{Key: "panda", Amount: 1})
	if !errors.Is(err, prevail.ErrCommandNotRegistered) {
		t.Fatalf("expected ErrCommandNotRegistered got %v", err)
	}
	n, err := engine.Len()
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("expected nothing logged got length %d", n)
	}
}

func TestExecuteNilCommand(t *testing.T) {
	engine, _, _ := newMemoryEngine(t)

	_, err := engine.ExecuteCommand(nil)
	if !errors.Is(err, prevail.ErrCommandNeedsToBeAPointer) {
		t.Fatalf("expected ErrCommandNeedsToBeAPointer got %v", err)
	}
	n, err := engine.Len()
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("expected nothing logged got length %d", n)
	}
}

// faultyLog injects append failures to verify the append-before-apply order
type faultyLog struct {
	core.Log
	failing bool
}

func (l *faultyLog) Append(data []byte) (uint64, error) {
	if l.failing {
		return 0, fmt.Errorf("disk full")
	}
	return l.Log.Append(data)
}

func TestFailedAppendLeavesStateUnchanged(t *testing.T) {
	log := &faultyLog{Log: logmemory.Create()}
	engine, err := prevail.New(log, snapmemory.Create(), newRegister(t), initialCounters)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 4; i++ {
		if _, err := engine.ExecuteCommand(&Increment{Key: "panda", Amount: 1}); err != nil {
			t.Fatal(err)
		}
	}

	// the 5th command hits a storage fault
	log.failing = true
	_, err = engine.ExecuteCommand(&Increment{Key: "panda", Amount: 1})
	if !errors.Is(err, prevail.ErrStorage) {
		t.Fatalf("expected ErrStorage got %v", err)
	}

	n, err := engine.Len()
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Fatalf("expected length 4 after fault got %d", n)
	}
	if v := read(t, engine, "panda"); v != 4 {
		t.Fatalf("expected state to reflect the first 4 commands, panda=%d", v)
	}

	// the engine stays usable for subsequent calls
	log.failing = false
	if _, err := engine.ExecuteCommand(&Increment{Key: "panda", Amount: 1}); err != nil {
		t.Fatal(err)
	}
	if v := read(t, engine, "panda"); v != 5 {
		t.Fatalf("expected panda=5 after recovery got %d", v)
	}
}

func TestReplayWithoutSnapshot(t *testing.T) {
	engine, log, snapshots := newMemoryEngine(t)
	if _, err := engine.ExecuteCommand(&Increment{Key: "panda", Amount: 5}); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.ExecuteCommand(&Decrement{Key: "panda", Amount: 2}); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.ExecuteCommand(&Increment{Key: "otter", Amount: 1}); err != nil {
		t.Fatal(err)
	}
	expected, err := engine.IntoInner()
	if err != nil {
		t.Fatal(err)
	}

	resumed, err := prevail.Resume(log, snapshots, newRegister(t), initialCounters)
	if err != nil {
		t.Fatal(err)
	}
	actual, err := resumed.IntoInner()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(expected, actual); diff != "" {
		t.Fatalf("replayed state differs (-want +got):\n%s", diff)
	}
}

func TestSnapshotAndResumeFromDisk(t *testing.T) {
	dir := t.TempDir()
	openBackends := func() (*logbbolt.BBolt, *snapfs.FS) {
		log, err := logbbolt.Open(filepath.Join(dir, "commandlog.db"))
		if err != nil {
			t.Fatal(err)
		}
		snapshots, err := snapfs.Open(filepath.Join(dir, "snapshots"))
		if err != nil {
			t.Fatal(err)
		}
		return log, snapshots
	}

	log, snapshots := openBackends()
	engine, err := prevail.New(log, snapshots, newRegister(t), initialCounters)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 1000; i++ {
		if _, err := engine.ExecuteCommand(&Increment{Key: "panda", Amount: 1}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := engine.TakeSnapshot(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 1000; i++ {
		if _, err := engine.ExecuteCommand(&Decrement{Key: "panda", Amount: 1}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := engine.IntoInner(); err != nil {
		t.Fatal(err)
	}

	log, snapshots = openBackends()
	resumed, err := prevail.Resume(log, snapshots, newRegister(t), initialCounters)
	if err != nil {
		t.Fatal(err)
	}
	state, err := resumed.IntoInner()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(counters{"panda": 0}, state); diff != "" {
		t.Fatalf("resumed state differs (-want +got):\n%s", diff)
	}
}

func TestTakeSnapshotWithEmptyHistory(t *testing.T) {
	engine, _, _ := newMemoryEngine(t)
	if _, err := engine.TakeSnapshot(); !errors.Is(err, prevail.ErrSnapshot) {
		t.Fatalf("expected ErrSnapshot got %v", err)
	}
}

func TestEngineReleasedAfterIntoInner(t *testing.T) {
	engine, _, _ := newMemoryEngine(t)
	if _, err := engine.IntoInner(); err != nil {
		t.Fatal(err)
	}

	if _, err := engine.ExecuteCommand(&Increment{Key: "panda", Amount: 1}); !errors.Is(err, prevail.ErrConcurrency) {
		t.Fatalf("expected ErrConcurrency got %v", err)
	}
	if err := engine.Tap(func(counters) {}); !errors.Is(err, prevail.ErrEngineReleased) {
		t.Fatalf("expected ErrEngineReleased got %v", err)
	}
	if _, err := engine.IntoInner(); !errors.Is(err, prevail.ErrEngineReleased) {
		t.Fatalf("expected ErrEngineReleased got %v", err)
	}
}

func TestResumeFailsOnUnregisteredCommand(t *testing.T) {
	engine, log, snapshots := newMemoryEngine(t)
	if _, err := engine.ExecuteCommand(&Increment{Key: "panda", Amount: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.ExecuteCommand(&Decrement{Key: "panda", Amount: 1}); err != nil {
		t.Fatal(err)
	}

	// resume with a register that no longer knows Decrement
	register := prevail.NewRegister[counters]()
	if err := register.Register(&Increment{}); err != nil {
		t.Fatal(err)
	}
	_, err := prevail.Resume(log, snapshots, register, initialCounters)
	if !errors.Is(err, prevail.ErrReplay) {
		t.Fatalf("expected ErrReplay got %v", err)
	}
	var replayErr *prevail.ReplayError
	if !errors.As(err, &replayErr) {
		t.Fatalf("expected a *ReplayError got %T", err)
	}
	if replayErr.Sequence != 1 {
		t.Fatalf("expected the failure to name sequence 1 got %d", replayErr.Sequence)
	}
}

func TestResumeHonorsContext(t *testing.T) {
	engine, log, snapshots := newMemoryEngine(t)
	if _, err := engine.ExecuteCommand(&Increment{Key: "panda", Amount: 1}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := prevail.ResumeWithContext(ctx, log, snapshots, newRegister(t), initialCounters)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled got %v", err)
	}
}

// randomCommand draws one increment or decrement on a small key space
func randomCommand(t *rapid.T) prevail.Command[counters] {
	key := rapid.SampledFrom([]string{"panda", "otter", "lemur"}).Draw(t, "key")
	amount := rapid.Int64Range(-100, 100).Draw(t, "amount")
	if rapid.Bool().Draw(t, "decrement") {
		return &Decrement{Key: key, Amount: amount}
	}
	return &Increment{Key: key, Amount: amount}
}

func TestReplayDeterminism(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		log := logmemory.Create()
		snapshots := snapmemory.Create()
		engine, err := prevail.New(log, snapshots, newRegister(t), initialCounters)
		if err != nil {
			rt.Fatal(err)
		}

		count := rapid.IntRange(0, 50).Draw(rt, "count")
		for i := 0; i < count; i++ {
			if _, err := engine.ExecuteCommand(randomCommand(rt)); err != nil {
				rt.Fatal(err)
			}
		}
		expected, err := engine.IntoInner()
		if err != nil {
			rt.Fatal(err)
		}

		resumed, err := prevail.Resume(log, snapshots, newRegister(t), initialCounters)
		if err != nil {
			rt.Fatal(err)
		}
		actual, err := resumed.IntoInner()
		if err != nil {
			rt.Fatal(err)
		}
		if diff := cmp.Diff(expected, actual); diff != "" {
			rt.Fatalf("replayed state differs (-want +got):\n%s", diff)
		}
	})
}

func TestSnapshotReplayEquivalence(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		log := logmemory.Create()
		snapshots := snapmemory.Create()
		engine, err := prevail.New(log, snapshots, newRegister(t), initialCounters)
		if err != nil {
			rt.Fatal(err)
		}

		count := rapid.IntRange(1, 50).Draw(rt, "count")
		snapshotAfter := rapid.IntRange(1, count).Draw(rt, "snapshotAfter")
		for i := 0; i < count; i++ {
			if _, err := engine.ExecuteCommand(randomCommand(rt)); err != nil {
				rt.Fatal(err)
			}
			if i+1 == snapshotAfter {
				if _, err := engine.TakeSnapshot(); err != nil {
					rt.Fatal(err)
				}
			}
		}
		expected, err := engine.IntoInner()
		if err != nil {
			rt.Fatal(err)
		}

		resumed, err := prevail.Resume(log, snapshots, newRegister(t), initialCounters)
		if err != nil {
			rt.Fatal(err)
		}
		actual, err := resumed.IntoInner()
		if err != nil {
			rt.Fatal(err)
		}
		if diff := cmp.Diff(expected, actual); diff != "" {
			rt.Fatalf("snapshot+replay state differs (-want +got):\n%s", diff)
		}
	})
}
