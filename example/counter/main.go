// Command counter is a small prevalent counter: every Increment and
// Decrement is durably logged before it is applied, so the state survives
// restarts via snapshot plus replay.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prevaildb/prevail"
	"github.com/prevaildb/prevail/commandlog/bbolt"
	"github.com/prevaildb/prevail/snapshotstore/fs"
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

func open(dir string, register *prevail.Register[counters]) (*prevail.Engine[counters], error) {
	log, err := bbolt.Open(filepath.Join(dir, "commandlog.db"))
	if err != nil {
		return nil, err
	}
	snapshots, err := fs.Open(filepath.Join(dir, "snapshots"))
	if err != nil {
		return nil, err
	}
	return prevail.Resume(log, snapshots, register, func() counters {
		return make(counters)
	})
}

func main() {
	dir, err := os.MkdirTemp("", "counter")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer os.RemoveAll(dir)

	register := prevail.NewRegister[counters]()
	if err := register.Register(&Increment{}, &Decrement{}); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	engine, err := open(dir, register)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	if _, err := engine.ExecuteCommand(&Increment{Key: "panda", Amount: 5}); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if _, err := engine.ExecuteCommand(&Decrement{Key: "panda", Amount: 2}); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	engine.Tap(func(state counters) {
		fmt.Println("panda:", state["panda"])
	})

	if _, err := engine.TakeSnapshot(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if _, err := engine.IntoInner(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	// reopen: the state comes back from the snapshot plus the trailing log
	engine, err = open(dir, register)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	engine.Tap(func(state counters) {
		fmt.Println("panda after resume:", state["panda"])
	})

	n, err := engine.Len()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	fmt.Println("commands logged:", n)

	if _, err := engine.IntoInner(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
