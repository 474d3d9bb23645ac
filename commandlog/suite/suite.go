package suite

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prevaildb/prevail/core"
)

type logFunc = func() (core.Log, func(), error)

// Test runs the acceptance suite every command log backend must pass
func Test(t *testing.T, lf logFunc) {
	tests := []struct {
		title string
		run   func(t *testing.T, log core.Log)
	}{
		{"should start empty", startsEmpty},
		{"should assign contiguous sequence numbers from zero", assignsContiguousSequences},
		{"should count every appended record", countsAppendedRecords},
		{"should read records from an offset in order", readsFromOffset},
		{"should read nothing past the end", readsNothingPastEnd},
		{"should yield independent cursors", yieldsIndependentCursors},
		{"should tag records with unique ids", tagsRecordsWithUniqueIDs},
	}
	for _, test := range tests {
		t.Run(test.title, func(t *testing.T) {
			log, closeFunc, err := lf()
			if err != nil {
				t.Fatal(err)
			}
			defer closeFunc()
			test.run(t, log)
		})
	}
}

func testRecords(n int) [][]byte {
	records := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, []byte(fmt.Sprintf(`{"record":%d}`, i)))
	}
	return records
}

func appendAll(t *testing.T, log core.Log, records [][]byte) {
	t.Helper()
	for i, record := range records {
		sequence, err := log.Append(record)
		if err != nil {
			t.Fatal(err)
		}
		if sequence != uint64(i) {
			t.Fatalf("expected sequence %d got %d", i, sequence)
		}
	}
}

func collect(t *testing.T, log core.Log, from uint64) []core.Record {
	t.Helper()
	iterator, err := log.ReadFrom(context.Background(), from)
	if err != nil {
		t.Fatal(err)
	}
	defer iterator.Close()

	records := make([]core.Record, 0)
	for {
		record, err := iterator.Next()
		if errors.Is(err, core.ErrNoMoreRecords) {
			return records
		}
		if err != nil {
			t.Fatal(err)
		}
		records = append(records, record)
	}
}

func startsEmpty(t *testing.T, log core.Log) {
	n, err := log.Len()
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("expected empty log got length %d", n)
	}
	if records := collect(t, log, 0); len(records) != 0 {
		t.Fatalf("expected no records got %d", len(records))
	}
}

func assignsContiguousSequences(t *testing.T, log core.Log) {
	appendAll(t, log, testRecords(6))
	records := collect(t, log, 0)
	if len(records) != 6 {
		t.Fatalf("expected 6 records got %d", len(records))
	}
	for i, record := range records {
		if record.Sequence != uint64(i) {
			t.Fatalf("expected sequence %d got %d", i, record.Sequence)
		}
	}
}

func countsAppendedRecords(t *testing.T, log core.Log) {
	records := testRecords(4)
	for i, record := range records {
		if _, err := log.Append(record); err != nil {
			t.Fatal(err)
		}
		n, err := log.Len()
		if err != nil {
			t.Fatal(err)
		}
		if n != uint64(i+1) {
			t.Fatalf("expected length %d got %d", i+1, n)
		}
	}
}

func readsFromOffset(t *testing.T, log core.Log) {
	records := testRecords(6)
	appendAll(t, log, records)

	fetched := collect(t, log, 3)
	if len(fetched) != 3 {
		t.Fatalf("expected 3 records got %d", len(fetched))
	}
	for i, record := range fetched {
		if record.Sequence != uint64(i+3) {
			t.Fatalf("expected sequence %d got %d", i+3, record.Sequence)
		}
		if string(record.Data) != string(records[i+3]) {
			t.Fatalf("wrong record data at sequence %d", record.Sequence)
		}
	}
}

func readsNothingPastEnd(t *testing.T, log core.Log) {
	appendAll(t, log, testRecords(2))
	if records := collect(t, log, 2); len(records) != 0 {
		t.Fatalf("expected no records got %d", len(records))
	}
}

func yieldsIndependentCursors(t *testing.T, log core.Log) {
	appendAll(t, log, testRecords(3))

	first := collect(t, log, 0)
	second := collect(t, log, 0)
	if len(first) != 3 || len(second) != 3 {
		t.Fatalf("expected both cursors to yield 3 records, got %d and %d", len(first), len(second))
	}
}

func tagsRecordsWithUniqueIDs(t *testing.T, log core.Log) {
	appendAll(t, log, testRecords(5))
	seen := make(map[string]struct{})
	for _, record := range collect(t, log, 0) {
		if record.ID == "" {
			t.Fatalf("record %d has no id", record.Sequence)
		}
		if _, ok := seen[record.ID]; ok {
			t.Fatalf("duplicate record id %s", record.ID)
		}
		seen[record.ID] = struct{}{}
	}
}
