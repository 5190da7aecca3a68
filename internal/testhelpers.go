package internal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// testCSVHeader matches DefaultSchema column order
const testCSVHeader = "id,name,email,department,role,level,salary,remote,hire_date"

// writeTestCSV writes CSV content to a temp file and returns its path
func writeTestCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dataset.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write CSV: %v", err)
	}
	return path
}

// newTestStore opens an in-memory store loaded with n generated rows
func newTestStore(t *testing.T, n int) *Store {
	t.Helper()
	store, err := OpenMemoryStore(DefaultSchema())
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	lines := []string{testCSVHeader}
	for i := 1; i <= n; i++ {
		remote := "false"
		if i%2 == 0 {
			remote = "true"
		}
		lines = append(lines, fmt.Sprintf("%d,Employee %d,emp%d@example.com,Engineering,Analyst,%d,%d,%s,2021-03-15",
			i, i, i, i%5+1, 50000+i*1000, remote))
	}
	path := writeTestCSV(t, strings.Join(lines, "\n")+"\n")
	count, err := store.LoadCSV(path)
	if err != nil {
		t.Fatalf("Failed to load CSV: %v", err)
	}
	if count != n {
		t.Fatalf("Loaded %d rows, want %d", count, n)
	}
	return store
}

// makeTestRecords builds n single-column records for pipeline tests
func makeTestRecords(t *testing.T, n int) []Record {
	t.Helper()
	records := make([]Record, n)
	for i := 0; i < n; i++ {
		rec, err := NewRecord([]string{"id"}, []Value{IntValue(int64(i + 1))})
		if err != nil {
			t.Fatalf("Failed to build record: %v", err)
		}
		records[i] = rec
	}
	return records
}

// errRowSourceFailed marks a deliberate mid-read failure in tests
var errRowSourceFailed = errors.New("row source failed")

// fakeRowSource is an in-memory RowSource. When failAfter is positive
// the source errors once that many rows have been produced.
type fakeRowSource struct {
	rows      []Record
	pos       int
	failAfter int
	err       error
	closed    bool
}

func (f *fakeRowSource) Next() bool {
	if f.err != nil {
		return false
	}
	if f.failAfter > 0 && f.pos >= f.failAfter {
		f.err = &ExecutionError{Query: "test", Err: errRowSourceFailed}
		return false
	}
	if f.pos >= len(f.rows) {
		return false
	}
	f.pos++
	return true
}

func (f *fakeRowSource) Row() Record {
	return f.rows[f.pos-1]
}

func (f *fakeRowSource) Err() error {
	return f.err
}

func (f *fakeRowSource) Close() error {
	f.closed = true
	return nil
}
