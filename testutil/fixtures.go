// Package testutil provides shared fixtures for tests: sample CSV
// datasets and loaded in-memory stores.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iksnae/tablestream/internal"
)

// EmployeeCSVHeader is the header row matching internal.DefaultSchema
const EmployeeCSVHeader = "id,name,email,department,role,level,salary,remote,hire_date"

// EmployeeCSVRows returns n generated employee rows as CSV lines
func EmployeeCSVRows(n int) []string {
	departments := []string{"Engineering", "Sales", "Support", "Finance"}
	rows := make([]string, n)
	for i := 0; i < n; i++ {
		id := i + 1
		dept := departments[i%len(departments)]
		remote := "false"
		if i%2 == 0 {
			remote = "true"
		}
		rows[i] = fmt.Sprintf("%d,Employee %d,emp%d@example.com,%s,Analyst,%d,%d,%s,2021-0%d-15",
			id, id, id, dept, i%5+1, 50000+i*1000, remote, i%9+1)
	}
	return rows
}

// WriteEmployeeCSV writes a CSV file with n generated rows and returns
// its path
func WriteEmployeeCSV(t *testing.T, n int) string {
	t.Helper()
	lines := append([]string{EmployeeCSVHeader}, EmployeeCSVRows(n)...)
	return WriteCSV(t, strings.Join(lines, "\n")+"\n")
}

// WriteCSV writes raw CSV content to a temp file and returns its path
func WriteCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dataset.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write CSV fixture: %v", err)
	}
	return path
}

// LoadedStore opens an in-memory store with the default schema and n
// generated employee rows
func LoadedStore(t *testing.T, n int) *internal.Store {
	t.Helper()
	store, err := internal.OpenMemoryStore(internal.DefaultSchema())
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	path := WriteEmployeeCSV(t, n)
	count, err := store.LoadCSV(path)
	if err != nil {
		t.Fatalf("Failed to load CSV: %v", err)
	}
	if count != n {
		t.Fatalf("Loaded %d rows, want %d", count, n)
	}
	return store
}
