package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/iksnae/tablestream/testutil"
)

// writeTestConfig writes a config pointing at a generated dataset and
// returns its path
func writeTestConfig(t *testing.T, rows int) string {
	t.Helper()
	csvPath := testutil.WriteEmployeeCSV(t, rows)
	content := "dataset:\n  csv_path: " + csvPath + "\n"
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestSchemaCommand(t *testing.T) {
	cfgPath := writeTestConfig(t, 5)

	rootCmd.SetArgs([]string{"schema", "--config", cfgPath})
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})

	if err := rootCmd.Execute(); err != nil {
		t.Errorf("schema command error = %v", err)
	}
}

func TestSchemaCommand_MissingDataset(t *testing.T) {
	content := "dataset:\n  csv_path: /nonexistent/data.csv\n"
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	rootCmd.SetArgs([]string{"schema", "--config", path})
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})

	if err := rootCmd.Execute(); err == nil {
		t.Error("schema command should fail when the dataset is missing")
	}
}
