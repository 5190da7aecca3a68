package cmd

import (
	"fmt"
	"os"

	"github.com/iksnae/tablestream/internal"
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
	version    string = "dev"
	commit     string = "unknown"
	date       string = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tablestream",
	Short: "Serve a tabular dataset to LLM agents as a chunked event stream",
	Long: `tablestream loads a CSV dataset into an embedded store and exposes it
for querying over HTTP, delivering results incrementally as a sequence
of bounded, self-describing events.

Queries are restricted to read-only SELECT statements by an advisory
allow-list. Each client session is tracked with an idle TTL; results
stream back chunk by chunk so a consumer never waits for, or holds,
the full result set.

Quick Start:
  tablestream serve --csv data/employees.csv   # Start the server
  tablestream schema                           # Inspect the dataset schema
  tablestream healthcheck                      # Verify the dataset loads`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		internal.SetVerbose(verbose)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
