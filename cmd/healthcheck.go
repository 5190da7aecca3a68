package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/tablestream/internal"
	"github.com/spf13/cobra"
)

var (
	healthcheckVerbose bool
)

var (
	successStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42")).
		Bold(true)

	warningStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("214")).
		Bold(true)

	errorStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("196")).
		Bold(true)

	infoStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("39"))

	sectionStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("62")).
		Bold(true).
		Underline(true)
)

// healthcheckCmd represents the healthcheck command
var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Check that the dataset can be located and loaded",
	Long: `Check the health of tablestream by verifying:
  • Configuration is readable
  • The CSV dataset file exists
  • The dataset loads into the store
  • A probe query executes

This command is useful for validating a deployment before starting
the server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(sectionStyle.Render("🔍 tablestream Health Check"))
		fmt.Println()

		// Step 1: Load configuration
		fmt.Println(infoStyle.Render("Step 1: Loading configuration..."))
		cfg, err := internal.LoadConfig(configPath)
		if err != nil {
			fmt.Println(errorStyle.Render("❌ Configuration failed:"), err)
			os.Exit(1)
		}
		fmt.Println(successStyle.Render("✅ Configuration loaded"))
		if healthcheckVerbose {
			fmt.Printf("   CSV path:   %s\n", cfg.Dataset.CSVPath)
			fmt.Printf("   Table:      %s\n", cfg.Dataset.Table)
			fmt.Printf("   Chunk size: %d\n", cfg.Stream.ChunkSize)
		}
		fmt.Println()

		// Step 2: Check dataset file
		fmt.Println(infoStyle.Render("Step 2: Checking dataset file..."))
		info, err := os.Stat(cfg.Dataset.CSVPath)
		if err != nil {
			fmt.Println(errorStyle.Render("❌ Dataset file not accessible:"), err)
			os.Exit(1)
		}
		fmt.Println(successStyle.Render("✅ Dataset file found"))
		if healthcheckVerbose {
			fmt.Printf("   Size: %d bytes\n", info.Size())
		}
		fmt.Println()

		// Step 3: Load dataset into store
		fmt.Println(infoStyle.Render("Step 3: Loading dataset into store..."))
		schema := internal.DefaultSchema()
		schema.Table = cfg.Dataset.Table
		store, err := internal.OpenMemoryStore(schema)
		if err != nil {
			fmt.Println(errorStyle.Render("❌ Failed to open store:"), err)
			os.Exit(1)
		}
		defer store.Close()

		count, err := store.LoadCSV(cfg.Dataset.CSVPath)
		if err != nil {
			fmt.Println(errorStyle.Render("❌ Dataset failed to load:"), err)
			os.Exit(1)
		}
		if count == 0 {
			fmt.Println(warningStyle.Render("⚠️  Dataset loaded but contains no rows"))
		} else {
			fmt.Println(successStyle.Render(fmt.Sprintf("✅ Loaded %d row(s)", count)))
		}
		fmt.Println()

		// Step 4: Probe query
		fmt.Println(infoStyle.Render("Step 4: Running probe query..."))
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		columns, err := store.Columns(ctx)
		if err != nil {
			fmt.Println(errorStyle.Render("❌ Probe query failed:"), err)
			os.Exit(1)
		}
		fmt.Println(successStyle.Render(fmt.Sprintf("✅ Probe query returned %d column(s)", len(columns))))
		if healthcheckVerbose {
			for _, col := range columns {
				fmt.Printf("   - %s\n", col)
			}
		}
		fmt.Println()

		fmt.Println(successStyle.Render("All checks passed"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthcheckCmd)
	healthcheckCmd.Flags().BoolVar(&healthcheckVerbose, "detail", false, "Show detailed check output")
}
