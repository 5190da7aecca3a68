package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/iksnae/tablestream/internal"
	"github.com/spf13/cobra"
)

var schemaSamples int

// schemaCmd represents the schema command
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the dataset schema and sample rows",
	Long: `Load the configured CSV dataset and print the table schema along
with a few sample rows, the same information the /schema endpoint
serves to clients.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := internal.LoadConfig(configPath)
		if err != nil {
			return err
		}

		schema := internal.DefaultSchema()
		schema.Table = cfg.Dataset.Table
		store, err := internal.OpenMemoryStore(schema)
		if err != nil {
			return err
		}
		defer store.Close()

		if _, err := store.LoadCSV(cfg.Dataset.CSVPath); err != nil {
			return err
		}

		fmt.Println(sectionStyle.Render(fmt.Sprintf("Table: %s", schema.Table)))
		fmt.Println()
		for _, col := range schema.Columns {
			fmt.Printf("  %-12s %s\n", col.Name, col.Type)
		}
		fmt.Println()

		if schemaSamples > 0 {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			rows, err := store.SampleRows(ctx, schemaSamples)
			if err != nil {
				return err
			}
			fmt.Println(infoStyle.Render(fmt.Sprintf("Sample rows (%d):", len(rows))))
			for _, row := range rows {
				fmt.Print("  ")
				for i, col := range row.Columns() {
					if i > 0 {
						fmt.Print(" | ")
					}
					val, _ := row.Value(col)
					fmt.Print(val.String())
				}
				fmt.Println()
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.Flags().IntVar(&schemaSamples, "samples", 3, "Number of sample rows to print")
}
