package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/tablestream/internal"
	"github.com/iksnae/tablestream/internal/server"
	"github.com/spf13/cobra"
)

var (
	serveCSVPath   string
	servePort      int
	serveChunkSize int
)

var (
	bannerStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("62")).
		Bold(true)

	detailStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("39"))
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Load the dataset and serve it over HTTP",
	Long: `Load the configured CSV dataset into an in-memory store and start
the HTTP server.

Endpoints:
  POST   /mcp              Run a query, stream results as events
  DELETE /mcp/:sessionId   Terminate a session
  GET    /health           Liveness and active session count
  GET    /schema           Column list, sample rows, example queries

A session id is assigned on the first request and echoed in the
Mcp-Session-Id response header; idle sessions expire after the
configured TTL.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := internal.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("csv") {
			cfg.Dataset.CSVPath = serveCSVPath
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = servePort
		}
		if cmd.Flags().Changed("chunk-size") {
			cfg.Stream.ChunkSize = serveChunkSize
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		schema := internal.DefaultSchema()
		schema.Table = cfg.Dataset.Table
		store, err := internal.OpenMemoryStore(schema)
		if err != nil {
			return err
		}
		defer store.Close()

		count, err := store.LoadCSV(cfg.Dataset.CSVPath)
		if err != nil {
			return err
		}

		registry := internal.NewRegistry(cfg.Session.TTL, nil)
		registry.StartSweeper(cfg.Session.SweepInterval)
		defer registry.Close()

		srv, err := server.NewServer(cfg, store, registry)
		if err != nil {
			return err
		}

		fmt.Println(bannerStyle.Render("tablestream"))
		fmt.Println(detailStyle.Render(fmt.Sprintf("  dataset:    %s (%d rows)", cfg.Dataset.CSVPath, count)))
		fmt.Println(detailStyle.Render(fmt.Sprintf("  table:      %s", cfg.Dataset.Table)))
		fmt.Println(detailStyle.Render(fmt.Sprintf("  listen:     http://%s", cfg.Server.Addr())))
		fmt.Println(detailStyle.Render(fmt.Sprintf("  chunk size: %d rows", cfg.Stream.ChunkSize)))
		fmt.Println(detailStyle.Render(fmt.Sprintf("  session ttl: %s", cfg.Session.TTL)))

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case err := <-errCh:
			return err
		case <-quit:
		}

		internal.LogInfo("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Stop(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveCSVPath, "csv", "", "Path to the CSV dataset (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "HTTP listen port (overrides config)")
	serveCmd.Flags().IntVar(&serveChunkSize, "chunk-size", 0, "Rows per data chunk (overrides config)")
}
