// Package cmd wires the blueprint CLI: the API server, schema
// migrations, and version information.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/blueprintlabs/blueprint/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "blueprint",
	Short: "Streaming artifact server for conversational drafting",
	Long: `Blueprint serves the streaming chat API that drafts documents,
diagrams, and designs next to a conversation. Assistant turns stream
typed artifact deltas over SSE or WebSocket; document versions and
suggestions persist in PostgreSQL.

Run 'blueprint serve' to start the server.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the process logger. DEBUG in the environment lowers
// the level; BLUEPRINT_LOG_JSON switches to JSON output.
func newLogger() log.Logger {
	cfg := log.Config{Level: slog.LevelInfo}
	if os.Getenv("DEBUG") != "" {
		cfg.Level = slog.LevelDebug
	}
	if os.Getenv("BLUEPRINT_LOG_JSON") != "" {
		cfg.JSON = true
	}
	logger := log.New(cfg)
	slog.SetDefault(logger)
	return logger
}
