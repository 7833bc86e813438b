package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/blueprintlabs/blueprint/api"
	"github.com/blueprintlabs/blueprint/internal/config"
	"github.com/blueprintlabs/blueprint/internal/database"
	"github.com/blueprintlabs/blueprint/internal/document"
	"github.com/blueprintlabs/blueprint/internal/generator"
	"github.com/blueprintlabs/blueprint/internal/log"
	"github.com/blueprintlabs/blueprint/internal/observability"
	"github.com/blueprintlabs/blueprint/internal/turn"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(parent context.Context) error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger.Info("configuration loaded", "config", cfg)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.Setup(ctx, cfg.Observability, logger)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	connURL := cfg.PostgresURL()
	if err := database.Migrate(connURL, logger); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	pool, err := database.Open(ctx, connURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	store, err := document.NewPostgresStore(pool, logger)
	if err != nil {
		return fmt.Errorf("creating document store: %w", err)
	}

	model, err := generator.NewGemini(ctx, generator.GeminiConfig{
		APIKey:            cfg.GeminiAPIKey,
		Model:             cfg.ModelName,
		RequestsPerSecond: cfg.ModelRequestsPerSec,
	}, logger)
	if err != nil {
		return fmt.Errorf("creating model client: %w", err)
	}

	toolset := turn.Toolset{
		Store:      store,
		Model:      model,
		Workflow:   generator.NewWorkflowClient(cfg.WorkflowBaseURL, cfg.WorkflowUser, logger),
		DesignKey:  cfg.DesignAPIKey,
		DiagramKey: cfg.DiagramAPIKey,
		Logger:     logger,
	}

	srv := api.NewServer(api.Config{
		Pool:        pool,
		Store:       store,
		Toolset:     toolset,
		MaxTurns:    cfg.MaxTurns,
		SaveDelay:   time.Duration(cfg.SaveDelayMS) * time.Millisecond,
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx, cfg.Addr)
	})
	g.Go(func() error {
		return logPoolStats(ctx, pool, logger)
	})
	return g.Wait()
}

// logPoolStats reports connection pool pressure periodically, at debug
// level so it is free in production.
func logPoolStats(ctx context.Context, pool *pgxpool.Pool, logger log.Logger) error {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			stat := pool.Stat()
			logger.Debug("database pool stats",
				"total", stat.TotalConns(),
				"idle", stat.IdleConns(),
				"acquired", stat.AcquiredConns(),
			)
		}
	}
}
