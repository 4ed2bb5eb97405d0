// cmd/main.go is the application entry point.
// It wires together all layers behind a small cobra command tree.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/KashanAdnan02/GroundZeroBackend2/internal/config"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/database"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/logging"
)

func main() {
	root := &cobra.Command{
		Use:          "groundzero",
		Short:        "Sports facility booking service",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(sweepCmd())
	root.AddCommand(tokenCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// runtime is the configuration, logger and database shared by commands.
type runtime struct {
	cfg  config.App
	log  zerolog.Logger
	pool *pgxpool.Pool
}

// bootstrap loads config, builds the logger and connects to PostgreSQL.
func bootstrap(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logging.New(cfg.LogLevel, cfg.LogPretty)

	pool, err := database.NewPool(ctx, cfg.DB, log)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	log.Info().Str("host", cfg.DB.Host).Str("db", cfg.DB.Name).Msg("connected to PostgreSQL")
	return &runtime{cfg: cfg, log: log, pool: pool}, nil
}
