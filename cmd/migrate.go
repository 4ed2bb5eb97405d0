package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KashanAdnan02/GroundZeroBackend2/internal/database"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			rt, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer rt.pool.Close()

			if err := database.Migrate(ctx, rt.pool); err != nil {
				return err
			}
			rt.log.Info().Msg("schema applied")
			return nil
		},
	}
}

// sweepCmd runs every sweep task once, for cron-driven deployments.
func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run the booking sweeps once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			rt, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer rt.pool.Close()

			svc, err := wire(rt)
			if err != nil {
				return err
			}
			defer svc.close()

			var errs []error
			for _, t := range sweepTasks(svc, rt.cfg.SweepEvery) {
				if err := t.Run(ctx); err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", t.Name, err))
					continue
				}
				rt.log.Info().Str("task", t.Name).Msg("sweep done")
			}
			return errors.Join(errs...)
		},
	}
}
