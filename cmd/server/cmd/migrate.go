package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/Ycseeasy/explore-with-me/internal/config"
	"github.com/Ycseeasy/explore-with-me/internal/storage/postgres"
	"github.com/spf13/cobra"
)

type migrateFlags struct {
	path      string
	steps     int
	skipRiver bool
}

func newMigrateCommand(global *globalFlags) *cobra.Command {
	flags := &migrateFlags{}
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or revert database migrations",
		Long: `Manage the PostgreSQL schema with golang-migrate.

"migrate up" also installs the river job queue tables unless --skip-river is set.`,
	}
	cmd.PersistentFlags().StringVar(&flags.path, "path", postgres.DefaultMigrationsPath, "directory holding the SQL migrations")

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := migrationConfig(global)
			if err != nil {
				return err
			}
			logger := config.NewLogger(cfg.Logging)
			if err := postgres.MigrateUp(cfg.Database.URL, flags.path); err != nil {
				return err
			}
			logger.Info().Str("path", flags.path).Msg("schema migrations applied")
			if flags.skipRiver {
				return nil
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			pool, err := postgres.Connect(ctx, postgres.PoolConfig{URL: cfg.Database.URL, MaxConns: 2})
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := postgres.MigrateRiver(ctx, pool); err != nil {
				return err
			}
			logger.Info().Msg("river migrations applied")
			return nil
		},
	}
	up.Flags().BoolVar(&flags.skipRiver, "skip-river", false, "do not install the river job tables")

	down := &cobra.Command{
		Use:   "down",
		Short: "Revert the most recent migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := migrationConfig(global)
			if err != nil {
				return err
			}
			if err := postgres.MigrateDown(cfg.Database.URL, flags.path, flags.steps); err != nil {
				return err
			}
			logger := config.NewLogger(cfg.Logging)
			logger.Info().Int("steps", flags.steps).Msg("schema migrations reverted")
			return nil
		},
	}
	down.Flags().IntVar(&flags.steps, "steps", 1, "number of migrations to revert")

	cmd.AddCommand(up, down)
	return cmd
}

func migrationConfig(global *globalFlags) (config.Config, error) {
	cfg, err := global.loadConfig()
	if err != nil {
		return config.Config{}, err
	}
	if cfg.Storage.Driver != config.StoragePostgres {
		return config.Config{}, fmt.Errorf("migrations need the postgres storage driver, got %q", cfg.Storage.Driver)
	}
	return cfg, nil
}
