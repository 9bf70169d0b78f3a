package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/amber-sync/amber-sub000/internal/coordinator"
	"github.com/amber-sync/amber-sub000/internal/jobstore"
)

// newMigrateCmd runs every pending schema migration for both the Job Store
// (golang-migrate, embedded SQL files) and the app-local catalog (its own
// PRAGMA user_version check), without starting the server. Useful before an
// upgrade, or in a container init step ahead of `amberd serve`.
func newMigrateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending job store and catalog schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := resolveConfig(flags)
			logger, err := buildLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			jobsPath := filepath.Join(cfg.DataDir, "jobs.db")
			jobs, err := jobstore.Open(jobsPath, logger)
			if err != nil {
				return fmt.Errorf("failed to migrate job store at %s: %w", jobsPath, err)
			}
			defer jobs.Close()
			fmt.Printf("job store migrated: %s\n", jobsPath)

			catalogDir := filepath.Join(cfg.DataDir, "catalog")
			coord, err := coordinator.New(catalogDir, logger)
			if err != nil {
				return fmt.Errorf("failed to migrate catalog at %s: %w", catalogDir, err)
			}
			defer coord.Close()
			fmt.Printf("local catalog migrated: %s\n", catalogDir)

			return nil
		},
	}
}
