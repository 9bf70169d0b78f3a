package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/amber-sync/amber-sub000/internal/coordinator"
	"github.com/amber-sync/amber-sub000/internal/jobstore"
	"github.com/amber-sync/amber-sub000/internal/manifest"
	"github.com/amber-sync/amber-sub000/internal/pathvalidator"
	"github.com/amber-sync/amber-sub000/internal/transfer"
	"github.com/amber-sync/amber-sub000/internal/volume"
)

func newSnapshotCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect, search, and restore a job's recorded snapshots",
	}

	cmd.AddCommand(newSnapshotListCmd(flags))
	cmd.AddCommand(newSnapshotSearchCmd(flags))
	cmd.AddCommand(newSnapshotRestoreCmd(flags))

	return cmd
}

func newSnapshotListCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list <job-id>",
		Short: "List a job's snapshots, newest first, with human-readable sizes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := resolveConfig(flags)
			logger, err := buildLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			jobs, err := jobstore.Open(filepath.Join(cfg.DataDir, "jobs.db"), logger)
			if err != nil {
				return fmt.Errorf("failed to open job store: %w", err)
			}
			defer jobs.Close()

			job, err := jobs.GetByID(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to look up job %s: %w", args[0], err)
			}

			m, err := manifest.Read(job.DestPath)
			if err != nil {
				return fmt.Errorf("failed to read manifest: %w", err)
			}
			if m == nil || len(m.Snapshots) == 0 {
				fmt.Println("no snapshots recorded yet")
				return nil
			}

			for i := len(m.Snapshots) - 1; i >= 0; i-- {
				s := m.Snapshots[i]
				fmt.Printf("%-20s  %-10s  %8s files  %10s  %s\n",
					s.FolderName, s.Status,
					humanize.Comma(int64(s.FileCount)),
					humanize.Bytes(s.TotalSize),
					humanize.Time(time.UnixMilli(s.Timestamp)))
			}
			return nil
		},
	}
}

func newSnapshotSearchCmd(flags *globalFlags) *cobra.Command {
	var jobID string
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed snapshots by file name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := resolveConfig(flags)
			logger, err := buildLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			coord, err := coordinator.New(filepath.Join(cfg.DataDir, "catalog"), logger)
			if err != nil {
				return fmt.Errorf("failed to open catalog: %w", err)
			}
			defer coord.Close()

			store := coord.Local()
			if jobID != "" {
				jobs, err := jobstore.Open(filepath.Join(cfg.DataDir, "jobs.db"), logger)
				if err != nil {
					return fmt.Errorf("failed to open job store: %w", err)
				}
				defer jobs.Close()

				job, err := jobs.GetByID(cmd.Context(), jobID)
				if err != nil {
					return fmt.Errorf("failed to look up job %s: %w", jobID, err)
				}
				store, err = coord.StoreFor(job.DestPath)
				if err != nil {
					return fmt.Errorf("failed to resolve catalog for job %s: %w", jobID, err)
				}
			}

			results, err := store.SearchFilesGlobal(args[0], jobID, limit)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			if len(results) == 0 {
				fmt.Println("no matches")
				return nil
			}
			for _, r := range results {
				fmt.Printf("%-10s  %s  (%s)\n", humanize.Bytes(uint64(r.File.Size)), r.File.Path, humanize.Time(time.UnixMilli(r.SnapshotTime)))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&jobID, "job", "", "Scope the search to one job's catalog")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of results")

	return cmd
}

func newSnapshotRestoreCmd(flags *globalFlags) *cobra.Command {
	var targetPath string
	var mirror bool
	var files []string

	cmd := &cobra.Command{
		Use:   "restore <job-id> <timestamp-ms>",
		Short: "Restore a snapshot, or a subset of its files, into a target directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if targetPath == "" {
				return fmt.Errorf("--target is required")
			}
			ts, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("timestamp must be a unix millisecond integer: %w", err)
			}

			cfg := resolveConfig(flags)
			logger, err := buildLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			jobs, err := jobstore.Open(filepath.Join(cfg.DataDir, "jobs.db"), logger)
			if err != nil {
				return fmt.Errorf("failed to open job store: %w", err)
			}
			defer jobs.Close()

			job, err := jobs.GetByID(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to look up job %s: %w", args[0], err)
			}

			m, err := manifest.Read(job.DestPath)
			if err != nil {
				return fmt.Errorf("failed to read manifest: %w", err)
			}
			if m == nil {
				return fmt.Errorf("no manifest recorded at %s", job.DestPath)
			}
			entry, ok := m.Snapshot(strconv.FormatInt(ts, 10))
			if !ok {
				return fmt.Errorf("no snapshot recorded at timestamp %d", ts)
			}

			validator, err := pathvalidator.WithStandardRoots(cfg.DataDir, volume.MountRoots())
			if err != nil {
				return fmt.Errorf("failed to build path validator: %w", err)
			}

			snapshotPath, err := validator.Validate(filepath.Join(job.DestPath, entry.FolderName))
			if err != nil {
				return fmt.Errorf("snapshot path rejected: %w", err)
			}
			target, err := validator.ValidateForCreate(targetPath)
			if err != nil {
				return fmt.Errorf("restore target rejected: %w", err)
			}

			if len(files) > 0 {
				err = transfer.RestoreFiles(cmd.Context(), snapshotPath, target, files)
			} else {
				err = transfer.RestoreSnapshot(cmd.Context(), snapshotPath, target, mirror)
			}
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}

			fmt.Printf("restored snapshot %s to %s\n", entry.FolderName, target)
			return nil
		},
	}

	cmd.Flags().StringVar(&targetPath, "target", "", "Directory to restore into")
	cmd.Flags().BoolVar(&mirror, "mirror", false, "Delete extraneous files at target to match the snapshot exactly (whole-snapshot restore only)")
	cmd.Flags().StringArrayVar(&files, "file", nil, "Restore only this file, relative to the snapshot root; repeatable. Omit to restore the whole snapshot")

	return cmd
}
