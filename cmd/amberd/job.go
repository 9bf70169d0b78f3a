package main

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/amber-sync/amber-sub000/internal/coordinator"
	"github.com/amber-sync/amber-sub000/internal/jobstore"
	"github.com/amber-sync/amber-sub000/internal/machineid"
	"github.com/amber-sync/amber-sub000/internal/pathvalidator"
	"github.com/amber-sync/amber-sub000/internal/progress"
	"github.com/amber-sync/amber-sub000/internal/snapshot"
	"github.com/amber-sync/amber-sub000/internal/transfer"
	"github.com/amber-sync/amber-sub000/internal/volume"
)

func newJobCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Manage configured backup jobs",
	}

	cmd.AddCommand(newJobListCmd(flags))
	cmd.AddCommand(newJobCreateCmd(flags))
	cmd.AddCommand(newJobRunCmd(flags))
	cmd.AddCommand(newJobKillCmd(flags))

	return cmd
}

func newJobListCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured jobs",
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

			all, err := jobs.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list jobs: %w", err)
			}
			if len(all) == 0 {
				fmt.Println("no jobs configured")
				return nil
			}
			for _, j := range all {
				lastRun := "never"
				if j.LastRunAt != nil {
					lastRun = humanize.Time(*j.LastRunAt)
				}
				fmt.Printf("%s  %-20s  %s -> %s  [%s]  last run: %s (%s)\n",
					j.ID, j.Name, j.SourcePath, j.DestPath, j.Mode, lastRun, statusOrPending(j.LastStatus))
			}
			return nil
		},
	}
}

func statusOrPending(status string) string {
	if status == "" {
		return "pending"
	}
	return status
}

func newJobCreateCmd(flags *globalFlags) *cobra.Command {
	var name, source, dest, mode string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new backup job",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" || source == "" || dest == "" {
				return fmt.Errorf("--name, --source and --dest are required")
			}
			if mode == "" {
				mode = string(transfer.ModeTimeMachine)
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

			machineName := cfg.MachineName
			if machineName == "" {
				machineName = machineid.Name()
			}

			job := &jobstore.Job{
				Name:        name,
				SourcePath:  source,
				DestPath:    dest,
				Mode:        mode,
				RsyncConfig: jobstore.JSONColumn[transfer.RsyncConfig]{},
				Schedule:    jobstore.JSONColumn[jobstore.JobSchedule]{},
				MachineID:   machineid.ID(),
				MachineName: machineName,
			}
			if err := jobs.Create(cmd.Context(), job); err != nil {
				return fmt.Errorf("failed to create job: %w", err)
			}

			fmt.Printf("created job %s (%s)\n", job.ID, job.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Job name")
	cmd.Flags().StringVar(&source, "source", "", "Source directory to back up")
	cmd.Flags().StringVar(&dest, "dest", "", "Destination directory")
	cmd.Flags().StringVar(&mode, "mode", "", "Backup mode: time_machine, mirror, or archive")

	return cmd
}

func newJobRunCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run <job-id>",
		Short: "Run a configured job immediately and wait for it to finish",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJobRuntime(flags, func(ctx context.Context, jobs *jobstore.Store, runner *snapshot.Runner, hub *progress.Hub, logger *zap.Logger) error {
				id := args[0]
				job, err := jobs.GetByID(ctx, id)
				if err != nil {
					return fmt.Errorf("failed to look up job %s: %w", id, err)
				}

				snapJob := snapshot.Job{
					ID:          job.ID,
					Name:        job.Name,
					SourcePath:  job.SourcePath,
					DestPath:    job.DestPath,
					Mode:        transfer.Mode(job.Mode),
					Rsync:       job.RsyncConfig.Value,
					SSH:         job.SSHConfig.Value,
					MachineID:   job.MachineID,
					MachineName: job.MachineName,
				}

				start := time.Now()
				result, runErr := runner.Run(ctx, snapJob, hub)

				status := string(snapshot.StatusCompleted)
				if runErr != nil {
					status = string(snapshot.StatusFailed)
				}
				if uerr := jobs.UpdateRunResult(ctx, job.ID, status, sql.NullTime{Time: start, Valid: true}); uerr != nil {
					logger.Warn("failed to record run result", zap.Error(uerr))
				}

				if runErr != nil {
					return fmt.Errorf("job run failed: %w", runErr)
				}

				fmt.Printf("run complete: %s files, %s\n",
					humanize.Comma(int64(result.Entry.FileCount)),
					humanize.Bytes(result.Entry.TotalSize))
				return nil
			})
		},
	}
}

func newJobKillCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "kill <job-id>",
		Short: "Cancel a job currently running in another amberd process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("kill requires a running amberd serve process reachable over its API; use the HTTP endpoint POST /api/v1/jobs/%s/kill instead", args[0])
		},
	}
}

// withJobRuntime opens the job store, catalog coordinator, path validator,
// and a SnapshotRunner for a single CLI invocation, and guarantees they are
// closed afterward. Used by subcommands that need to actually execute a
// run rather than just read job metadata.
func withJobRuntime(flags *globalFlags, fn func(ctx context.Context, jobs *jobstore.Store, runner *snapshot.Runner, hub *progress.Hub, logger *zap.Logger) error) error {
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

	coord, err := coordinator.New(filepath.Join(cfg.DataDir, "catalog"), logger)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer coord.Close()

	validator, err := pathvalidator.WithStandardRoots(cfg.DataDir, volume.MountRoots())
	if err != nil {
		return fmt.Errorf("failed to build path validator: %w", err)
	}

	runner := snapshot.New(validator, coord.Local(), logger)
	hub := progress.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	return fn(ctx, jobs, runner, hub, logger)
}
