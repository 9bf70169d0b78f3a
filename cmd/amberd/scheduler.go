package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/amber-sync/amber-sub000/internal/jobstore"
	"github.com/amber-sync/amber-sub000/internal/metrics"
	"github.com/amber-sync/amber-sub000/internal/progress"
	"github.com/amber-sync/amber-sub000/internal/schedule"
	"github.com/amber-sync/amber-sub000/internal/snapshot"
	"github.com/amber-sync/amber-sub000/internal/transfer"
)

// startScheduler starts a gocron loop that, every interval, lists every
// configured job and triggers a run for each one internal/schedule reports
// as due. internal/schedule only answers "is it due" — running the job and
// recording the result is this front-end's job, same as a cron(8) entry or
// a tray app would do it.
func startScheduler(
	ctx context.Context,
	interval time.Duration,
	jobs *jobstore.Store,
	runner *snapshot.Runner,
	hub *progress.Hub,
	m *metrics.Metrics,
	logger *zap.Logger,
) (gocron.Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			checkDueJobs(ctx, jobs, runner, hub, m, logger)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("gocron.NewJob failed: %w", err)
	}

	s.Start()
	logger.Info("scheduler started", zap.Duration("interval", interval))
	return s, nil
}

// checkDueJobs lists every configured job and triggers a background run for
// each one that is due and not already running.
func checkDueJobs(
	ctx context.Context,
	jobStore *jobstore.Store,
	runner *snapshot.Runner,
	hub *progress.Hub,
	m *metrics.Metrics,
	logger *zap.Logger,
) {
	all, err := jobStore.List(ctx)
	if err != nil {
		logger.Error("scheduler failed to list jobs", zap.Error(err))
		return
	}

	now := time.Now()
	for i := range all {
		j := all[i]

		s, err := schedule.Parse(j.Schedule.Value.Enabled, j.Schedule.Value.Cron, j.Schedule.Value.RunOnMount)
		if err != nil {
			logger.Warn("skipping job with invalid schedule", zap.String("job_id", j.ID), zap.Error(err))
			continue
		}

		var lastRun time.Time
		if j.LastRunAt != nil {
			lastRun = *j.LastRunAt
		}
		if !s.IsDue(lastRun, now) {
			continue
		}
		if runner.IsRunning(j.ID) {
			continue
		}

		logger.Info("scheduler triggering due job", zap.String("job_id", j.ID), zap.String("name", j.Name))
		go runTriggeredJob(jobStore, runner, hub, m, logger, j)
	}
}

// runTriggeredJob runs one job to completion and records the outcome, the
// same bookkeeping the API's POST /jobs/{id}/run handler performs for a
// manually triggered run.
func runTriggeredJob(
	jobStore *jobstore.Store,
	runner *snapshot.Runner,
	hub *progress.Hub,
	m *metrics.Metrics,
	logger *zap.Logger,
	j jobstore.Job,
) {
	snapJob := snapshot.Job{
		ID:          j.ID,
		Name:        j.Name,
		SourcePath:  j.SourcePath,
		DestPath:    j.DestPath,
		Mode:        transfer.Mode(j.Mode),
		Rsync:       j.RsyncConfig.Value,
		SSH:         j.SSHConfig.Value,
		MachineID:   j.MachineID,
		MachineName: j.MachineName,
	}

	start := time.Now()
	result, err := runner.Run(context.Background(), snapJob, hub)

	status := string(snapshot.StatusCompleted)
	if err != nil {
		status = string(snapshot.StatusFailed)
		logger.Error("scheduled job run failed", zap.String("job_id", j.ID), zap.Error(err))
	}

	if uerr := jobStore.UpdateRunResult(context.Background(), j.ID, status, sql.NullTime{Time: start, Valid: true}); uerr != nil {
		logger.Error("failed to record scheduled run result", zap.String("job_id", j.ID), zap.Error(uerr))
	}

	if m != nil {
		m.ObserveSnapshot(status, time.Since(start).Seconds(), int64(result.Entry.FileCount), int64(result.Entry.TotalSize))
	}
}
