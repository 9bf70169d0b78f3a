package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/amber-sync/amber-sub000/internal/api"
	"github.com/amber-sync/amber-sub000/internal/config"
	"github.com/amber-sync/amber-sub000/internal/coordinator"
	"github.com/amber-sync/amber-sub000/internal/jobstore"
	"github.com/amber-sync/amber-sub000/internal/machineid"
	"github.com/amber-sync/amber-sub000/internal/metrics"
	"github.com/amber-sync/amber-sub000/internal/pathvalidator"
	"github.com/amber-sync/amber-sub000/internal/progress"
	"github.com/amber-sync/amber-sub000/internal/snapshot"
	"github.com/amber-sync/amber-sub000/internal/volume"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the amberd API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), resolveConfig(flags))
		},
	}

	cmd.Flags().StringVar(&flags.httpAddr, "http-addr", config.EnvOrDefault("AMBER_HTTP_ADDR", ""), "HTTP API listen address (overrides config file)")
	cmd.Flags().BoolVar(&flags.enableScheduler, "enable-scheduler", config.ParseBoolEnv("AMBER_ENABLE_SCHEDULER", false), "Run an in-process scheduler that triggers due jobs")
	cmd.Flags().DurationVar(&flags.schedulerInterval, "scheduler-interval", 0, "How often the scheduler checks for due jobs (overrides config file)")

	return cmd
}

func runServe(ctx context.Context, cfg config.Config) error {
	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	machineID := machineid.ID()
	machineName := cfg.MachineName
	if machineName == "" {
		machineName = machineid.Name()
	}

	logger.Info("starting amberd",
		zap.String("version", version),
		zap.String("http_addr", cfg.HTTPAddr),
		zap.String("data_dir", cfg.DataDir),
		zap.String("machine_id", machineID),
		zap.String("machine_name", machineName),
		zap.Bool("scheduler_enabled", cfg.EnableScheduler),
	)

	// --- Signal handling ---
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	// --- 1. Job Store ---
	jobs, err := jobstore.Open(filepath.Join(cfg.DataDir, "jobs.db"), logger)
	if err != nil {
		return fmt.Errorf("failed to open job store: %w", err)
	}
	defer jobs.Close()

	// --- 2. Catalog coordinator ---
	coord, err := coordinator.New(filepath.Join(cfg.DataDir, "catalog"), logger)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer coord.Close()

	// --- 3. Path validator ---
	validator, err := pathvalidator.WithStandardRoots(cfg.DataDir, volume.MountRoots())
	if err != nil {
		return fmt.Errorf("failed to build path validator: %w", err)
	}

	// --- 4. Snapshot runner ---
	runner := snapshot.New(validator, coord.Local(), logger)

	// --- 5. Progress hub ---
	hub := progress.NewHub()
	go hub.Run(ctx)

	// --- 6. Metrics ---
	m := metrics.New()

	// --- 7. Optional in-process scheduler ---
	if cfg.EnableScheduler {
		sched, err := startScheduler(ctx, cfg.SchedulerInterval, jobs, runner, hub, m, logger)
		if err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() {
			if err := sched.Shutdown(); err != nil {
				logger.Warn("scheduler shutdown error", zap.Error(err))
			}
		}()
	}

	// --- 8. HTTP server ---
	router := api.NewRouter(api.RouterConfig{
		Jobs:        jobs,
		Runner:      runner,
		Coordinator: coord,
		Validator:   validator,
		Hub:         hub,
		Metrics:     m,
		Logger:      logger,
		MachineID:   machineID,
		MachineName: machineName,
	})

	httpSrv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			cancel()
		}
	}()

	// --- Wait for shutdown signal ---
	<-ctx.Done()
	logger.Info("shutting down amberd")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server graceful shutdown error", zap.Error(err))
	}

	logger.Info("amberd stopped")
	return nil
}
