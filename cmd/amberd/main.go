package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/amber-sync/amber-sub000/internal/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// globalFlags holds the flags shared across subcommands. Each subcommand
// resolves its own config.Config by layering these over config.Load, which
// already layers AMBER_-prefixed environment variables over a YAML file —
// an explicitly set flag always wins.
type globalFlags struct {
	configPath  string
	dataDir     string
	logLevel    string
	machineName string

	httpAddr          string
	enableScheduler   bool
	schedulerInterval time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "amberd",
		Short: "amberd — local backup manager",
		Long: `amberd runs and controls local backup jobs: scheduled rsync/rclone
snapshots of a source directory into a versioned destination, each one
cataloged for fast browsing and full-text search.`,
	}

	root.PersistentFlags().StringVar(&flags.configPath, "config", config.EnvOrDefault("AMBER_CONFIG", ""), "Path to a YAML config file")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", config.EnvOrDefault("AMBER_DATA_DIR", ""), "Directory for the job store and local catalog (overrides config file)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", config.EnvOrDefault("AMBER_LOG_LEVEL", ""), "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flags.machineName, "machine-name", config.EnvOrDefault("AMBER_MACHINE_NAME", ""), "Override this machine's recorded name")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newServeCmd(flags))
	root.AddCommand(newJobCmd(flags))
	root.AddCommand(newSnapshotCmd(flags))
	root.AddCommand(newMigrateCmd(flags))

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("amberd %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

// resolveConfig layers flags over config.Load(flags.configPath).
func resolveConfig(flags *globalFlags) config.Config {
	cfg := config.Load(flags.configPath)
	if flags.dataDir != "" {
		cfg.DataDir = flags.dataDir
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if flags.machineName != "" {
		cfg.MachineName = flags.machineName
	}
	if flags.httpAddr != "" {
		cfg.HTTPAddr = flags.httpAddr
	}
	if flags.enableScheduler {
		cfg.EnableScheduler = true
	}
	if flags.schedulerInterval > 0 {
		cfg.SchedulerInterval = flags.schedulerInterval
	}
	return cfg
}

func buildLogger(level string) (*zap.Logger, error) {
	var cfg zap.Config

	switch level {
	case "debug":
		cfg = zap.NewDevelopmentConfig()
	default:
		cfg = zap.NewProductionConfig()
	}

	switch level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return cfg.Build()
}
