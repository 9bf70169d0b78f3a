// Package config loads amberd's runtime configuration: an optional YAML
// file, overlaid with environment variables, overlaid with cobra flags —
// the same small-typed-struct-with-defaults shape the teacher uses for
// db.Config and notification.Config, rather than a generic config
// framework.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is amberd's full runtime configuration.
type Config struct {
	// HTTPAddr is the listen address for the API server. amberd binds to
	// loopback by default since there is no authentication layer.
	HTTPAddr string

	// DataDir holds the Job Store database and the app-local catalog.
	DataDir string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// MachineName overrides the hostname recorded against jobs run from
	// this machine. Empty means "use the OS hostname".
	MachineName string

	// EnableScheduler turns on the in-process gocron loop that calls
	// internal/schedule.IsDue for every job once per SchedulerInterval
	// and triggers due runs. Off by default — jobs otherwise run only on
	// explicit `amberd job run` invocations or API run requests.
	EnableScheduler bool

	// SchedulerInterval is how often the enabled scheduler loop checks
	// for due jobs.
	SchedulerInterval time.Duration
}

// fileConfig is the on-disk YAML shape, kept distinct from Config so the
// YAML schema can evolve independently of the in-memory struct's field
// names and types.
type fileConfig struct {
	HTTPAddr    string `yaml:"httpAddr"`
	DataDir     string `yaml:"dataDir"`
	LogLevel    string `yaml:"logLevel"`
	MachineName string `yaml:"machineName"`
	Scheduler   struct {
		Enabled  bool   `yaml:"enabled"`
		Interval string `yaml:"interval"`
	} `yaml:"scheduler"`
}

// Defaults returns the configuration used when no file, environment
// variable, or flag overrides a field.
func Defaults() Config {
	return Config{
		HTTPAddr:          "127.0.0.1:8787",
		DataDir:           "./amber-data",
		LogLevel:          "info",
		MachineName:       "",
		EnableScheduler:   false,
		SchedulerInterval: time.Minute,
	}
}

// Load builds a Config from Defaults, a YAML file at path (if it exists),
// and AMBER_-prefixed environment variables, in that order of increasing
// precedence. A missing or unparsable file is silently skipped — amberd
// runs on defaults-plus-env rather than refusing to start.
func Load(path string) Config {
	cfg := Defaults()

	if path != "" {
		if b, err := os.ReadFile(path); err == nil {
			var fc fileConfig
			if yaml.Unmarshal(b, &fc) == nil {
				applyFile(&cfg, fc)
			}
		}
	}

	return applyEnv(cfg)
}

func applyFile(cfg *Config, fc fileConfig) {
	if fc.HTTPAddr != "" {
		cfg.HTTPAddr = fc.HTTPAddr
	}
	if fc.DataDir != "" {
		cfg.DataDir = fc.DataDir
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}
	if fc.MachineName != "" {
		cfg.MachineName = fc.MachineName
	}
	cfg.EnableScheduler = fc.Scheduler.Enabled
	if fc.Scheduler.Interval != "" {
		if d, err := time.ParseDuration(fc.Scheduler.Interval); err == nil && d > 0 {
			cfg.SchedulerInterval = d
		}
	}
}

func applyEnv(cfg Config) Config {
	if v := os.Getenv("AMBER_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("AMBER_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("AMBER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("AMBER_MACHINE_NAME"); v != "" {
		cfg.MachineName = v
	}
	if v := os.Getenv("AMBER_ENABLE_SCHEDULER"); v != "" {
		cfg.EnableScheduler = v == "1" || v == "true" || v == "yes"
	}
	if v := os.Getenv("AMBER_SCHEDULER_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.SchedulerInterval = d
		}
	}
	return cfg
}

// envOrDefault returns the environment variable's value if set, else
// defaultVal — used directly by cmd/amberd to seed cobra flag defaults so
// a flag's help text reflects what would actually be used if unset.
func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// EnvOrDefault exports envOrDefault for cmd/amberd's flag registration.
func EnvOrDefault(key, defaultVal string) string {
	return envOrDefault(key, defaultVal)
}

// ParseBoolEnv mirrors applyEnv's boolean parsing for cmd/amberd's flag
// default resolution.
func ParseBoolEnv(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v == "1" || v == "true" || v == "yes"
}
