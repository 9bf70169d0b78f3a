package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.HTTPAddr == "" {
		t.Fatal("expected a non-empty default HTTP address")
	}
	if cfg.EnableScheduler {
		t.Fatal("expected the scheduler to be disabled by default")
	}
	if cfg.SchedulerInterval <= 0 {
		t.Fatal("expected a positive default scheduler interval")
	}
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if cfg != Defaults() {
		t.Fatalf("expected defaults for a missing file, got %+v", cfg)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "amberd.yaml")
	contents := "httpAddr: 0.0.0.0:9000\ndataDir: /var/lib/amberd\nscheduler:\n  enabled: true\n  interval: 30s\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Load(path)
	if cfg.HTTPAddr != "0.0.0.0:9000" {
		t.Errorf("expected httpAddr override, got %q", cfg.HTTPAddr)
	}
	if cfg.DataDir != "/var/lib/amberd" {
		t.Errorf("expected dataDir override, got %q", cfg.DataDir)
	}
	if !cfg.EnableScheduler {
		t.Error("expected scheduler.enabled to be applied")
	}
	if cfg.SchedulerInterval != 30*time.Second {
		t.Errorf("expected a 30s scheduler interval, got %v", cfg.SchedulerInterval)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "amberd.yaml")
	if err := os.WriteFile(path, []byte("httpAddr: 0.0.0.0:9000\n"), 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	t.Setenv("AMBER_HTTP_ADDR", "127.0.0.1:7000")
	cfg := Load(path)
	if cfg.HTTPAddr != "127.0.0.1:7000" {
		t.Errorf("expected env override to win, got %q", cfg.HTTPAddr)
	}
}

func TestEnvOrDefault(t *testing.T) {
	t.Setenv("AMBER_TEST_KEY", "")
	if got := EnvOrDefault("AMBER_TEST_KEY", "fallback"); got != "fallback" {
		t.Errorf("expected fallback for unset env var, got %q", got)
	}

	t.Setenv("AMBER_TEST_KEY", "explicit")
	if got := EnvOrDefault("AMBER_TEST_KEY", "fallback"); got != "explicit" {
		t.Errorf("expected explicit env value, got %q", got)
	}
}

func TestParseBoolEnv(t *testing.T) {
	t.Setenv("AMBER_TEST_BOOL", "")
	if ParseBoolEnv("AMBER_TEST_BOOL", true) != true {
		t.Error("expected default to be returned for unset env var")
	}

	t.Setenv("AMBER_TEST_BOOL", "true")
	if !ParseBoolEnv("AMBER_TEST_BOOL", false) {
		t.Error("expected true to parse as true")
	}

	t.Setenv("AMBER_TEST_BOOL", "0")
	if ParseBoolEnv("AMBER_TEST_BOOL", true) {
		t.Error("expected 0 to parse as false")
	}
}
