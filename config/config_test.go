package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: \"9090\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.ServerPort != "9090" {
		t.Errorf("ServerPort = %q, want %q", cfg.ServerPort, "9090")
	}
	if cfg.TickSchedule == "" {
		t.Error("TickSchedule default not applied")
	}
	if cfg.WorkerPool <= 0 {
		t.Errorf("WorkerPool = %d, want > 0", cfg.WorkerPool)
	}
	if !cfg.Headless {
		t.Error("Headless should default to true")
	}
	if cfg.StageRetries != 2 {
		t.Errorf("StageRetries = %d, want 2", cfg.StageRetries)
	}
	if cfg.RetryBackoff != 3*time.Second {
		t.Errorf("RetryBackoff = %v, want 3s", cfg.RetryBackoff)
	}
	if cfg.JobCeiling != 10*time.Minute {
		t.Errorf("JobCeiling = %v, want 10m", cfg.JobCeiling)
	}
	if cfg.PendingDir == "" || cfg.PostedDir == "" || cfg.FailedDir == "" {
		t.Error("storage directory defaults not applied")
	}
}

func TestLoadParsesFullConfig(t *testing.T) {
	content := `
server:
  port: "8081"
scheduler:
  tick_schedule: "*/10 * * * * *"
  worker_pool: 3
  claim_timeout: "45m"
browser:
  headless: false
  user_agent: "test-agent"
stages:
  interaction_timeout: "20s"
  upload_timeout: "5m"
  retries: 1
  retry_backoff: "1s"
  job_ceiling: "15m"
storage:
  pending_dir: "/tmp/pending"
database:
  url: "sqlite3:/tmp/test.db"
accounts:
  - handle: creator_a
    cookies_path: ./cookies/a.json
    daily_quota: 2
    slots: ["09:00", "17:30"]
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.TickSchedule != "*/10 * * * * *" {
		t.Errorf("TickSchedule = %q", cfg.TickSchedule)
	}
	if cfg.WorkerPool != 3 {
		t.Errorf("WorkerPool = %d, want 3", cfg.WorkerPool)
	}
	if cfg.ClaimTimeout != 45*time.Minute {
		t.Errorf("ClaimTimeout = %v, want 45m", cfg.ClaimTimeout)
	}
	if cfg.Headless {
		t.Error("Headless = true, want false")
	}
	if cfg.UserAgent != "test-agent" {
		t.Errorf("UserAgent = %q", cfg.UserAgent)
	}
	if cfg.InteractionTimeout != 20*time.Second {
		t.Errorf("InteractionTimeout = %v, want 20s", cfg.InteractionTimeout)
	}
	if cfg.UploadTimeout != 5*time.Minute {
		t.Errorf("UploadTimeout = %v, want 5m", cfg.UploadTimeout)
	}
	if cfg.StageRetries != 1 {
		t.Errorf("StageRetries = %d, want 1", cfg.StageRetries)
	}
	if cfg.PendingDir != "/tmp/pending" {
		t.Errorf("PendingDir = %q", cfg.PendingDir)
	}

	if len(cfg.BootstrapAccounts) != 1 {
		t.Fatalf("got %d bootstrap accounts, want 1", len(cfg.BootstrapAccounts))
	}
	account := cfg.BootstrapAccounts[0]
	if account.Handle != "creator_a" || account.DailyQuota != 2 {
		t.Errorf("unexpected bootstrap account: %+v", account)
	}
	if len(account.Slots) != 2 || account.Slots[0] != "09:00" {
		t.Errorf("unexpected slots: %v", account.Slots)
	}
}

func TestLoadCreatesDefaultConfigWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want default 8080", cfg.ServerPort)
	}
	if _, err := os.Stat(path); err != nil {
		t.Error("default config file was not written")
	}
}

func TestEnvOverridesFileValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: \"9090\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("DATABASE_URL", "sqlite3:/tmp/env.db")

	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.ServerPort != "7070" {
		t.Errorf("ServerPort = %q, want env override 7070", cfg.ServerPort)
	}
	if cfg.DatabaseURL != "sqlite3:/tmp/env.db" {
		t.Errorf("DatabaseURL = %q, want env override", cfg.DatabaseURL)
	}
}
