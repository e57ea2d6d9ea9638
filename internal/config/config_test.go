package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7323 {
		t.Fatalf("expected default port 7323, got %d", cfg.Server.Port)
	}
	if cfg.Pool.TimeoutSeconds != 30 {
		t.Fatalf("expected default pool timeout 30s, got %d", cfg.Pool.TimeoutSeconds)
	}
	if cfg.Archive.Backend != "memory" || cfg.History.Backend != "memory" {
		t.Fatalf("expected memory backends by default, got %s/%s", cfg.Archive.Backend, cfg.History.Backend)
	}
	if got := cfg.TaskTimeout(); got != 30*time.Second {
		t.Fatalf("expected task timeout 30s, got %v", got)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
pool:
  size: 8
  timeout_seconds: 5
extract:
  min_text_length: 100
  min_score: 10
http:
  timeout_seconds: 45
  user_agent: readable-agent
headless:
  enabled: true
  max_parallel: 2
  nav_timeout_seconds: 30
rate_limit:
  default_rps: 1
  default_burst: 2
archive:
  backend: local
  base_dir: /tmp/artifacts
  prefix: raw
history:
  backend: postgres
  dsn: postgres://localhost/readability
  table: extractions
pubsub:
  enabled: true
  project_id: proj
  topic_name: events
report:
  enabled: true
  interval_minutes: 15
  window_hours: 6
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected auth enabled with secret key")
	}
	if cfg.Pool.Size != 8 || cfg.Pool.TimeoutSeconds != 5 {
		t.Fatalf("expected pool overrides to apply: %+v", cfg.Pool)
	}
	if cfg.Archive.Backend != "local" || cfg.Archive.BaseDir != "/tmp/artifacts" {
		t.Fatalf("expected local archive config: %+v", cfg.Archive)
	}
	if cfg.History.Backend != "postgres" || cfg.History.DSN == "" {
		t.Fatalf("expected postgres history config: %+v", cfg.History)
	}
	if !cfg.Report.Enabled || cfg.Report.IntervalMinutes != 15 {
		t.Fatalf("expected report overrides to apply: %+v", cfg.Report)
	}
	if got := cfg.FetchTimeout(); got != 45*time.Second {
		t.Fatalf("expected fetch timeout 45s, got %v", got)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:  ServerConfig{Port: 7323},
		Pool:    PoolConfig{Size: 2, TimeoutSeconds: 30},
		HTTP:    HTTPConfig{TimeoutSeconds: 15},
		Archive: ArchiveConfig{Backend: "memory"},
		History: HistoryConfig{Backend: "memory"},
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "invalid port",
			cfg: func() Config {
				c := base
				c.Server.Port = 0
				return c
			}(),
			want: "server.port",
		},
		{
			name: "invalid pool timeout",
			cfg: func() Config {
				c := base
				c.Pool.TimeoutSeconds = 0
				return c
			}(),
			want: "pool.timeout_seconds",
		},
		{
			name: "headless missing max parallel",
			cfg: func() Config {
				c := base
				c.Headless.Enabled = true
				c.Headless.MaxParallel = 0
				return c
			}(),
			want: "headless.max_parallel",
		},
		{
			name: "auth missing api key",
			cfg: func() Config {
				c := base
				c.Auth.Enabled = true
				return c
			}(),
			want: "auth.api_key",
		},
		{
			name: "local archive without base dir",
			cfg: func() Config {
				c := base
				c.Archive.Backend = "local"
				return c
			}(),
			want: "archive.base_dir",
		},
		{
			name: "gcs archive without bucket",
			cfg: func() Config {
				c := base
				c.Archive.Backend = "gcs"
				return c
			}(),
			want: "archive.gcs_bucket",
		},
		{
			name: "unknown archive backend",
			cfg: func() Config {
				c := base
				c.Archive.Backend = "s3"
				return c
			}(),
			want: "archive.backend",
		},
		{
			name: "postgres history without dsn",
			cfg: func() Config {
				c := base
				c.History.Backend = "postgres"
				return c
			}(),
			want: "history.dsn",
		},
		{
			name: "pubsub missing topic",
			cfg: func() Config {
				c := base
				c.PubSub.Enabled = true
				c.PubSub.ProjectID = "proj"
				return c
			}(),
			want: "pubsub",
		},
		{
			name: "report invalid interval",
			cfg: func() Config {
				c := base
				c.Report.Enabled = true
				return c
			}(),
			want: "report.interval_minutes",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
