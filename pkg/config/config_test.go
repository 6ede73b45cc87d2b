package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Pipeline.Workers != 4 {
		t.Errorf("workers = %d, want default 4", cfg.Pipeline.Workers)
	}
	if cfg.Adapters.Review.CallsPerMinute != 15 {
		t.Errorf("callsPerMinute = %d, want default 15", cfg.Adapters.Review.CallsPerMinute)
	}
	if cfg.Memory.MinDim != 64 {
		t.Errorf("minDim = %d, want default 64", cfg.Memory.MinDim)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config failed validation: %v", err)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
pipeline:
  workers: 8
adapters:
  review:
    callsPerMinute: 30
    retryAfter: 90s
scoring:
  passThreshold: 85
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Pipeline.Workers != 8 {
		t.Errorf("workers = %d, want 8 from the file", cfg.Pipeline.Workers)
	}
	if cfg.Adapters.Review.RetryAfter != 90*time.Second {
		t.Errorf("retryAfter = %v, want 90s", cfg.Adapters.Review.RetryAfter)
	}
	if cfg.Scoring.PassThreshold != 85 {
		t.Errorf("passThreshold = %d, want 85", cfg.Scoring.PassThreshold)
	}
	// Untouched sections keep their defaults.
	if cfg.Scoring.FlagThreshold != 40 {
		t.Errorf("flagThreshold = %d, want default 40", cfg.Scoring.FlagThreshold)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load with a missing explicit path returned nil error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TG_API_KEY", "secret")
	t.Setenv("TG_WORKERS", "12")
	t.Setenv("TG_REDIS_ADDR", "cache:6379")
	t.Setenv("TG_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("TG_LOGGING_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Adapters.Review.APIKey != "secret" || cfg.Memory.APIKey != "secret" {
		t.Error("TG_API_KEY must fan out to every adapter")
	}
	if cfg.Pipeline.Workers != 12 {
		t.Errorf("workers = %d, want 12 from env", cfg.Pipeline.Workers)
	}
	if !cfg.Redis.Enabled || cfg.Redis.Addr != "cache:6379" {
		t.Errorf("redis = %+v, want enabled at cache:6379", cfg.Redis)
	}
	if !cfg.Kafka.Enabled || len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("kafka = %+v, want enabled with 2 brokers", cfg.Kafka)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging level = %q, want debug", cfg.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults ok", func(*Config) {}, false},
		{"weights not summing to one", func(c *Config) { c.Scoring.TextWeight = 0.5 }, true},
		{"negative weight", func(c *Config) {
			c.Scoring.TextWeight = -0.1
			c.Scoring.VisualWeight = 0.7
		}, true},
		{"pass below flag", func(c *Config) {
			c.Scoring.PassThreshold = 30
		}, true},
		{"zero workers", func(c *Config) { c.Pipeline.Workers = 0 }, true},
		{"zero rate limit", func(c *Config) { c.Adapters.Review.CallsPerMinute = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %t", err, tt.wantErr)
			}
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{
		Host: "db", Port: 5433, Database: "trust", User: "svc",
		Password: "pw", SSLMode: "disable",
	}
	want := "host=db port=5433 user=svc password=pw dbname=trust sslmode=disable"
	if got := p.DSN(); got != want {
		t.Errorf("DSN = %q, want %q", got, want)
	}
}
