// Package config loads and validates application configuration from YAML
// files with environment-variable overrides. It provides typed structs for
// every subsystem (Pipeline, Adapters, Memory, Scoring, Redis, Postgres,
// Kafka, Logging, Metrics).
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Pipeline PipelineConfig `yaml:"pipeline"`
	Adapters AdaptersConfig `yaml:"adapters"`
	Memory   MemoryConfig   `yaml:"memory"`
	Scoring  ScoringConfig  `yaml:"scoring"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// PipelineConfig controls the batch orchestration loop.
type PipelineConfig struct {
	Workers          int           `yaml:"workers"`
	ProgressInterval int           `yaml:"progressInterval"`
	FetchTimeout     time.Duration `yaml:"fetchTimeout"`
	FetchCacheSize   int           `yaml:"fetchCacheSize"`
}

// AdaptersConfig groups the per-signal adapter settings.
type AdaptersConfig struct {
	Review ReviewConfig `yaml:"review"`
	Visual VisualConfig `yaml:"visual"`
	Brand  BrandConfig  `yaml:"brand"`
}

// ReviewConfig configures the review-fraud scorer and its LLM backend.
type ReviewConfig struct {
	Endpoint       string        `yaml:"endpoint"`
	APIKey         string        `yaml:"apiKey"`
	Model          string        `yaml:"model"`
	SampleSize     int           `yaml:"sampleSize"`
	CallsPerMinute int           `yaml:"callsPerMinute"`
	RetryAfter     time.Duration `yaml:"retryAfter"`
	Timeout        time.Duration `yaml:"timeout"`
	CacheSize      int           `yaml:"cacheSize"`
}

// VisualConfig configures the title/image similarity scorer.
type VisualConfig struct {
	Endpoint   string        `yaml:"endpoint"`
	APIKey     string        `yaml:"apiKey"`
	Model      string        `yaml:"model"`
	SampleSize int           `yaml:"sampleSize"`
	Timeout    time.Duration `yaml:"timeout"`
	ScoreTTL   time.Duration `yaml:"scoreTTL"`
	CacheSize  int           `yaml:"cacheSize"`
}

// BrandConfig configures the OCR-backed brand-mismatch detector.
type BrandConfig struct {
	Endpoint    string        `yaml:"endpoint"`
	APIKey      string        `yaml:"apiKey"`
	Timeout     time.Duration `yaml:"timeout"`
	SampleSize  int           `yaml:"sampleSize"`
	KnownBrands []string      `yaml:"knownBrands"`
}

// MemoryConfig configures the review-embedding vector memory.
type MemoryConfig struct {
	Endpoint  string        `yaml:"endpoint"`
	APIKey    string        `yaml:"apiKey"`
	Model     string        `yaml:"model"`
	Timeout   time.Duration `yaml:"timeout"`
	CacheSize int           `yaml:"cacheSize"`
	MinDim    int           `yaml:"minDim"`
}

// ScoringConfig holds the aggregation weights and verdict thresholds.
type ScoringConfig struct {
	TextWeight    float64 `yaml:"textWeight"`
	VisualWeight  float64 `yaml:"visualWeight"`
	RulesWeight   float64 `yaml:"rulesWeight"`
	BrandWeight   float64 `yaml:"brandWeight"`
	PassThreshold int     `yaml:"passThreshold"`
	FlagThreshold int     `yaml:"flagThreshold"`
}

// RedisConfig holds connection parameters for the optional shared score cache.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// PostgresConfig holds connection parameters for the optional report store.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds broker settings for the optional report publisher.
type KafkaConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Brokers       []string      `yaml:"brokers"`
	ReportTopic   string        `yaml:"reportTopic"`
	BatchSize     int           `yaml:"batchSize"`
	FlushInterval time.Duration `yaml:"flushInterval"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. A .env file in the working directory is loaded first so API keys
// can live outside the config file. Returns a Config populated with sensible
// defaults for any missing values.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Validate checks invariants that would otherwise surface as runtime bugs.
// It runs once at startup; the aggregator never re-validates per call.
func (c *Config) Validate() error {
	s := c.Scoring
	sum := s.TextWeight + s.VisualWeight + s.RulesWeight + s.BrandWeight
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("scoring weights must sum to 1.0, got %.6f", sum)
	}
	for name, w := range map[string]float64{
		"textWeight":   s.TextWeight,
		"visualWeight": s.VisualWeight,
		"rulesWeight":  s.RulesWeight,
		"brandWeight":  s.BrandWeight,
	} {
		if w < 0 {
			return fmt.Errorf("scoring weight %s must be non-negative, got %.4f", name, w)
		}
	}
	if s.PassThreshold <= s.FlagThreshold {
		return fmt.Errorf("passThreshold (%d) must be greater than flagThreshold (%d)",
			s.PassThreshold, s.FlagThreshold)
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline workers must be positive, got %d", c.Pipeline.Workers)
	}
	if c.Adapters.Review.CallsPerMinute <= 0 {
		return fmt.Errorf("review callsPerMinute must be positive, got %d",
			c.Adapters.Review.CallsPerMinute)
	}
	return nil
}

// defaultConfig returns a Config with production-ready defaults for local
// development.
func defaultConfig() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			Workers:          4,
			ProgressInterval: 25,
			FetchTimeout:     10 * time.Second,
			FetchCacheSize:   1024,
		},
		Adapters: AdaptersConfig{
			Review: ReviewConfig{
				Endpoint:       "http://localhost:8600/v1/generate",
				Model:          "gemini-1.5-flash",
				SampleSize:     20,
				CallsPerMinute: 15,
				RetryAfter:     60 * time.Second,
				Timeout:        30 * time.Second,
				CacheSize:      512,
			},
			Visual: VisualConfig{
				Endpoint:   "http://localhost:8601/v1/similarity",
				Model:      "ViT-B/32",
				SampleSize: 3,
				Timeout:    10 * time.Second,
				ScoreTTL:   24 * time.Hour,
				CacheSize:  1024,
			},
			Brand: BrandConfig{
				Endpoint:    "http://localhost:8602/v1/ocr",
				Timeout:     10 * time.Second,
				SampleSize:  2,
				KnownBrands: []string{"nike", "adidas", "puma", "reebok", "converse"},
			},
		},
		Memory: MemoryConfig{
			Endpoint:  "http://localhost:8603/v1/embed",
			Model:     "all-MiniLM-L6-v2",
			Timeout:   15 * time.Second,
			CacheSize: 4096,
			MinDim:    64,
		},
		Scoring: ScoringConfig{
			TextWeight:    0.30,
			VisualWeight:  0.30,
			RulesWeight:   0.15,
			BrandWeight:   0.25,
			PassThreshold: 80,
			FlagThreshold: 40,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 24 * time.Hour,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "trustguard",
			User:            "trustguard",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ReportTopic:   "trust-reports",
			BatchSize:     100,
			FlushInterval: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads TG_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TG_API_KEY"); v != "" {
		cfg.Adapters.Review.APIKey = v
		cfg.Adapters.Visual.APIKey = v
		cfg.Adapters.Brand.APIKey = v
		cfg.Memory.APIKey = v
	}
	if v := os.Getenv("TG_REVIEW_ENDPOINT"); v != "" {
		cfg.Adapters.Review.Endpoint = v
	}
	if v := os.Getenv("TG_VISUAL_ENDPOINT"); v != "" {
		cfg.Adapters.Visual.Endpoint = v
	}
	if v := os.Getenv("TG_BRAND_ENDPOINT"); v != "" {
		cfg.Adapters.Brand.Endpoint = v
	}
	if v := os.Getenv("TG_EMBED_ENDPOINT"); v != "" {
		cfg.Memory.Endpoint = v
	}
	if v := os.Getenv("TG_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.Workers = n
		}
	}
	if v := os.Getenv("TG_REDIS_ADDR"); v != "" {
		cfg.Redis.Enabled = true
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("TG_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("TG_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Enabled = true
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("TG_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("TG_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("TG_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("TG_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("TG_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Enabled = true
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("TG_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TG_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("TG_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Enabled = true
			cfg.Metrics.Port = port
		}
	}
}
