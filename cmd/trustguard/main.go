package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mharish0341/Trustguard/internal/fetch"
	"github.com/Mharish0341/Trustguard/internal/ingest"
	"github.com/Mharish0341/Trustguard/internal/mlclient"
	"github.com/Mharish0341/Trustguard/internal/orchestrator"
	"github.com/Mharish0341/Trustguard/internal/report"
	"github.com/Mharish0341/Trustguard/internal/scoring"
	"github.com/Mharish0341/Trustguard/internal/signal/brand"
	"github.com/Mharish0341/Trustguard/internal/signal/review"
	"github.com/Mharish0341/Trustguard/internal/signal/visual"
	"github.com/Mharish0341/Trustguard/internal/vecmem"
	"github.com/Mharish0341/Trustguard/pkg/config"
	apperrors "github.com/Mharish0341/Trustguard/pkg/errors"
	"github.com/Mharish0341/Trustguard/pkg/health"
	"github.com/Mharish0341/Trustguard/pkg/kafka"
	"github.com/Mharish0341/Trustguard/pkg/logger"
	"github.com/Mharish0341/Trustguard/pkg/metrics"
	"github.com/Mharish0341/Trustguard/pkg/postgres"
	"github.com/Mharish0341/Trustguard/pkg/ratelimit"
	pkgredis "github.com/Mharish0341/Trustguard/pkg/redis"
)

func main() {
	os.Exit(run())
}

func run() int {
	csvPath := flag.String("csv", "", "path to the listings CSV file (required)")
	outPath := flag.String("out", "reports.json", "path for the JSON report output")
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	if *csvPath == "" {
		fmt.Fprintln(os.Stderr, "usage: trustguard --csv <listings.csv> [--out reports.json] [--config config.yaml]")
		return apperrors.ExitBadInput
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return apperrors.ExitRunFailed
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		return apperrors.ExitRunFailed
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting trust scoring run",
		"csv", *csvPath,
		"out", *outPath,
		"workers", cfg.Pipeline.Workers,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, shared score cache disabled", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			slog.Info("shared score cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var reportStore *report.Store
	if cfg.Postgres.Enabled {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, report store disabled", "error", err)
		} else {
			defer db.Close()
			reportStore = report.NewStore(db)
			slog.Info("report store enabled", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		}
	}

	var collector *report.Collector
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.ReportTopic)
		defer producer.Close()
		collector = report.NewCollector(producer, cfg.Kafka.BatchSize, cfg.Kafka.FlushInterval, m)
		slog.Info("report publisher enabled", "topic", cfg.Kafka.ReportTopic)
	}

	if cfg.Metrics.Enabled {
		checker := health.NewChecker()
		checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
			if redisClient == nil {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
			}
			if err := redisClient.Ping(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
		shutdown := metrics.StartServer(cfg.Metrics.Port, checker)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}()
	}

	fetcher := fetch.New(cfg.Pipeline.FetchTimeout, cfg.Pipeline.FetchCacheSize, m)
	limiter := ratelimit.PerMinute(cfg.Adapters.Review.CallsPerMinute)

	reviewClient := mlclient.New("review-llm", cfg.Adapters.Review.Endpoint,
		cfg.Adapters.Review.APIKey, cfg.Adapters.Review.Timeout)
	visualClient := mlclient.New("visual-clip", cfg.Adapters.Visual.Endpoint,
		cfg.Adapters.Visual.APIKey, cfg.Adapters.Visual.Timeout)
	brandClient := mlclient.New("brand-ocr", cfg.Adapters.Brand.Endpoint,
		cfg.Adapters.Brand.APIKey, cfg.Adapters.Brand.Timeout)
	embedClient := mlclient.New("embedder", cfg.Memory.Endpoint,
		cfg.Memory.APIKey, cfg.Memory.Timeout)

	reviews := review.New(cfg.Adapters.Review, reviewClient, limiter, redisClient, cfg.Redis.CacheTTL, m)
	visuals := visual.New(cfg.Adapters.Visual, visualClient, fetcher, redisClient, m)
	brands := brand.New(cfg.Adapters.Brand, brandClient, fetcher, m)
	memory := vecmem.New(cfg.Memory, embedClient, m)
	aggregator := scoring.New(cfg.Scoring)

	orch := orchestrator.New(cfg.Pipeline, reviews, visuals, brands, memory, aggregator, m)

	f, err := os.Open(*csvPath)
	if err != nil {
		slog.Error("cannot open listings file", "path", *csvPath, "error", err)
		return apperrors.ExitBadInput
	}
	records, err := ingest.Parse(f)
	f.Close()
	if err != nil {
		slog.Error("ingestion failed", "path", *csvPath, "error", err)
		return apperrors.ExitCode(err)
	}
	slog.Info("listings ingested", "count", len(records))

	if collector != nil {
		collector.Start(ctx)
	}

	start := time.Now()
	reports, err := orch.Run(ctx, records)
	if err != nil {
		slog.Error("scoring run failed", "error", err)
		return apperrors.ExitCode(err)
	}

	if err := report.WriteFile(*outPath, reports); err != nil {
		slog.Error("writing report file failed", "path", *outPath, "error", err)
		return apperrors.ExitRunFailed
	}
	m.ReportsWrittenTotal.Add(float64(len(reports)))
	m.ReportBatchesTotal.WithLabelValues("file", "ok").Inc()

	if reportStore != nil {
		if err := reportStore.SaveBatch(ctx, reports); err != nil {
			m.ReportBatchesTotal.WithLabelValues("postgres", "error").Inc()
			slog.Warn("persisting report batch failed", "error", err)
		} else {
			m.ReportBatchesTotal.WithLabelValues("postgres", "ok").Inc()
		}
	}

	if collector != nil {
		for _, rep := range reports {
			collector.Publish(rep)
		}
		stop()
		collector.Close()
	}

	slog.Info("trust scoring run complete",
		"listings", len(reports),
		"memory_size", memory.Len(),
		"duration", time.Since(start).Round(time.Millisecond),
		"out", *outPath,
	)
	return apperrors.ExitOK
}
