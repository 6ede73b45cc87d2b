// Package orchestrator drives each listing through the signal adapters and
// assembles the final report. Listings are independent of one another, so a
// bounded worker pool fans them out; per-listing failures degrade to the
// adapters' documented fallbacks and never abort the batch.
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/Mharish0341/Trustguard/internal/listing"
	"github.com/Mharish0341/Trustguard/internal/scoring"
	"github.com/Mharish0341/Trustguard/internal/signal/review"
	"github.com/Mharish0341/Trustguard/internal/signal/rules"
	"github.com/Mharish0341/Trustguard/internal/signal/visual"
	"github.com/Mharish0341/Trustguard/pkg/config"
	"github.com/Mharish0341/Trustguard/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// ReviewScorer, VisualScorer and BrandDetector are the adapter surfaces the
// orchestrator depends on; the concrete adapters satisfy them and tests
// substitute fakes.
type ReviewScorer interface {
	Score(ctx context.Context, reviews []string) review.Result
}

type VisualScorer interface {
	Score(ctx context.Context, title string, imageURLs []string) float64
}

type BrandDetector interface {
	Mismatch(ctx context.Context, imageURL, title string) bool
	SampleSize() int
}

// Memory is the vector-memory enrichment surface.
type Memory interface {
	Add(ctx context.Context, texts []string) error
}

// Orchestrator runs the scoring pipeline.
type Orchestrator struct {
	cfg        config.PipelineConfig
	reviews    ReviewScorer
	visuals    VisualScorer
	brands     BrandDetector
	memory     Memory
	aggregator *scoring.Aggregator
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// New wires the orchestrator. memory and m may be nil in tests.
func New(cfg config.PipelineConfig, reviews ReviewScorer, visuals VisualScorer,
	brands BrandDetector, memory Memory, aggregator *scoring.Aggregator,
	m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		reviews:    reviews,
		visuals:    visuals,
		brands:     brands,
		memory:     memory,
		aggregator: aggregator,
		metrics:    m,
		logger:     slog.Default().With("component", "orchestrator"),
	}
}

// Analyze scores one listing and assembles its report.
func (o *Orchestrator) Analyze(ctx context.Context, rec listing.Record) listing.Report {
	start := time.Now()

	textRes := o.reviews.Score(ctx, rec.Reviews)

	// Side-effect enrichment only; the trust score never depends on it.
	if o.memory != nil && len(rec.Reviews) > 0 {
		if err := o.memory.Add(ctx, rec.Reviews); err != nil {
			o.logger.Warn("vector memory enrichment failed", "listing", rec.ID, "error", err)
		}
	}

	visualRisk := o.visuals.Score(ctx, rec.Title, rec.Images)

	brandFlag := false
	limit := o.brands.SampleSize()
	for i, url := range rec.Images {
		if i >= limit {
			break
		}
		if o.brands.Mismatch(ctx, url, rec.Title) {
			brandFlag = true
			break
		}
	}

	rulesRisk := rules.AnomalyScore(rec.Ratings, rec.Returns)

	score, verdict := o.aggregator.Aggregate(textRes.Risk, visualRisk, rulesRisk, brandFlag)

	if o.metrics != nil {
		o.metrics.ListingsProcessedTotal.WithLabelValues(string(verdict)).Inc()
		o.metrics.ListingDuration.Observe(time.Since(start).Seconds())
	}

	return listing.Report{
		ID:         rec.ID,
		URL:        rec.URL,
		Title:      rec.Title,
		TrustScore: score,
		Verdict:    verdict,
		Breakdown: listing.Breakdown{
			TextRisk:   textRes.Risk,
			VisualRisk: visualRisk,
			RulesRisk:  rulesRisk,
			BrandFlag:  brandFlag,
		},
		Explanation: listing.Explanation{
			Text:   textRes.Reason,
			Visual: visual.Explain(visualRisk, brandFlag),
			Rules:  rules.Explain(rec.Ratings, rec.Returns),
		},
	}
}

// Run scores every listing through a bounded worker pool, preserving input
// order in the returned slice. It stops early only when ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context, records []listing.Record) ([]listing.Report, error) {
	reports := make([]listing.Report, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Workers)

	progress := o.cfg.ProgressInterval
	if progress <= 0 {
		progress = 25
	}
	done := make(chan int, len(records))
	go func() {
		count := 0
		for range done {
			count++
			if count%progress == 0 {
				o.logger.Info("batch progress", "scored", count, "total", len(records))
			}
		}
	}()

	for i, rec := range records {
		i, rec := i, rec
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			reports[i] = o.Analyze(gctx, rec)
			done <- i
			return nil
		})
	}
	err := g.Wait()
	close(done)
	if err != nil {
		return nil, err
	}
	return reports, nil
}
