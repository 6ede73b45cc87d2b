// Package review scores review text for fraud signals via an external LLM.
// The model call is rate limited process-wide, memoised by prompt, and every
// failure mode degrades to a documented fallback score instead of an error.
package review

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/Mharish0341/Trustguard/internal/cache"
	"github.com/Mharish0341/Trustguard/internal/mlclient"
	"github.com/Mharish0341/Trustguard/pkg/config"
	"github.com/Mharish0341/Trustguard/pkg/metrics"
	"github.com/Mharish0341/Trustguard/pkg/ratelimit"
	pkgredis "github.com/Mharish0341/Trustguard/pkg/redis"
)

// Documented fallback values (see the adapter contract).
const (
	noReviewsRisk     = 0.8
	fewReviewsRisk    = 0.6
	neutralRisk       = 0.5
	fewReviewsCutoff  = 3
	maxReasonLength   = 200
	promptCachePrefix = "review:"
)

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*?\}`)

// Result is a fraud risk with its rationale.
type Result struct {
	Risk   float64
	Reason string
}

// generateRequest/generateResponse are the LLM backend wire types.
type generateRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

type generateResponse struct {
	Text string `json:"text"`
}

// verdict is the JSON object the prompt instructs the model to emit.
type verdict struct {
	Score float64 `json:"score"`
	Why   string  `json:"why"`
}

// Backend generates text for a prompt. Satisfied by *mlclient.Client in
// production and by fakes in tests.
type Backend interface {
	Call(ctx context.Context, reqBody, respBody any) error
}

// Scorer is the review-fraud signal adapter.
type Scorer struct {
	cfg      config.ReviewConfig
	backend  Backend
	limiter  *ratelimit.Interval
	cache    *cache.LFU[Result]
	redis    *pkgredis.Client
	redisTTL time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration)
}

// New creates a Scorer. redisClient may be nil; the in-process cache then
// stands alone. The limiter is shared process-wide by the caller when other
// adapters hit the same backend.
func New(cfg config.ReviewConfig, backend Backend, limiter *ratelimit.Interval,
	redisClient *pkgredis.Client, redisTTL time.Duration, m *metrics.Metrics) *Scorer {
	return &Scorer{
		cfg:      cfg,
		backend:  backend,
		limiter:  limiter,
		cache:    cache.NewLFU[Result](cfg.CacheSize),
		redis:    redisClient,
		redisTTL: redisTTL,
		metrics:  m,
		logger:   slog.Default().With("component", "review-scorer"),
		sleep:    sleepCtx,
	}
}

// Score returns the fraud risk for a listing's reviews. It never returns an
// error: every failure mode maps to a documented fallback.
func (s *Scorer) Score(ctx context.Context, reviews []string) Result {
	texts := sample(reviews, s.cfg.SampleSize)
	switch {
	case len(texts) == 0:
		s.countFallback("no_reviews")
		return Result{Risk: noReviewsRisk, Reason: "no reviews"}
	case len(texts) < fewReviewsCutoff:
		s.countFallback("few_reviews")
		return Result{Risk: fewReviewsRisk, Reason: "few reviews"}
	}

	prompt := buildPrompt(texts)
	key := promptKey(prompt)
	if res, ok := s.cachedResult(ctx, key); ok {
		return res
	}

	res := s.query(ctx, prompt)
	s.storeResult(ctx, key, res)
	return res
}

// query drives one rate-limited model call, retrying once after a
// backend-suggested sleep on resource exhaustion.
func (s *Scorer) query(ctx context.Context, prompt string) Result {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.AdapterLatency.WithLabelValues("review").Observe(time.Since(start).Seconds())
		}
	}()

	for attempt := 0; attempt < 2; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			s.countCall("error")
			return Result{Risk: neutralRisk, Reason: "rate-limit fallback"}
		}
		var resp generateResponse
		err := s.backend.Call(ctx, generateRequest{
			Model:       s.cfg.Model,
			Prompt:      prompt,
			Temperature: 0.0,
			MaxTokens:   64,
		}, &resp)
		if err == nil {
			s.countCall("ok")
			return parseVerdict(resp.Text)
		}

		var rle *mlclient.RateLimitError
		if errors.As(err, &rle) && attempt == 0 {
			wait := rle.RetryAfter
			if wait <= 0 {
				wait = s.cfg.RetryAfter
			}
			s.logger.Warn("model rate limited, backing off", "wait", wait)
			s.sleep(ctx, wait)
			continue
		}
		s.logger.Warn("model call failed", "error", err)
		s.countCall("error")
		break
	}
	s.countFallback("rate_limit")
	return Result{Risk: neutralRisk, Reason: "rate-limit fallback"}
}

// parseVerdict extracts the first JSON object from the model reply. A reply
// with no parseable object degrades to the neutral score.
func parseVerdict(raw string) Result {
	block := jsonObjectPattern.FindString(strings.TrimSpace(raw))
	if block == "" {
		return Result{Risk: neutralRisk, Reason: "no reason"}
	}
	var v verdict
	if err := json.Unmarshal([]byte(block), &v); err != nil {
		return Result{Risk: neutralRisk, Reason: "no reason"}
	}
	reason := v.Why
	if reason == "" {
		reason = "no reason"
	}
	if len(reason) > maxReasonLength {
		reason = reason[:maxReasonLength]
	}
	return Result{Risk: clamp01(v.Score), Reason: reason}
}

// sample keeps the first cap non-empty review bodies.
func sample(reviews []string, limit int) []string {
	if limit <= 0 {
		limit = 20
	}
	out := make([]string, 0, limit)
	for _, r := range reviews {
		body := strings.TrimSpace(r)
		if body == "" {
			continue
		}
		out = append(out, body)
		if len(out) >= limit {
			break
		}
	}
	return out
}

func buildPrompt(texts []string) string {
	var b strings.Builder
	b.WriteString(`You are a fraud-detection analyst for an e-commerce marketplace.

Return ONLY one JSON object with two keys:
  "score": float from 0.0 (certainly genuine) to 1.0 (certainly fake)
  "why":   at most 20 words explaining the MAIN signal used.

Analyse linguistic patterns, repetitiveness and sentiment consistency.
Be strict about identical or templated language across reviewers.

Reviews:
`)
	b.WriteString(strings.Join(texts, "\n"))
	return b.String()
}

func (s *Scorer) cachedResult(ctx context.Context, key string) (Result, bool) {
	if res, ok := s.cache.Get(key); ok {
		s.countCacheHit(true)
		return res, true
	}
	if s.redis != nil {
		if data, err := s.redis.Get(ctx, key); err == nil {
			var res Result
			if err := json.Unmarshal([]byte(data), &res); err == nil {
				s.countCacheHit(true)
				s.cache.Put(key, res)
				return res, true
			}
		}
	}
	s.countCacheHit(false)
	return Result{}, false
}

func (s *Scorer) storeResult(ctx context.Context, key string, res Result) {
	s.cache.Put(key, res)
	if s.redis != nil {
		if data, err := json.Marshal(res); err == nil {
			if err := s.redis.Set(ctx, key, data, s.redisTTL); err != nil {
				s.logger.Debug("redis set failed", "error", err)
			}
		}
	}
}

func promptKey(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return fmt.Sprintf("%s%x", promptCachePrefix, sum[:16])
}

func (s *Scorer) countCall(outcome string) {
	if s.metrics != nil {
		s.metrics.AdapterCallsTotal.WithLabelValues("review", outcome).Inc()
	}
}

func (s *Scorer) countFallback(reason string) {
	if s.metrics != nil {
		s.metrics.AdapterFallbacksTotal.WithLabelValues("review", reason).Inc()
	}
}

func (s *Scorer) countCacheHit(hit bool) {
	if s.metrics == nil {
		return
	}
	if hit {
		s.metrics.CacheHitsTotal.WithLabelValues("review").Inc()
	} else {
		s.metrics.CacheMissesTotal.WithLabelValues("review").Inc()
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
