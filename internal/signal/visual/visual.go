// Package visual scores how well a listing's images match its title using an
// external vision-language similarity model. Risk is 1 minus the best
// observed similarity across sampled images; when no image can be fetched or
// scored the adapter reports maximum risk.
package visual

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Mharish0341/Trustguard/internal/cache"
	"github.com/Mharish0341/Trustguard/internal/fetch"
	"github.com/Mharish0341/Trustguard/pkg/config"
	"github.com/Mharish0341/Trustguard/pkg/metrics"
	pkgredis "github.com/Mharish0341/Trustguard/pkg/redis"
)

const (
	maxRisk          = 1.0
	scoreCachePrefix = "visual:"
)

type similarityRequest struct {
	Model string `json:"model"`
	Text  string `json:"text"`
	Image string `json:"image_b64"`
}

type similarityResponse struct {
	Similarity float64 `json:"similarity"`
}

// Backend scores one (text, image) pair.
type Backend interface {
	Call(ctx context.Context, reqBody, respBody any) error
}

// Scorer is the visual-similarity signal adapter.
type Scorer struct {
	cfg     config.VisualConfig
	backend Backend
	fetcher *fetch.Fetcher
	cache   *cache.LFU[float64]
	redis   *pkgredis.Client
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Scorer. redisClient may be nil.
func New(cfg config.VisualConfig, backend Backend, fetcher *fetch.Fetcher,
	redisClient *pkgredis.Client, m *metrics.Metrics) *Scorer {
	return &Scorer{
		cfg:     cfg,
		backend: backend,
		fetcher: fetcher,
		cache:   cache.NewLFU[float64](cfg.CacheSize),
		redis:   redisClient,
		metrics: m,
		logger:  slog.Default().With("component", "visual-scorer"),
	}
}

// Score returns the visual risk for a listing: 1 − the best title/image
// similarity over the first SampleSize images. Fetch and model failures are
// skipped per image; if nothing succeeds the risk is 1.0.
func (s *Scorer) Score(ctx context.Context, title string, imageURLs []string) float64 {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.AdapterLatency.WithLabelValues("visual").Observe(time.Since(start).Seconds())
		}
	}()

	n := s.cfg.SampleSize
	if n <= 0 {
		n = 3
	}
	if len(imageURLs) < n {
		n = len(imageURLs)
	}

	best := -1.0
	for _, url := range imageURLs[:n] {
		sim, ok := s.similarity(ctx, title, url)
		if ok && sim > best {
			best = sim
		}
	}
	if best < 0 {
		s.countFallback("no_images")
		return maxRisk
	}
	s.countCall("ok")
	return clamp01(1.0 - best)
}

// similarity scores one image against the title, consulting the caches first.
func (s *Scorer) similarity(ctx context.Context, title, url string) (float64, bool) {
	key := scoreKey(title, url)
	if sim, ok := s.cachedScore(ctx, key); ok {
		return sim, true
	}

	raw, err := s.fetcher.Get(ctx, url)
	if err != nil {
		s.logger.Debug("image fetch failed", "url", url, "error", err)
		s.countCall("error")
		return 0, false
	}

	var resp similarityResponse
	err = s.backend.Call(ctx, similarityRequest{
		Model: s.cfg.Model,
		Text:  title,
		Image: base64.StdEncoding.EncodeToString(raw),
	}, &resp)
	if err != nil {
		s.logger.Debug("similarity call failed", "url", url, "error", err)
		s.countCall("error")
		return 0, false
	}

	sim := clamp01(resp.Similarity)
	s.storeScore(ctx, key, sim)
	return sim, true
}

func (s *Scorer) cachedScore(ctx context.Context, key string) (float64, bool) {
	if sim, ok := s.cache.Get(key); ok {
		s.countCacheHit(true)
		return sim, true
	}
	if s.redis != nil {
		if data, err := s.redis.Get(ctx, key); err == nil {
			if sim, err := strconv.ParseFloat(data, 64); err == nil {
				s.countCacheHit(true)
				s.cache.Put(key, sim)
				return sim, true
			}
		}
	}
	s.countCacheHit(false)
	return 0, false
}

func (s *Scorer) storeScore(ctx context.Context, key string, sim float64) {
	s.cache.Put(key, sim)
	if s.redis != nil {
		val := strconv.FormatFloat(sim, 'f', -1, 64)
		if err := s.redis.Set(ctx, key, val, s.cfg.ScoreTTL); err != nil {
			s.logger.Debug("redis set failed", "error", err)
		}
	}
}

// Explain renders the rationale line recorded in the report.
func Explain(risk float64, brandFlag bool) string {
	return fmt.Sprintf("visual_risk=%.2f brand_flag=%t", risk, brandFlag)
}

func scoreKey(title, url string) string {
	sum := sha256.Sum256([]byte(title + "|" + url))
	return fmt.Sprintf("%s%x", scoreCachePrefix, sum[:16])
}

func (s *Scorer) countCall(outcome string) {
	if s.metrics != nil {
		s.metrics.AdapterCallsTotal.WithLabelValues("visual", outcome).Inc()
	}
}

func (s *Scorer) countFallback(reason string) {
	if s.metrics != nil {
		s.metrics.AdapterFallbacksTotal.WithLabelValues("visual", reason).Inc()
	}
}

func (s *Scorer) countCacheHit(hit bool) {
	if s.metrics == nil {
		return
	}
	if hit {
		s.metrics.CacheHitsTotal.WithLabelValues("visual").Inc()
	} else {
		s.metrics.CacheMissesTotal.WithLabelValues("visual").Inc()
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
