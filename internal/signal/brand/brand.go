// Package brand detects mismatches between a brand named in the listing
// title and the brands visible in listing imagery, via an external OCR
// service. Any download or OCR failure means no mismatch is asserted.
package brand

import (
	"context"
	"encoding/base64"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/Mharish0341/Trustguard/internal/fetch"
	"github.com/Mharish0341/Trustguard/pkg/config"
	"github.com/Mharish0341/Trustguard/pkg/metrics"
)

type ocrRequest struct {
	Image string `json:"image_b64"`
}

type ocrResponse struct {
	Lines []string `json:"lines"`
}

// Backend extracts text lines from one image.
type Backend interface {
	Call(ctx context.Context, reqBody, respBody any) error
}

// Detector is the brand-mismatch signal adapter.
type Detector struct {
	cfg     config.BrandConfig
	backend Backend
	fetcher *fetch.Fetcher
	brands  []string
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Detector with the configured known-brand vocabulary.
func New(cfg config.BrandConfig, backend Backend, fetcher *fetch.Fetcher, m *metrics.Metrics) *Detector {
	brands := make([]string, 0, len(cfg.KnownBrands))
	for _, b := range cfg.KnownBrands {
		if b = strings.ToLower(strings.TrimSpace(b)); b != "" {
			brands = append(brands, b)
		}
	}
	return &Detector{
		cfg:     cfg,
		backend: backend,
		fetcher: fetcher,
		brands:  brands,
		metrics: m,
		logger:  slog.Default().With("component", "brand-detector"),
	}
}

// Mismatch reports whether a brand implied by the title is absent from the
// image's OCR text. Failures of any kind return false: no evidence, no
// accusation.
func (d *Detector) Mismatch(ctx context.Context, imageURL, title string) bool {
	expected := d.expectedBrands(title)
	if len(expected) == 0 {
		return false
	}

	start := time.Now()
	defer func() {
		if d.metrics != nil {
			d.metrics.AdapterLatency.WithLabelValues("brand").Observe(time.Since(start).Seconds())
		}
	}()

	raw, err := d.fetcher.Get(ctx, imageURL)
	if err != nil {
		d.logger.Debug("image fetch failed, skipping brand check", "url", imageURL, "error", err)
		d.countCall("error")
		return false
	}

	var resp ocrResponse
	if err := d.backend.Call(ctx, ocrRequest{
		Image: base64.StdEncoding.EncodeToString(raw),
	}, &resp); err != nil {
		d.logger.Debug("ocr call failed, skipping brand check", "url", imageURL, "error", err)
		d.countCall("error")
		return false
	}
	d.countCall("ok")

	ocrText := normalize(strings.Join(resp.Lines, " "))
	for _, b := range expected {
		if !strings.Contains(ocrText, normalize(b)) {
			return true
		}
	}
	return false
}

// SampleSize returns how many listing images the orchestrator should check.
func (d *Detector) SampleSize() int {
	if d.cfg.SampleSize <= 0 {
		return 2
	}
	return d.cfg.SampleSize
}

// expectedBrands returns configured brands mentioned in the title.
func (d *Detector) expectedBrands(title string) []string {
	lower := strings.ToLower(title)
	var out []string
	for _, b := range d.brands {
		if strings.Contains(lower, b) {
			out = append(out, b)
		}
	}
	return out
}

// normalize lowercases and strips everything except letters, so OCR spacing
// and stray punctuation cannot hide a printed logo.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (d *Detector) countCall(outcome string) {
	if d.metrics != nil {
		d.metrics.AdapterCallsTotal.WithLabelValues("brand", outcome).Inc()
	}
}
