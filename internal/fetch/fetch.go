// Package fetch downloads remote listing images with bounded timeouts and
// caches the bytes by URL, so listings sharing images never refetch. A
// singleflight group collapses concurrent fetches of the same URL across
// worker goroutines.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Mharish0341/Trustguard/internal/cache"
	apperrors "github.com/Mharish0341/Trustguard/pkg/errors"
	"github.com/Mharish0341/Trustguard/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

// maxImageBytes caps a single download; anything larger is not a product
// image worth scoring.
const maxImageBytes = 8 << 20

// Fetcher downloads and caches image bytes.
type Fetcher struct {
	client  *http.Client
	cache   *cache.LFU[[]byte]
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Fetcher with the given per-request timeout and cache size.
// The metrics handle may be nil in tests.
func New(timeout time.Duration, cacheSize int, m *metrics.Metrics) *Fetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Fetcher{
		client:  &http.Client{Timeout: timeout},
		cache:   cache.NewLFU[[]byte](cacheSize),
		metrics: m,
		logger:  slog.Default().With("component", "fetch"),
	}
}

// Get returns the body bytes for the URL, from cache when possible.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	if data, ok := f.cache.Get(url); ok {
		f.countCache(true)
		return data, nil
	}
	f.countCache(false)

	v, err, _ := f.group.Do(url, func() (interface{}, error) {
		if data, ok := f.cache.Get(url); ok {
			return data, nil
		}
		data, err := f.download(ctx, url)
		if err != nil {
			return nil, err
		}
		f.cache.Put(url, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrDownload, url, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		f.countFetch("error")
		return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrDownload, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		f.countFetch("error")
		return nil, fmt.Errorf("%w: %s: status %d", apperrors.ErrDownload, url, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		f.countFetch("error")
		return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrDownload, url, err)
	}
	f.countFetch("ok")
	f.logger.Debug("image fetched", "url", url, "bytes", len(data))
	return data, nil
}

func (f *Fetcher) countFetch(outcome string) {
	if f.metrics != nil {
		f.metrics.ImageFetchesTotal.WithLabelValues(outcome).Inc()
	}
}

func (f *Fetcher) countCache(hit bool) {
	if f.metrics == nil {
		return
	}
	if hit {
		f.metrics.CacheHitsTotal.WithLabelValues("image").Inc()
	} else {
		f.metrics.CacheMissesTotal.WithLabelValues("image").Inc()
	}
}
