// Package mlclient is the JSON-over-HTTP client shared by the model-backed
// signal adapters. The models themselves (LLM fraud reasoning, vision
// similarity, OCR, sentence embedding) are external services; this package
// only handles invocation: timeouts, one retry with backoff, a circuit
// breaker per backend, and rate-limit classification.
package mlclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/Mharish0341/Trustguard/pkg/errors"
	"github.com/Mharish0341/Trustguard/pkg/resilience"
)

// RateLimitError signals a RESOURCE_EXHAUSTED reply from the backend,
// carrying the backend-suggested wait when one was provided.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%v (retry after %v)", apperrors.ErrRateLimited, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error {
	return apperrors.ErrRateLimited
}

// Client invokes one inference endpoint.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	breaker  *resilience.Breaker
	timeout  time.Duration
	logger   *slog.Logger
}

// New creates a Client for the given endpoint. name labels the breaker and
// log lines.
func New(name, endpoint, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout + 5*time.Second},
		breaker:  resilience.NewBreaker(name, resilience.BreakerConfig{}),
		timeout:  timeout,
		logger:   slog.Default().With("component", "mlclient", "backend", name),
	}
}

// Call POSTs reqBody as JSON and decodes the reply into respBody. Transient
// failures are retried once; rate limiting is surfaced as a RateLimitError
// without retry so the caller can apply its own backoff policy.
func (c *Client) Call(ctx context.Context, reqBody, respBody any) error {
	return resilience.Retry(ctx, c.endpoint, resilience.RetryConfig{MaxAttempts: 2}, func() error {
		err := c.breaker.Execute(func() error {
			return resilience.WithTimeout(ctx, c.timeout, "model call", func(ctx context.Context) error {
				return c.post(ctx, reqBody, respBody)
			})
		})
		if err != nil && (errors.Is(err, apperrors.ErrRateLimited) || errors.Is(err, resilience.ErrCircuitOpen)) {
			// Not retryable here: hammering a throttled or tripped backend
			// only extends the outage.
			return resilience.Permanent(err)
		}
		return err
	})
}

func (c *Client) post(ctx context.Context, reqBody, respBody any) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("%w: marshaling request: %v", apperrors.ErrInternal, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrDownload, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{RetryAfter: retryAfter(resp)}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("backend returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		return fmt.Errorf("%w: decoding response: %v", apperrors.ErrDecode, err)
	}
	return nil
}

// retryAfter parses the Retry-After header, in seconds.
func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}
