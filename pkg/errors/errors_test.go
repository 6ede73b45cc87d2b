package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"app error carries its code", New(ErrInvalidInput, ExitBadInput, "empty input"), ExitBadInput},
		{"wrapped app error", fmt.Errorf("parsing: %w", New(ErrMissingIdentifierColumn, ExitBadInput, "no asin")), ExitBadInput},
		{"bare missing identifier sentinel", ErrMissingIdentifierColumn, ExitBadInput},
		{"bare invalid input sentinel", ErrInvalidInput, ExitBadInput},
		{"other error", errors.New("disk full"), ExitRunFailed},
		{"download sentinel", ErrDownload, ExitRunFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := Newf(ErrRateLimited, ExitRunFailed, "backend %s", "review")
	if !errors.Is(err, ErrRateLimited) {
		t.Error("AppError must unwrap to its sentinel")
	}
	if got := err.Error(); got != "rate limit exceeded: backend review" {
		t.Errorf("Error() = %q", got)
	}
}

func TestIsRetryable(t *testing.T) {
	retryable := []error{
		ErrRateLimited,
		ErrTimeout,
		fmt.Errorf("fetching: %w", ErrDownload),
	}
	for _, err := range retryable {
		if !IsRetryable(err) {
			t.Errorf("IsRetryable(%v) = false, want true", err)
		}
	}
	if IsRetryable(ErrInvalidInput) {
		t.Error("input defects must not be retryable")
	}
	if IsRetryable(errors.New("unknown")) {
		t.Error("unknown errors must not be retryable")
	}
}
