package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingIdentifierColumn aborts the whole run: without the product
	// identifier no row can be grouped into a listing.
	ErrMissingIdentifierColumn = errors.New("identifier column missing")
	ErrInvalidInput            = errors.New("invalid input")
	ErrRateLimited             = errors.New("rate limit exceeded")
	ErrDownload                = errors.New("download failed")
	ErrDecode                  = errors.New("decode failed")
	ErrTimeout                 = errors.New("operation timed out")
	ErrInternal                = errors.New("internal error")
)

// Process exit codes for the batch binary.
const (
	ExitOK        = 0
	ExitRunFailed = 1
	ExitBadInput  = 2
)

type AppError struct {
	Err      error
	Message  string
	ExitCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, exitCode int, message string) *AppError {
	return &AppError{
		Err:      sentinel,
		Message:  message,
		ExitCode: exitCode,
	}
}

func Newf(sentinel error, exitCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:      sentinel,
		Message:  fmt.Sprintf(format, args...),
		ExitCode: exitCode,
	}
}

// ExitCode maps an error to the process exit code the batch binary should
// return. Ingestion-time input defects exit 2, everything else unrecoverable
// exits 1.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.ExitCode
	}
	switch {
	case errors.Is(err, ErrMissingIdentifierColumn), errors.Is(err, ErrInvalidInput):
		return ExitBadInput
	default:
		return ExitRunFailed
	}
}

// IsRetryable reports whether the failure is transient enough that a retry
// could succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrDownload)
}
