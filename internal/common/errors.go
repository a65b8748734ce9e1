// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors, grouped by failure class.
var (
	// Database errors.
	ErrNotFound      = errors.New("not found")
	ErrCorruptRecord = errors.New("corrupt record")
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")

	// Recoverable-external: AI or marketplace service trouble. These always
	// trigger the caller's next fallback tier or layer, never end a run.
	ErrRateLimit         = errors.New("rate limit exceeded")
	ErrMalformedResponse = errors.New("malformed service response")
	ErrFetchFailed       = errors.New("page fetch failed")

	// Supplier-fatal: ends one supplier's run cleanly, others unaffected.
	ErrEntryUnreachable = errors.New("supplier entry point unreachable")
	ErrTiersExhausted   = errors.New("all decision tiers exhausted")

	// ErrMaxRetries indicates that all retry attempts have been exhausted.
	ErrMaxRetries = errors.New("max retries exceeded")
)

// SupplierFatal reports whether an error should end a supplier's run.
func SupplierFatal(err error) bool {
	return errors.Is(err, ErrEntryUnreachable) || errors.Is(err, ErrTiersExhausted)
}

// ItemError tags a failure with the source identifier it belongs to, so a
// single item's failure can be logged and skipped without ending the run.
type ItemError struct {
	Err      error
	SourceID string
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %s: %v", e.SourceID, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// RetryableError wraps an error with retry-specific metadata.
type RetryableError struct {
	Err       error
	Retryable bool
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
