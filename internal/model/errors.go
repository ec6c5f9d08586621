package model

import (
	"fmt"
	"time"
)

// HTTPError wraps an HTTP status code so retry logic can inspect it.
type HTTPError struct {
	StatusCode int
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// AuthRequiredError signals that the listing source hit a
// login/verification checkpoint. It is fatal to the whole scan session:
// further calls against an unauthenticated source are wasted.
type AuthRequiredError struct {
	URL string
}

func (e *AuthRequiredError) Error() string {
	return fmt.Sprintf("authentication checkpoint at %s", e.URL)
}

// ExtractionError signals that a fetched page or listing response did not
// have the expected shape. Non-fatal: the affected target or posting is
// recorded and the scan continues.
type ExtractionError struct {
	URL string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting %s: %v", e.URL, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
