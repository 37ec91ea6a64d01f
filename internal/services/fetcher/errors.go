package fetcher

import (
	"errors"
	"fmt"
)

// FetchError is the typed failure surfaced by the fetcher. Permanent errors
// (4xx other than 429, malformed payloads) are not retried; transient ones
// have already exhausted the retry budget by the time callers see them.
type FetchError struct {
	URL        string
	StatusCode int
	Permanent  bool
	Err        error
}

func (e *FetchError) Error() string {
	kind := "transient"
	if e.Permanent {
		kind = "permanent"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s fetch error for %s (status %d): %v", kind, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s fetch error for %s: %v", kind, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsPermanent reports whether err is a non-retryable fetch failure
func IsPermanent(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Permanent
	}
	return false
}
