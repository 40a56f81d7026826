package fetcher

import "fmt"

// ErrorKind classifies fetch failures for retry and reporting decisions.
type ErrorKind string

const (
	// KindTransient covers timeouts, connection resets and 5xx responses.
	// Transient failures are retried up to the configured attempt ceiling.
	KindTransient ErrorKind = "transient"

	// KindPermanent covers malformed URLs and non-429 4xx responses.
	// Permanent failures are never retried.
	KindPermanent ErrorKind = "permanent"

	// KindRateLimited covers 429 responses and explicit throttling
	// signals. They trigger a fetcher-wide cooldown before retrying.
	KindRateLimited ErrorKind = "rate_limited"
)

// FetchError is the typed failure returned by Fetch. The fetcher never lets
// an unhandled fault escape past its boundary; callers always see either a
// PageBody or a *FetchError.
type FetchError struct {
	Kind       ErrorKind
	URL        string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s failed (%s, %d attempts): %v", e.URL, e.Kind, e.Attempts, e.Err)
	}
	return fmt.Sprintf("fetch %s failed (%s, HTTP %d, %d attempts)", e.URL, e.Kind, e.StatusCode, e.Attempts)
}

func (e *FetchError) Unwrap() error { return e.Err }
