// Package fetcher retrieves pages under retry, backoff and rate
// constraints. Failures are always reported as typed *FetchError values.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mpetrenko/RecordHarvester/internal/config"
)

// maxBackoff caps the exponential retry delay.
const maxBackoff = 30 * time.Second

// defaultCooldown applies after a 429 without a usable Retry-After header.
const defaultCooldown = 15 * time.Second

// Target is a URL pending retrieval, with retry bookkeeping. Targets are
// owned exclusively by the orchestrator's worklist.
type Target struct {
	URL      string
	Depth    int
	Attempts int
}

// PageBody is a successfully fetched page.
type PageBody struct {
	URL        string
	FinalURL   string
	StatusCode int
	Body       []byte
	FetchedAt  time.Time
}

// PageFetcher is implemented by the HTTP fetcher and the headless-browser
// fetcher. Errors returned are always *FetchError.
type PageFetcher interface {
	Fetch(ctx context.Context, target *Target) (*PageBody, error)
}

// Fetcher issues HTTP GET requests with user-agent rotation, exponential
// backoff on transient failures, and a run-wide rate limiter. A 429 from
// any target pauses the whole instance (global backpressure), not just the
// offending target.
type Fetcher struct {
	httpClient  *http.Client
	limiter     *rate.Limiter
	retryLimit  int
	backoffBase time.Duration
	headers     map[string]string
	logger      *zap.Logger

	uaMu       sync.Mutex
	userAgents []string
	currentUA  int

	cooldownMu    sync.Mutex
	cooldownUntil time.Time
}

// New creates a fetcher from the run's request configuration.
func New(cfg config.RequestConfig, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}

	userAgents := cfg.UserAgents
	if len(userAgents) == 0 {
		userAgents = defaultUserAgents()
	}

	// At least one wire attempt, or Fetch could return neither a body nor
	// an error.
	retryLimit := cfg.RetryLimit
	if retryLimit < 1 {
		retryLimit = 1
	}

	httpClient := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &Fetcher{
		httpClient:  httpClient,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		retryLimit:  retryLimit,
		backoffBase: cfg.BackoffBase,
		headers:     cfg.Headers,
		userAgents:  userAgents,
		logger:      logger,
	}
}

// Fetch retrieves the target URL. The target's attempt count is incremented
// for every wire attempt made. On failure the returned error is always a
// *FetchError carrying the failure kind.
func (f *Fetcher) Fetch(ctx context.Context, target *Target) (*PageBody, error) {
	parsed, err := url.Parse(target.URL)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return nil, &FetchError{
			Kind: KindPermanent,
			URL:  target.URL,
			Err:  fmt.Errorf("malformed URL"),
		}
	}

	var lastErr *FetchError

	for attempt := 0; attempt < f.retryLimit; attempt++ {
		if attempt > 0 {
			if err := f.waitBackoff(ctx, attempt); err != nil {
				return nil, &FetchError{Kind: KindTransient, URL: target.URL, Attempts: target.Attempts, Err: err}
			}
		}
		if err := f.waitCooldown(ctx); err != nil {
			return nil, &FetchError{Kind: KindTransient, URL: target.URL, Attempts: target.Attempts, Err: err}
		}
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, &FetchError{Kind: KindTransient, URL: target.URL, Attempts: target.Attempts, Err: err}
		}

		target.Attempts++

		body, fetchErr := f.attempt(ctx, target.URL)
		if fetchErr == nil {
			return body, nil
		}

		fetchErr.Attempts = target.Attempts
		lastErr = fetchErr

		switch fetchErr.Kind {
		case KindPermanent:
			return nil, fetchErr
		case KindRateLimited:
			f.logger.Warn("rate limited, entering cooldown",
				zap.String("url", target.URL),
				zap.Int("attempt", target.Attempts),
			)
		default:
			f.logger.Debug("transient fetch failure",
				zap.String("url", target.URL),
				zap.Int("attempt", target.Attempts),
				zap.Error(fetchErr.Err),
			)
		}
	}

	return nil, lastErr
}

// attempt performs one wire attempt and classifies the outcome.
func (f *Fetcher) attempt(ctx context.Context, targetURL string) (*PageBody, *FetchError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, &FetchError{Kind: KindPermanent, URL: targetURL, Err: err}
	}
	f.setRequestHeaders(req)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		// Timeouts, resets and DNS hiccups are all retryable.
		return nil, &FetchError{Kind: KindTransient, URL: targetURL, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &FetchError{Kind: KindTransient, URL: targetURL, Err: err}
		}
		return &PageBody{
			URL:        targetURL,
			FinalURL:   resp.Request.URL.String(),
			StatusCode: resp.StatusCode,
			Body:       data,
			FetchedAt:  time.Now(),
		}, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		f.enterCooldown(retryAfter(resp))
		return nil, &FetchError{Kind: KindRateLimited, URL: targetURL, StatusCode: resp.StatusCode}

	case resp.StatusCode >= 500:
		return nil, &FetchError{Kind: KindTransient, URL: targetURL, StatusCode: resp.StatusCode}

	default:
		return nil, &FetchError{Kind: KindPermanent, URL: targetURL, StatusCode: resp.StatusCode}
	}
}

// setRequestHeaders configures browser-like headers and rotates user agents.
func (f *Fetcher) setRequestHeaders(req *http.Request) {
	req.Header.Set("User-Agent", f.nextUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	for key, value := range f.headers {
		req.Header.Set(key, value)
	}
}

// nextUserAgent returns the next user agent in rotation.
func (f *Fetcher) nextUserAgent() string {
	f.uaMu.Lock()
	defer f.uaMu.Unlock()

	ua := f.userAgents[f.currentUA]
	f.currentUA = (f.currentUA + 1) % len(f.userAgents)
	return ua
}

// waitBackoff sleeps for the exponential backoff delay with jitter.
func (f *Fetcher) waitBackoff(ctx context.Context, attempt int) error {
	delay := f.backoffBase * time.Duration(1<<uint(attempt-1))
	if delay > maxBackoff {
		delay = maxBackoff
	}
	delay += time.Duration(rand.Int63n(int64(delay/2) + 1))

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// enterCooldown pauses the whole fetcher until the throttling window ends.
func (f *Fetcher) enterCooldown(d time.Duration) {
	f.cooldownMu.Lock()
	defer f.cooldownMu.Unlock()

	until := time.Now().Add(d)
	if until.After(f.cooldownUntil) {
		f.cooldownUntil = until
	}
}

// waitCooldown blocks while a fetcher-wide cooldown is in effect.
func (f *Fetcher) waitCooldown(ctx context.Context) error {
	f.cooldownMu.Lock()
	until := f.cooldownUntil
	f.cooldownMu.Unlock()

	wait := time.Until(until)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// retryAfter extracts the server-requested delay from a 429 response.
func retryAfter(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return defaultCooldown
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return defaultCooldown
}

// defaultUserAgents returns a set of realistic user agent strings.
func defaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/119.0",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	}
}
