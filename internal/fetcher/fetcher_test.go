package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mpetrenko/RecordHarvester/internal/config"
)

func testConfig() config.RequestConfig {
	return config.RequestConfig{
		MaxConcurrency: 2,
		RetryLimit:     3,
		BackoffBase:    5 * time.Millisecond,
		Timeout:        2 * time.Second,
		RateLimit:      1000,
		RateBurst:      1000,
	}
}

func TestFetchSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer server.Close()

	f := New(testConfig(), nil)
	target := &Target{URL: server.URL}

	body, err := f.Fetch(context.Background(), target)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if body.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", body.StatusCode)
	}
	if len(body.Body) == 0 {
		t.Error("expected non-empty body")
	}
	if target.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", target.Attempts)
	}
}

func TestFetchRetriesTransientThenSucceeds(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	f := New(testConfig(), nil)
	target := &Target{URL: server.URL}

	if _, err := f.Fetch(context.Background(), target); err != nil {
		t.Fatalf("Fetch failed after retries: %v", err)
	}
	if target.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", target.Attempts)
	}
}

func TestFetchTransientExhaustsRetryLimit(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	f := New(testConfig(), nil)
	target := &Target{URL: server.URL}

	_, err := f.Fetch(context.Background(), target)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %T", err)
	}
	if fe.Kind != KindTransient {
		t.Errorf("expected transient kind, got %s", fe.Kind)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("expected exactly 3 wire attempts with retry_limit=3, got %d", got)
	}
	if target.Attempts != 3 {
		t.Errorf("expected target.Attempts=3, got %d", target.Attempts)
	}
}

func TestFetchZeroRetryLimitStillAttemptsOnce(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.RetryLimit = 0
	f := New(cfg, nil)

	body, err := f.Fetch(context.Background(), &Target{URL: server.URL})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if body == nil {
		t.Fatal("expected a body from a successful fetch")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected 1 wire attempt, got %d", got)
	}
}

func TestFetchZeroRetryLimitFailureIsTyped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.RetryLimit = 0
	f := New(cfg, nil)

	body, err := f.Fetch(context.Background(), &Target{URL: server.URL})
	if body != nil {
		t.Fatal("expected no body on failure")
	}
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %T (%v)", err, err)
	}
	if fe.Kind != KindTransient {
		t.Errorf("expected transient kind, got %s", fe.Kind)
	}
}

func TestFetchPermanentFailsImmediately(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := New(testConfig(), nil)
	_, err := f.Fetch(context.Background(), &Target{URL: server.URL})

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %T", err)
	}
	if fe.Kind != KindPermanent {
		t.Errorf("expected permanent kind, got %s", fe.Kind)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("permanent failure should not retry, got %d attempts", got)
	}
}

func TestFetchMalformedURL(t *testing.T) {
	f := New(testConfig(), nil)
	_, err := f.Fetch(context.Background(), &Target{URL: "not a url"})

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %T", err)
	}
	if fe.Kind != KindPermanent {
		t.Errorf("expected permanent kind for malformed URL, got %s", fe.Kind)
	}
}

func TestFetchRateLimitedEntersGlobalCooldown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.RetryLimit = 1
	f := New(cfg, nil)

	_, err := f.Fetch(context.Background(), &Target{URL: server.URL})
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Kind != KindRateLimited {
		t.Fatalf("expected rate_limited error, got %v", err)
	}

	// The cooldown must apply to the whole fetcher instance, so a fetch
	// of an unrelated target now blocks until the window passes.
	f.cooldownMu.Lock()
	remaining := time.Until(f.cooldownUntil)
	f.cooldownMu.Unlock()
	if remaining <= 0 {
		t.Error("expected instance-wide cooldown after 429")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = f.Fetch(ctx, &Target{URL: server.URL + "/other"})
	if err == nil {
		t.Fatal("expected fetch during cooldown to be held back")
	}
}

func TestRetryAfterParsing(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   time.Duration
	}{
		{"seconds", "7", 7 * time.Second},
		{"missing", "", defaultCooldown},
		{"garbage", "soon", defaultCooldown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{Header: http.Header{}}
			if tt.header != "" {
				resp.Header.Set("Retry-After", tt.header)
			}
			if got := retryAfter(resp); got != tt.want {
				t.Errorf("retryAfter(%q) = %v, want %v", tt.header, got, tt.want)
			}
		})
	}
}
