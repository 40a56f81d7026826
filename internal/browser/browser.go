// Package browser renders JavaScript-heavy pages through headless Chrome
// and exposes them behind the same fetch contract as the HTTP client.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mpetrenko/RecordHarvester/internal/config"
	"github.com/mpetrenko/RecordHarvester/internal/fetcher"
)

// Renderer fetches pages with a headless browser. One browser process is
// shared across the run; navigations are serialized because they share a
// single tab.
type Renderer struct {
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc

	limiter *rate.Limiter
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.Mutex
	closed bool
}

// NewRenderer starts the headless browser. The caller must Close it.
func NewRenderer(cfg config.RequestConfig, logger *zap.Logger) (*Renderer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.Headless,
		chromedp.NoSandbox, // containers
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
	}
	if len(cfg.UserAgents) > 0 {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgents[0]))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Start the browser process eagerly so a broken Chrome install fails
	// the run at startup, not on the first page.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start headless browser: %w", err)
	}

	return &Renderer{
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		limiter:       rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		timeout:       cfg.Timeout,
		logger:        logger,
	}, nil
}

// Fetch renders one page and returns its DOM. Navigation failures are
// transient; rendered pages carry no HTTP status, so a page that loads
// reports 200.
func (r *Renderer) Fetch(ctx context.Context, target *fetcher.Target) (*fetcher.PageBody, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, &fetcher.FetchError{Kind: fetcher.KindTransient, URL: target.URL, Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, &fetcher.FetchError{
			Kind: fetcher.KindPermanent,
			URL:  target.URL,
			Err:  fmt.Errorf("renderer is closed"),
		}
	}

	navCtx := r.browserCtx
	var cancel context.CancelFunc
	if r.timeout > 0 {
		navCtx, cancel = context.WithTimeout(navCtx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	var html, location string
	err := chromedp.Run(navCtx,
		chromedp.Navigate(target.URL),
		chromedp.WaitReady("body"),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html),
	)
	target.Attempts++
	if err != nil {
		r.logger.Warn("render failed",
			zap.String("url", target.URL),
			zap.Error(err),
		)
		return nil, &fetcher.FetchError{
			Kind:     fetcher.KindTransient,
			URL:      target.URL,
			Attempts: target.Attempts,
			Err:      fmt.Errorf("navigation failed: %w", err),
		}
	}

	r.logger.Debug("page rendered",
		zap.String("url", target.URL),
		zap.Duration("elapsed", time.Since(start)),
	)

	return &fetcher.PageBody{
		URL:        target.URL,
		FinalURL:   location,
		StatusCode: 200,
		Body:       []byte(html),
		FetchedAt:  time.Now(),
	}, nil
}

// Close shuts the browser down.
func (r *Renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.browserCancel()
	r.allocCancel()
}
