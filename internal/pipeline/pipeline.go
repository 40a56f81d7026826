// Package pipeline coordinates the harvest run: a worker pool fetches
// pages from a shared frontier, parses them into record blocks, extracts
// and deduplicates records, and finally streams the merged set to the
// configured sink.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mpetrenko/RecordHarvester/internal/config"
	"github.com/mpetrenko/RecordHarvester/internal/dedup"
	"github.com/mpetrenko/RecordHarvester/internal/extract"
	"github.com/mpetrenko/RecordHarvester/internal/fetcher"
	"github.com/mpetrenko/RecordHarvester/internal/monitoring"
	"github.com/mpetrenko/RecordHarvester/internal/parser"
	"github.com/mpetrenko/RecordHarvester/pkg/records"
)

// State is the orchestrator lifecycle phase.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateDraining
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Progress is a point-in-time snapshot of the run.
type Progress struct {
	State            string        `json:"state"`
	PagesFetched     int           `json:"pages_fetched"`
	PagesFailed      int           `json:"pages_failed"`
	PagesParsed      int           `json:"pages_parsed"`
	ParseErrors      int           `json:"parse_errors"`
	RecordsExtracted int           `json:"records_extracted"`
	ExtractionErrors int           `json:"extraction_errors"`
	Identities       int           `json:"identities"`
	RecordsWritten   int           `json:"records_written"`
	WriteFailures    int           `json:"write_failures"`
	QueueDepth       int           `json:"queue_depth"`
	Elapsed          time.Duration `json:"elapsed"`
}

// Orchestrator drives one harvesting run. It is single-use: construct,
// Run once, discard.
type Orchestrator struct {
	cfg       *config.RunConfig
	fetcher   fetcher.PageFetcher
	parser    *parser.Parser
	extractor *extract.Extractor
	dedup     *dedup.Deduplicator
	sink      records.Sink
	metrics   *monitoring.Metrics
	logger    *zap.Logger

	state    atomic.Int32
	started  time.Time
	stopOnce sync.Once

	mu        sync.Mutex
	cond      *sync.Cond
	queue     []*fetcher.Target
	inflight  int
	visited   map[string]bool
	scheduled int
	draining  bool
	counters  Progress

	progressCh chan Progress
}

// New assembles an orchestrator over prebuilt stages. A nil metrics set is
// replaced with a private one so stages can record unconditionally.
func New(
	cfg *config.RunConfig,
	pageFetcher fetcher.PageFetcher,
	pageParser *parser.Parser,
	extractor *extract.Extractor,
	deduplicator *dedup.Deduplicator,
	sink records.Sink,
	metrics *monitoring.Metrics,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}

	o := &Orchestrator{
		cfg:        cfg,
		fetcher:    pageFetcher,
		parser:     pageParser,
		extractor:  extractor,
		dedup:      deduplicator,
		sink:       sink,
		metrics:    metrics,
		logger:     logger,
		visited:    make(map[string]bool),
		progressCh: make(chan Progress, 1),
	}
	o.cond = sync.NewCond(&o.mu)
	o.state.Store(int32(StateIdle))
	return o
}

// State reports the current lifecycle phase.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// Progress returns the channel of periodic run snapshots. It is closed
// when the run finishes.
func (o *Orchestrator) Progress() <-chan Progress {
	return o.progressCh
}

// Snapshot returns the current progress synchronously.
func (o *Orchestrator) Snapshot() Progress {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

func (o *Orchestrator) snapshotLocked() Progress {
	p := o.counters
	p.State = o.State().String()
	p.QueueDepth = len(o.queue)
	p.Identities = o.dedup.Len()
	if !o.started.IsZero() {
		p.Elapsed = time.Since(o.started).Round(time.Millisecond)
	}
	return p
}

// Stop requests a cooperative drain: no new pages are started, in-flight
// pages finish, and everything harvested so far is flushed to the sink.
// Safe to call from any goroutine, any number of times.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() {
		o.mu.Lock()
		o.draining = true
		if o.State() == StateRunning {
			o.state.Store(int32(StateDraining))
		}
		o.cond.Broadcast()
		o.mu.Unlock()
		o.logger.Info("drain requested")
	})
}

// Run executes the harvest to completion. Cancelling ctx aborts in-flight
// fetches; results already absorbed are still flushed. Run returns nil
// when the run reaches Done, the terminal error otherwise.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return fmt.Errorf("orchestrator has already run")
	}
	o.mu.Lock()
	o.started = time.Now()
	o.mu.Unlock()
	defer close(o.progressCh)

	seeds, dropped := o.cfg.ValidSeeds()
	if dropped > 0 {
		o.logger.Warn("dropped malformed seed URLs", zap.Int("count", dropped))
	}
	if len(seeds) == 0 {
		o.state.Store(int32(StateFailed))
		return fmt.Errorf("no valid seed URLs")
	}
	for _, seed := range seeds {
		o.enqueue(&fetcher.Target{URL: seed})
	}

	// Cooperative drain on context cancellation; the fetch context is the
	// caller's, so in-flight requests abort with it.
	stopWatch := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			o.Stop()
		case <-stopWatch:
		}
	}()
	defer close(stopWatch)

	interval := o.cfg.ProgressInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	tickerQuit := make(chan struct{})
	tickerDone := make(chan struct{})
	go func() {
		defer close(tickerDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				o.emitProgress()
			case <-tickerQuit:
				return
			}
		}
	}()
	// Runs before the deferred close of progressCh, so no snapshot is ever
	// sent on a closed channel.
	defer func() {
		close(tickerQuit)
		<-tickerDone
	}()

	var wg sync.WaitGroup
	workers := o.cfg.Request.MaxConcurrency
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.work(ctx)
		}()
	}
	wg.Wait()

	if o.State() == StateRunning {
		o.state.Store(int32(StateDraining))
	}

	err := o.finalize()
	if err != nil {
		o.state.Store(int32(StateFailed))
		o.emitProgress()
		return err
	}
	o.state.Store(int32(StateDone))
	o.emitProgress()

	o.mu.Lock()
	snapshot := o.snapshotLocked()
	o.mu.Unlock()
	o.logger.Info("run complete",
		zap.Int("pages_fetched", snapshot.PagesFetched),
		zap.Int("records_extracted", snapshot.RecordsExtracted),
		zap.Int("identities", snapshot.Identities),
		zap.Int("records_written", snapshot.RecordsWritten),
		zap.Int("write_failures", snapshot.WriteFailures),
		zap.Duration("elapsed", snapshot.Elapsed),
	)
	return nil
}

// work is one worker's loop over the frontier.
func (o *Orchestrator) work(ctx context.Context) {
	for {
		target, ok := o.next()
		if !ok {
			return
		}
		o.processPage(ctx, target)

		o.mu.Lock()
		o.inflight--
		o.cond.Broadcast()
		o.mu.Unlock()
	}
}

// next blocks until a target is available, all work is exhausted, or a
// drain is requested.
func (o *Orchestrator) next() (*fetcher.Target, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for {
		if o.draining {
			return nil, false
		}
		if len(o.queue) > 0 {
			target := o.queue[0]
			o.queue = o.queue[1:]
			o.inflight++
			o.metrics.QueueDepth.Set(float64(len(o.queue)))
			return target, true
		}
		if o.inflight == 0 {
			return nil, false
		}
		o.cond.Wait()
	}
}

// enqueue adds a target unless it was already scheduled, the page cap is
// reached, or the run is draining.
func (o *Orchestrator) enqueue(target *fetcher.Target) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.draining || o.visited[target.URL] {
		return
	}
	if max := o.cfg.Discovery.MaxPages; max > 0 && o.scheduled >= max {
		return
	}
	o.visited[target.URL] = true
	o.scheduled++
	o.queue = append(o.queue, target)
	o.metrics.QueueDepth.Set(float64(len(o.queue)))
	o.cond.Broadcast()
}

// processPage runs the fetch/parse/extract/absorb stages for one target.
// Page-level failures are recorded and skipped; they never abort the run.
func (o *Orchestrator) processPage(ctx context.Context, target *fetcher.Target) {
	start := time.Now()
	body, err := o.fetcher.Fetch(ctx, target)
	if err != nil {
		kind := "unknown"
		var fetchErr *fetcher.FetchError
		if errors.As(err, &fetchErr) {
			kind = string(fetchErr.Kind)
		}
		o.metrics.FetchErrors.WithLabelValues(kind).Inc()
		o.count(func(p *Progress) { p.PagesFailed++ })
		o.logger.Warn("page skipped",
			zap.String("url", target.URL),
			zap.String("kind", kind),
			zap.Error(err),
		)
		return
	}
	o.metrics.PagesFetched.Inc()
	o.metrics.FetchDuration.Observe(time.Since(start).Seconds())
	o.count(func(p *Progress) { p.PagesFetched++ })

	result, err := o.parser.Parse(body)
	if err != nil {
		o.metrics.ParseErrors.Inc()
		o.count(func(p *Progress) { p.ParseErrors++ })
		o.logger.Warn("page structure mismatch",
			zap.String("url", body.FinalURL),
			zap.Error(err),
		)
		return
	}
	o.metrics.PagesParsed.Inc()
	o.count(func(p *Progress) { p.PagesParsed++ })

	for _, block := range result.Blocks {
		rec, err := o.extractor.Extract(block)
		if err != nil {
			o.metrics.ExtractionErrors.Inc()
			o.count(func(p *Progress) { p.ExtractionErrors++ })
			o.logger.Debug("block not extractable", zap.String("url", block.SourceURL))
			continue
		}
		o.metrics.RecordsExtracted.Inc()
		o.count(func(p *Progress) { p.RecordsExtracted++ })

		o.dedup.Absorb(rec)
		o.metrics.Identities.Set(float64(o.dedup.Len()))
	}

	if o.cfg.Discovery.FollowNext || len(o.cfg.Discovery.LinkPatterns) > 0 {
		for _, next := range result.NextURLs {
			o.enqueue(&fetcher.Target{URL: next, Depth: target.Depth + 1})
		}
	}
}

// finalize streams the merged records to the sink in first-seen order and
// flushes. Write failures are retried once; a record that fails both
// attempts is counted and skipped so the rest of the set still lands. The
// sink contract is at-least-once, so a retry may duplicate, never lose.
func (o *Orchestrator) finalize() error {
	merged := o.dedup.Finalize()
	o.logger.Info("writing merged records",
		zap.Int("identities", len(merged)),
		zap.String("format", o.cfg.Output.Format),
	)

	for _, record := range merged {
		if err := o.writeRecord(record); err != nil {
			o.count(func(p *Progress) { p.WriteFailures++ })
			o.logger.Error("record dropped after write retry", zap.Error(err))
			continue
		}
		o.metrics.RecordsWritten.Inc()
		o.count(func(p *Progress) { p.RecordsWritten++ })
	}

	if err := o.sink.Flush(); err != nil {
		return fmt.Errorf("sink flush failed: %w", err)
	}
	return nil
}

// writeRecord delivers one record with a single retry. Both failures are
// folded into a typed *records.WriteError.
func (o *Orchestrator) writeRecord(record *records.MergedRecord) error {
	err := o.sink.Write(record)
	if err == nil {
		return nil
	}
	o.metrics.WriteErrors.Inc()
	o.logger.Warn("sink write failed, retrying",
		zap.String("identity", record.Key),
		zap.Error(err),
	)
	if err := o.sink.Write(record); err != nil {
		o.metrics.WriteErrors.Inc()
		return &records.WriteError{Key: record.Key, Err: err}
	}
	return nil
}

func (o *Orchestrator) count(update func(*Progress)) {
	o.mu.Lock()
	update(&o.counters)
	o.mu.Unlock()
}

// emitProgress publishes a snapshot without blocking; a slow consumer
// sees the newest snapshot, not a backlog.
func (o *Orchestrator) emitProgress() {
	snapshot := o.Snapshot()
	select {
	case o.progressCh <- snapshot:
	default:
		select {
		case <-o.progressCh:
		default:
		}
		select {
		case o.progressCh <- snapshot:
		default:
		}
	}
}
