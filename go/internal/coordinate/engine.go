package coordinate

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/jstats/matchlens/go/clients/footballdata"
	"github.com/jstats/matchlens/go/internal/ingest"
	"github.com/jstats/matchlens/go/internal/models"
	"github.com/jstats/matchlens/go/internal/reconcile"
	"github.com/jstats/matchlens/go/internal/retry"
)

// MetricsCollector records engine activity. The no-op implementation serves
// tests and setups without a metrics backend.
type MetricsCollector interface {
	RecordFetch(competition string, success bool, records, dropped int)
	RecordOutcome(kind string)
}

type NoOpMetricsCollector struct{}

func (NoOpMetricsCollector) RecordFetch(competition string, success bool, records, dropped int) {}
func (NoOpMetricsCollector) RecordOutcome(kind string)                                          {}

type EngineConfig struct {
	Shards       int
	ShardBuffer  int
	PollInterval time.Duration
	// WindowBack/WindowAhead bound the fetch window around the current
	// time; finished matches older than WindowBack no longer change.
	WindowBack   time.Duration
	WindowAhead  time.Duration
	Competitions []string
	FetchPolicy  retry.Policy
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Shards:       4,
		ShardBuffer:  64,
		PollInterval: time.Minute,
		WindowBack:   48 * time.Hour,
		WindowAhead:  7 * 24 * time.Hour,
		FetchPolicy:  retry.DefaultPolicy(),
	}
}

// Engine drives the pipeline: a scheduler fetches each competition on a
// tick (or on demand) and partitions the collapsed batch across shard
// workers by key hash, so no two workers ever touch the same entity and no
// global lock exists. Each worker consumes its shard serially; a worker
// blocked on queue backpressure pauses admission for exactly its shard.
type Engine struct {
	fetcher     ingest.Fetcher
	coordinator *Coordinator
	config      EngineConfig
	clock       clockwork.Clock
	metrics     MetricsCollector

	workCh    []chan models.RawRecord
	refreshCh chan string

	mu        sync.Mutex
	lastFetch time.Time
}

func NewEngine(fetcher ingest.Fetcher, coordinator *Coordinator, cfg EngineConfig, clock clockwork.Clock, metrics MetricsCollector) *Engine {
	def := DefaultEngineConfig()
	if cfg.Shards <= 0 {
		cfg.Shards = def.Shards
	}
	if cfg.ShardBuffer <= 0 {
		cfg.ShardBuffer = def.ShardBuffer
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.FetchPolicy.MaxAttempts == 0 {
		cfg.FetchPolicy = def.FetchPolicy
	}
	if metrics == nil {
		metrics = NoOpMetricsCollector{}
	}

	workCh := make([]chan models.RawRecord, cfg.Shards)
	for i := range workCh {
		workCh[i] = make(chan models.RawRecord, cfg.ShardBuffer)
	}

	return &Engine{
		fetcher:     fetcher,
		coordinator: coordinator,
		config:      cfg,
		clock:       clock,
		metrics:     metrics,
		workCh:      workCh,
		refreshCh:   make(chan string, 16),
	}
}

// Run starts the shard workers and the scheduler loop, blocking until the
// context ends.
func (e *Engine) Run(ctx context.Context) error {
	log.Info().
		Int("shards", e.config.Shards).
		Dur("poll_interval", e.config.PollInterval).
		Strs("competitions", e.config.Competitions).
		Msg("ingestion engine started")

	var wg sync.WaitGroup
	for i := 0; i < e.config.Shards; i++ {
		wg.Add(1)
		go e.worker(ctx, &wg, i)
	}
	defer func() {
		wg.Wait()
		log.Info().Msg("ingestion engine stopped")
	}()

	ticker := e.clock.NewTicker(e.config.PollInterval)
	defer ticker.Stop()

	// Run a full pass immediately on start
	e.runAll(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			e.runAll(ctx)
		case code := <-e.refreshCh:
			e.runCompetition(ctx, code)
		}
	}
}

// RefreshCompetition queues an on-demand fetch cycle for one competition.
func (e *Engine) RefreshCompetition(code string) error {
	select {
	case e.refreshCh <- code:
		return nil
	default:
		return fmt.Errorf("refresh queue full for competition %s", code)
	}
}

// LastSuccessfulFetch is the liveness signal: the time of the most recent
// fetch cycle that reached the dispatch stage.
func (e *Engine) LastSuccessfulFetch() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastFetch
}

func (e *Engine) runAll(ctx context.Context) {
	for _, code := range e.config.Competitions {
		if ctx.Err() != nil {
			return
		}
		e.runCompetition(ctx, code)
	}
}

func (e *Engine) runCompetition(ctx context.Context, code string) {
	now := e.clock.Now().UTC()
	window := ingest.Window{
		Competition: code,
		From:        now.Add(-e.config.WindowBack),
		To:          now.Add(e.config.WindowAhead),
	}

	var batch *ingest.Batch
	err := e.config.FetchPolicy.Do(ctx, e.clock, func() error {
		var fetchErr error
		batch, fetchErr = e.fetcher.Fetch(ctx, window)
		if errors.Is(fetchErr, footballdata.ErrNotFound) {
			// unknown competition code: retrying cannot help
			return &retry.Permanent{Err: fetchErr}
		}
		return fetchErr
	})
	if err != nil {
		// degraded cycle, not a crash: report and wait for the next pass
		kind := Classify(err)
		e.metrics.RecordFetch(code, false, 0, 0)
		log.Error().
			Err(err).
			Str("competition", code).
			Str("error_kind", string(kind)).
			Msg("fetch cycle degraded")
		return
	}

	e.metrics.RecordFetch(code, true, len(batch.Records), batch.Dropped)
	e.mu.Lock()
	e.lastFetch = batch.FetchedAt
	e.mu.Unlock()

	for _, record := range reconcile.CollapseBatch(batch.Records) {
		select {
		case <-ctx.Done():
			return
		case e.workCh[e.shardFor(record.ExternalKey)] <- record:
		}
	}
}

func (e *Engine) worker(ctx context.Context, wg *sync.WaitGroup, shard int) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case record := <-e.workCh[shard]:
			report := e.coordinator.ProcessRecord(ctx, record)
			e.observe(shard, report)
		}
	}
}

func (e *Engine) observe(shard int, report CycleReport) {
	if report.ErrKind == ErrKindNone {
		e.metrics.RecordOutcome(string(report.Outcome))
		if report.NewVersion > 0 {
			log.Info().
				Str("external_key", report.Key).
				Str("outcome", string(report.Outcome)).
				Int64("version", report.NewVersion).
				Int("shard", shard).
				Int("retries", report.Retries).
				Msg("committed fixture mutation")
		}
		return
	}

	e.metrics.RecordOutcome(string(report.ErrKind))
	evt := log.Warn()
	if !report.ErrKind.Retryable() {
		evt = log.Error()
	}
	evt.
		Err(report.Err).
		Str("external_key", report.Key).
		Str("error_kind", string(report.ErrKind)).
		Int("shard", shard).
		Int("retries", report.Retries).
		Msg("reconciliation cycle failed")
}

func (e *Engine) shardFor(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(e.config.Shards))
}
