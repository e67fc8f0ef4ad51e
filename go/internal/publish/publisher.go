package publish

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/jstats/matchlens/go/internal/models"
	"github.com/jstats/matchlens/go/internal/retry"
)

// ExternalPublisher is the outbound messaging leg.
type ExternalPublisher interface {
	Publish(ctx context.Context, event models.ChangeEvent) error
}

// MetricsCollector records publisher activity. The no-op implementation
// serves tests and setups without a metrics backend.
type MetricsCollector interface {
	RecordPublish(leg string, success bool, duration time.Duration)
	RecordQueueDepth(depth int)
	RecordExternalGiveUp()
}

type NoOpMetricsCollector struct{}

func (NoOpMetricsCollector) RecordPublish(leg string, success bool, duration time.Duration) {}
func (NoOpMetricsCollector) RecordQueueDepth(depth int)                                     {}
func (NoOpMetricsCollector) RecordExternalGiveUp()                                          {}

type FanoutConfig struct {
	// OutboundBuffer bounds the external leg's in-flight backlog.
	OutboundBuffer int
	// GiveUpAttempts is how many retry rounds the external leg makes per
	// event before escalating. Each round runs the full retry policy. The
	// event stays journaled in the store either way.
	GiveUpAttempts int
	Policy         retry.Policy
}

func DefaultFanoutConfig() FanoutConfig {
	return FanoutConfig{
		OutboundBuffer: 4096,
		GiveUpAttempts: 5,
		Policy:         retry.DefaultPolicy(),
	}
}

// Fanout delivers each committed change event on two independent legs: the
// in-process queue and the external messaging topic. Failure of one leg
// never blocks or drops the other; each retries and reports on its own.
type Fanout struct {
	queue    *Queue
	external ExternalPublisher
	config   FanoutConfig
	clock    clockwork.Clock
	metrics  MetricsCollector

	outbound chan models.ChangeEvent
	wg       sync.WaitGroup
}

func NewFanout(queue *Queue, external ExternalPublisher, cfg FanoutConfig, clock clockwork.Clock, metrics MetricsCollector) *Fanout {
	if metrics == nil {
		metrics = NoOpMetricsCollector{}
	}
	if cfg.OutboundBuffer <= 0 {
		cfg.OutboundBuffer = DefaultFanoutConfig().OutboundBuffer
	}
	if cfg.GiveUpAttempts <= 0 {
		cfg.GiveUpAttempts = DefaultFanoutConfig().GiveUpAttempts
	}
	return &Fanout{
		queue:    queue,
		external: external,
		config:   cfg,
		clock:    clock,
		metrics:  metrics,
		outbound: make(chan models.ChangeEvent, cfg.OutboundBuffer),
	}
}

// Start launches the external dispatch loop. A single goroutine drains the
// outbound channel in FIFO order, which keeps per-entity ordering on the
// external leg.
func (f *Fanout) Start(ctx context.Context) {
	f.wg.Add(1)
	go f.runExternal(ctx)
}

// Stop waits for the external dispatch loop to exit.
func (f *Fanout) Stop() {
	f.wg.Wait()
}

// Publish fans one committed event out to both legs.
//
// The internal leg returns ErrQueueFull as backpressure: the coordination
// layer must pause admission for the shard and wait on Drained(). The
// external leg is enqueued asynchronously; once an event is committed it is
// never dropped silently, only escalated after the give-up threshold.
func (f *Fanout) Publish(ctx context.Context, event models.ChangeEvent) error {
	start := f.clock.Now()

	err := f.queue.TryPublish(event)
	f.metrics.RecordPublish("internal", err == nil, f.clock.Since(start))
	f.metrics.RecordQueueDepth(f.queue.Depth())
	if err != nil {
		return err
	}

	select {
	case f.outbound <- event:
	default:
		// Outbound backlog is saturated. The event is journaled with its
		// fixture, so an operator replay can re-send it; surface loudly.
		f.metrics.RecordExternalGiveUp()
		log.Error().
			Str("external_key", event.ExternalKey).
			Int64("version", event.NewVersion).
			Msg("external publish backlog full, event requires replay")
	}

	return nil
}

// Drained exposes the internal queue's low-water signal for backpressure
// pauses.
func (f *Fanout) Drained() <-chan struct{} {
	return f.queue.Drained()
}

func (f *Fanout) runExternal(ctx context.Context) {
	defer f.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-f.outbound:
			f.publishExternal(ctx, event)
		}
	}
}

func (f *Fanout) publishExternal(ctx context.Context, event models.ChangeEvent) {
	for round := 0; round < f.config.GiveUpAttempts; round++ {
		start := f.clock.Now()
		err := f.config.Policy.Do(ctx, f.clock, func() error {
			return f.external.Publish(ctx, event)
		})
		f.metrics.RecordPublish("external", err == nil, f.clock.Since(start))

		if err == nil {
			return
		}
		if ctx.Err() != nil {
			return
		}

		log.Warn().
			Err(err).
			Str("external_key", event.ExternalKey).
			Int64("version", event.NewVersion).
			Int("round", round+1).
			Msg("external publish round failed, backing off")

		select {
		case <-ctx.Done():
			return
		case <-f.clock.After(f.config.Policy.MaxDelay):
		}
	}

	// Past the give-up threshold this escalates to alerting, not data
	// loss: the journaled event remains replayable.
	f.metrics.RecordExternalGiveUp()
	log.Error().
		Str("external_key", event.ExternalKey).
		Int64("version", event.NewVersion).
		Int("rounds", f.config.GiveUpAttempts).
		Msg("giving up on external publish, event requires replay")
}
