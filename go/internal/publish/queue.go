package publish

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/jstats/matchlens/go/internal/models"
)

// ErrQueueFull signals backpressure: the caller must pause admitting new
// reconciliation cycles for the shard until the queue drains below its
// low-water mark.
var ErrQueueFull = errors.New("internal event queue full")

// ErrQueueClosed is returned when publishing to a stopped queue.
var ErrQueueClosed = errors.New("internal event queue closed")

// Subscriber consumes change events from the internal queue. Redelivery is
// possible, so handlers must be idempotent on (key, version).
type Subscriber struct {
	Name    string
	Handler func(ctx context.Context, event models.ChangeEvent) error
}

// Queue is the in-process leg of the event publisher: a bounded FIFO with
// explicit backpressure. A single dispatch goroutine forwards each event to
// every subscriber in enqueue order, which preserves per-key ordering
// without any per-key locking.
type Queue struct {
	capacity int
	lowWater int

	mu      sync.Mutex
	buf     []models.ChangeEvent
	drained chan struct{}
	pending chan struct{}
	closed  bool

	subs []Subscriber
}

type QueueConfig struct {
	Capacity int
	LowWater int
}

func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		Capacity: 1024,
		LowWater: 256,
	}
}

func NewQueue(cfg QueueConfig) *Queue {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultQueueConfig().Capacity
	}
	if cfg.LowWater <= 0 || cfg.LowWater >= cfg.Capacity {
		cfg.LowWater = cfg.Capacity / 4
	}
	// lowWater of zero would leave Drained permanently blocked
	if cfg.LowWater < 1 {
		cfg.LowWater = 1
	}
	return &Queue{
		capacity: cfg.Capacity,
		lowWater: cfg.LowWater,
		drained:  make(chan struct{}),
		pending:  make(chan struct{}, 1),
	}
}

// Subscribe registers a consumer. Must be called before Run.
func (q *Queue) Subscribe(sub Subscriber) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.subs = append(q.subs, sub)
}

// TryPublish enqueues without blocking. Returns ErrQueueFull at capacity.
func (q *Queue) TryPublish(event models.ChangeEvent) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if len(q.buf) >= q.capacity {
		return ErrQueueFull
	}

	q.buf = append(q.buf, event)
	select {
	case q.pending <- struct{}{}:
	default:
	}
	return nil
}

// Drained returns a channel that is closed once the queue next falls below
// its low-water mark. Callers blocked on ErrQueueFull wait on it before
// resuming admission.
func (q *Queue) Drained() <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.buf) < q.lowWater {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return q.drained
}

// Depth returns the number of queued events.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

// Run dispatches queued events to subscribers until the context ends.
func (q *Queue) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			q.mu.Lock()
			q.closed = true
			q.mu.Unlock()
			return ctx.Err()
		case <-q.pending:
		}

		for {
			event, ok := q.pop()
			if !ok {
				break
			}
			q.dispatch(ctx, event)
		}
	}
}

func (q *Queue) pop() (models.ChangeEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.buf) == 0 {
		return models.ChangeEvent{}, false
	}

	event := q.buf[0]
	q.buf = q.buf[1:]

	// crossing the low-water mark releases everyone paused on backpressure
	if len(q.buf) == q.lowWater-1 {
		close(q.drained)
		q.drained = make(chan struct{})
	}
	return event, true
}

func (q *Queue) dispatch(ctx context.Context, event models.ChangeEvent) {
	q.mu.Lock()
	subs := q.subs
	q.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Handler(ctx, event); err != nil {
			log.Error().
				Err(err).
				Str("subscriber", sub.Name).
				Str("external_key", event.ExternalKey).
				Int64("version", event.NewVersion).
				Msg("subscriber failed to handle event")
		}
	}
}
