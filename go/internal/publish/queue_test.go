package publish

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jstats/matchlens/go/internal/models"
)

func queueEvent(key string, version int64) models.ChangeEvent {
	return models.ChangeEvent{
		ID:          uuid.New(),
		ExternalKey: key,
		Competition: "PL",
		NewVersion:  version,
		NewStatus:   models.FixtureStatusScheduled,
	}
}

func TestQueueFullAndDrainedSignal(t *testing.T) {
	q := NewQueue(QueueConfig{Capacity: 4, LowWater: 2})

	for i := int64(1); i <= 4; i++ {
		require.NoError(t, q.TryPublish(queueEvent("M1", i)))
	}
	assert.ErrorIs(t, q.TryPublish(queueEvent("M1", 5)), ErrQueueFull)
	assert.Equal(t, 4, q.Depth())

	drained := q.Drained()
	select {
	case <-drained:
		t.Fatal("queue above low water must not signal drained")
	default:
	}

	// popping down to low water - 1 releases waiters
	q.pop()
	q.pop()
	select {
	case <-drained:
		t.Fatal("drained fired before crossing the low-water mark")
	default:
	}
	q.pop()
	select {
	case <-drained:
	case <-time.After(time.Second):
		t.Fatal("drained did not fire after crossing the low-water mark")
	}

	// below low water the signal is immediate
	select {
	case <-q.Drained():
	default:
		t.Fatal("queue below low water must signal drained immediately")
	}
}

func TestQueueTinyCapacityStillDrains(t *testing.T) {
	q := NewQueue(QueueConfig{Capacity: 2})

	require.NoError(t, q.TryPublish(queueEvent("M1", 1)))
	require.NoError(t, q.TryPublish(queueEvent("M1", 2)))
	assert.ErrorIs(t, q.TryPublish(queueEvent("M1", 3)), ErrQueueFull)

	drained := q.Drained()
	q.pop()
	q.pop()
	select {
	case <-drained:
	case <-time.After(time.Second):
		t.Fatal("drained did not fire after emptying a tiny queue")
	}

	select {
	case <-q.Drained():
	default:
		t.Fatal("empty queue must signal drained immediately")
	}
}

func TestQueueDispatchPreservesEnqueueOrder(t *testing.T) {
	q := NewQueue(QueueConfig{Capacity: 16, LowWater: 4})

	var mu sync.Mutex
	var got []int64
	q.Subscribe(Subscriber{
		Name: "recorder",
		Handler: func(ctx context.Context, event models.ChangeEvent) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, event.NewVersion)
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		q.Run(ctx)
	}()

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, q.TryPublish(queueEvent("M1", i)))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 5
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, got)
	mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("queue did not stop on context cancel")
	}
	assert.ErrorIs(t, q.TryPublish(queueEvent("M1", 6)), ErrQueueClosed)
}

func TestQueueFailingSubscriberDoesNotStarveOthers(t *testing.T) {
	q := NewQueue(QueueConfig{Capacity: 16, LowWater: 4})

	q.Subscribe(Subscriber{
		Name: "broken",
		Handler: func(ctx context.Context, event models.ChangeEvent) error {
			return assert.AnError
		},
	})

	var mu sync.Mutex
	var got []string
	q.Subscribe(Subscriber{
		Name: "healthy",
		Handler: func(ctx context.Context, event models.ChangeEvent) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, event.ExternalKey)
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	require.NoError(t, q.TryPublish(queueEvent("M1", 1)))
	require.NoError(t, q.TryPublish(queueEvent("M2", 1)))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"M1", "M2"}, got)
	mu.Unlock()
}
