package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(ctx context.Context) error { return s.err }

type stubTracker struct {
	last time.Time
}

func (s stubTracker) LastSuccessfulFetch() time.Time { return s.last }

type stubConn struct {
	up bool
}

func (s stubConn) Connected() bool { return s.up }

func TestCheckHealthy(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC))
	checker := NewChecker(stubPinger{}, stubTracker{last: clock.Now().Add(-time.Minute)}, stubConn{up: true}, clock, 3*time.Minute)

	status := checker.Check(context.Background())

	assert.True(t, status.Healthy)
	assert.True(t, status.StoreConnected)
	assert.True(t, status.NATSConnected)
	assert.Empty(t, status.Errors)
}

func TestCheckStoreDown(t *testing.T) {
	clock := clockwork.NewFakeClock()
	checker := NewChecker(stubPinger{err: errors.New("connection refused")}, stubTracker{last: clock.Now()}, stubConn{up: true}, clock, time.Minute)

	status := checker.Check(context.Background())

	assert.False(t, status.Healthy)
	assert.False(t, status.StoreConnected)
	assert.NotEmpty(t, status.Errors)
}

func TestCheckStaleFetchCycle(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC))
	checker := NewChecker(stubPinger{}, stubTracker{last: clock.Now().Add(-time.Hour)}, stubConn{up: true}, clock, 3*time.Minute)

	status := checker.Check(context.Background())

	assert.False(t, status.Healthy)
	assert.True(t, status.StoreConnected)
}

func TestCheckNoFetchYet(t *testing.T) {
	clock := clockwork.NewFakeClock()
	checker := NewChecker(stubPinger{}, stubTracker{}, nil, clock, time.Minute)

	status := checker.Check(context.Background())

	assert.False(t, status.Healthy)
	assert.False(t, status.NATSConnected)
}

func TestReadyOnlyNeedsStore(t *testing.T) {
	clock := clockwork.NewFakeClock()

	assert.NoError(t, NewChecker(stubPinger{}, stubTracker{}, nil, clock, time.Minute).Ready(context.Background()))
	assert.Error(t, NewChecker(stubPinger{err: errors.New("down")}, stubTracker{}, nil, clock, time.Minute).Ready(context.Background()))
}
