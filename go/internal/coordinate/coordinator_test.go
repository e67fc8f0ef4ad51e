package coordinate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jstats/matchlens/go/internal/fixture"
	"github.com/jstats/matchlens/go/internal/models"
	"github.com/jstats/matchlens/go/internal/publish"
	"github.com/jstats/matchlens/go/internal/reconcile"
)

// memStore is an in-memory FixtureStore with the same optimistic commit
// contract as the Postgres repository.
type memStore struct {
	mu       sync.Mutex
	fixtures map[string]models.Fixture
	events   []models.ChangeEvent

	// beforeCommit runs under the store lock ahead of each CommitUpdate,
	// letting tests interleave a racing writer.
	beforeCommit func(s *memStore)
}

func newMemStore() *memStore {
	return &memStore{fixtures: make(map[string]models.Fixture)}
}

func (s *memStore) Get(ctx context.Context, key string) (*models.Fixture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.fixtures[key]
	if !ok {
		return nil, fixture.ErrNotFound
	}
	copied := f
	return &copied, nil
}

func (s *memStore) Insert(ctx context.Context, f *models.Fixture, event models.ChangeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.fixtures[f.ExternalKey]; ok {
		return fixture.ErrConflict
	}
	s.fixtures[f.ExternalKey] = *f
	s.events = append(s.events, event)
	return nil
}

func (s *memStore) CommitUpdate(ctx context.Context, f *models.Fixture, expectedVersion int64, event models.ChangeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.beforeCommit != nil {
		hook := s.beforeCommit
		s.beforeCommit = nil
		hook(s)
	}
	stored, ok := s.fixtures[f.ExternalKey]
	if !ok || stored.Version != expectedVersion {
		return fixture.ErrConflict
	}
	s.fixtures[f.ExternalKey] = *f
	s.events = append(s.events, event)
	return nil
}

type memSink struct {
	mu       sync.Mutex
	events   []models.ChangeEvent
	fullLeft int
}

func (s *memSink) Publish(ctx context.Context, event models.ChangeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fullLeft > 0 {
		s.fullLeft--
		return publish.ErrQueueFull
	}
	s.events = append(s.events, event)
	return nil
}

func (s *memSink) Drained() <-chan struct{} {
	drained := make(chan struct{})
	close(drained)
	return drained
}

func (s *memSink) published() []models.ChangeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ChangeEvent(nil), s.events...)
}

func testRecord() models.RawRecord {
	return models.RawRecord{
		ExternalKey: "M123",
		Competition: "PL",
		Status:      models.FixtureStatusScheduled,
		HomeTeam:    "Arsenal FC",
		AwayTeam:    "Chelsea FC",
		Kickoff:     time.Date(2026, 9, 12, 15, 0, 0, 0, time.UTC),
		ProviderTS:  time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
		ReceivedAt:  time.Date(2026, 9, 1, 10, 0, 1, 0, time.UTC),
	}
}

func newTestCoordinator(store FixtureStore, sink EventSink) *Coordinator {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC))
	return NewCoordinator(store, sink, NewLeaseTable(clock), clock, DefaultConfig())
}

func TestProcessRecordCreateNoChangeUpdate(t *testing.T) {
	store := newMemStore()
	sink := &memSink{}
	c := newTestCoordinator(store, sink)
	ctx := context.Background()

	// create
	report := c.ProcessRecord(ctx, testRecord())
	require.Equal(t, ErrKindNone, report.ErrKind)
	assert.Equal(t, reconcile.OutcomeCreate, report.Outcome)
	assert.Equal(t, int64(1), report.NewVersion)

	// identical data is a no-op
	report = c.ProcessRecord(ctx, testRecord())
	require.Equal(t, ErrKindNone, report.ErrKind)
	assert.Equal(t, reconcile.OutcomeNoChange, report.Outcome)
	assert.Zero(t, report.NewVersion)

	// newer finished record commits version 2
	finished := testRecord()
	finished.Status = models.FixtureStatusFinished
	finished.Score = &models.Score{Home: 2, Away: 0}
	finished.ProviderTS = finished.ProviderTS.Add(4 * time.Hour)

	report = c.ProcessRecord(ctx, finished)
	require.Equal(t, ErrKindNone, report.ErrKind)
	assert.Equal(t, reconcile.OutcomeUpdate, report.Outcome)
	assert.Equal(t, int64(2), report.NewVersion)

	events := sink.published()
	require.Len(t, events, 2)
	assert.Equal(t, int64(1), events[0].NewVersion)
	assert.Equal(t, models.FixtureStatusScheduled, events[1].PrevStatus)
	assert.Equal(t, models.FixtureStatusFinished, events[1].NewStatus)
	assert.Equal(t, int64(1), events[1].PrevVersion)
	assert.Equal(t, int64(2), events[1].NewVersion)
}

func TestReplayedJournalMatchesStoredFixture(t *testing.T) {
	store := newMemStore()
	sink := &memSink{}
	c := newTestCoordinator(store, sink)
	ctx := context.Background()

	require.Equal(t, ErrKindNone, c.ProcessRecord(ctx, testRecord()).ErrKind)

	finished := testRecord()
	finished.Status = models.FixtureStatusFinished
	finished.Score = &models.Score{Home: 2, Away: 0}
	finished.ProviderTS = finished.ProviderTS.Add(4 * time.Hour)
	require.Equal(t, ErrKindNone, c.ProcessRecord(ctx, finished).ErrKind)

	stored, err := store.Get(ctx, "M123")
	require.NoError(t, err)

	store.mu.Lock()
	events := append([]models.ChangeEvent(nil), store.events...)
	store.mu.Unlock()
	require.Len(t, events, 2)

	// folding the journal from the zero state must reproduce the stored
	// record exactly, provider timestamp included
	rebuilt := models.Replay(events)
	assert.Equal(t, *stored, rebuilt)
	assert.Equal(t, stored.ProviderTS, rebuilt.ProviderTS)
}

func TestProcessRecordRetriesLostCommit(t *testing.T) {
	store := newMemStore()
	sink := &memSink{}
	c := newTestCoordinator(store, sink)
	ctx := context.Background()

	require.Equal(t, ErrKindNone, c.ProcessRecord(ctx, testRecord()).ErrKind)

	// a racing writer advances the fixture between our read and commit
	store.beforeCommit = func(s *memStore) {
		f := s.fixtures["M123"]
		f.Status = models.FixtureStatusInPlay
		f.Version = 2
		f.ProviderTS = f.ProviderTS.Add(time.Hour)
		s.fixtures["M123"] = f
	}

	finished := testRecord()
	finished.Status = models.FixtureStatusFinished
	finished.Score = &models.Score{Home: 1, Away: 0}
	finished.ProviderTS = finished.ProviderTS.Add(4 * time.Hour)

	report := c.ProcessRecord(ctx, finished)
	require.Equal(t, ErrKindNone, report.ErrKind)
	assert.Equal(t, reconcile.OutcomeUpdate, report.Outcome)
	assert.Equal(t, 1, report.Retries)
	assert.Equal(t, int64(3), report.NewVersion)

	stored, err := store.Get(ctx, "M123")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stored.Version)
	assert.Equal(t, models.FixtureStatusFinished, stored.Status)
}

// alwaysConflict loses every optimistic check without ever advancing state.
type alwaysConflict struct {
	*memStore
}

func (s *alwaysConflict) CommitUpdate(ctx context.Context, f *models.Fixture, expectedVersion int64, event models.ChangeEvent) error {
	return fixture.ErrConflict
}

func TestProcessRecordPersistentConflict(t *testing.T) {
	base := newMemStore()
	sink := &memSink{}
	c := newTestCoordinator(&alwaysConflict{base}, sink)
	ctx := context.Background()

	require.Equal(t, ErrKindNone, c.ProcessRecord(ctx, testRecord()).ErrKind)

	update := testRecord()
	update.Status = models.FixtureStatusInPlay
	update.ProviderTS = update.ProviderTS.Add(time.Hour)

	report := c.ProcessRecord(ctx, update)
	assert.Equal(t, ErrKindPersistentConflict, report.ErrKind)
	assert.ErrorIs(t, report.Err, ErrPersistentConflict)
	assert.Equal(t, DefaultConfig().MaxCommitRetries, report.Retries)
}

func TestProcessRecordQueueFullBackpressure(t *testing.T) {
	store := newMemStore()
	sink := &memSink{fullLeft: 2}
	c := newTestCoordinator(store, sink)

	report := c.ProcessRecord(context.Background(), testRecord())
	require.Equal(t, ErrKindNone, report.ErrKind)
	assert.Equal(t, int64(1), report.NewVersion)

	// the committed event must land despite initial backpressure
	events := sink.published()
	require.Len(t, events, 1)
	assert.Equal(t, int64(1), events[0].NewVersion)
}

func TestConcurrentCyclesSameKeyCommitOnce(t *testing.T) {
	store := newMemStore()
	sink := &memSink{}
	c := newTestCoordinator(store, sink)

	const workers = 8
	reports := make([]CycleReport, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reports[i] = c.ProcessRecord(context.Background(), testRecord())
		}(i)
	}
	wg.Wait()

	creates := 0
	for _, r := range reports {
		switch {
		case r.ErrKind == ErrKindLeaseHeld:
			// lost the lease race, deferred to the holder's cycle
		case r.Outcome == reconcile.OutcomeCreate:
			creates++
		case r.Outcome == reconcile.OutcomeNoChange:
			// arrived after the winner committed
		default:
			t.Fatalf("unexpected report: %+v", r)
		}
	}

	assert.Equal(t, 1, creates, "exactly one concurrent cycle may commit")
	require.Len(t, sink.published(), 1)

	stored, err := store.Get(context.Background(), "M123")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version)
}

func TestProcessRecordLeaseHeld(t *testing.T) {
	store := newMemStore()
	sink := &memSink{}
	clock := clockwork.NewFakeClock()
	leases := NewLeaseTable(clock)
	c := NewCoordinator(store, sink, leases, clock, DefaultConfig())

	_, err := leases.Acquire("M123", time.Minute)
	require.NoError(t, err)

	report := c.ProcessRecord(context.Background(), testRecord())
	assert.Equal(t, ErrKindLeaseHeld, report.ErrKind)
	assert.ErrorIs(t, report.Err, ErrLeaseHeld)
	assert.Empty(t, sink.published())
}
