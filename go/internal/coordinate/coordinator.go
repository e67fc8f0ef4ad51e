package coordinate

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/jstats/matchlens/go/internal/fixture"
	"github.com/jstats/matchlens/go/internal/models"
	"github.com/jstats/matchlens/go/internal/publish"
	"github.com/jstats/matchlens/go/internal/reconcile"
)

// FixtureStore defines what the coordinator needs from the fixture store:
// reads plus the transactional commit contract (read version, compare,
// write version+1).
type FixtureStore interface {
	Get(ctx context.Context, key string) (*models.Fixture, error)
	Insert(ctx context.Context, f *models.Fixture, event models.ChangeEvent) error
	CommitUpdate(ctx context.Context, f *models.Fixture, expectedVersion int64, event models.ChangeEvent) error
}

// EventSink is the publisher fan-out the coordinator feeds after a commit.
type EventSink interface {
	Publish(ctx context.Context, event models.ChangeEvent) error
	Drained() <-chan struct{}
}

// CycleReport is the structured outcome of one reconciliation cycle for one
// entity. Every failure produces a report, never an unhandled fault.
type CycleReport struct {
	Key        string
	Outcome    reconcile.OutcomeKind
	ErrKind    ErrorKind
	Err        error
	Retries    int
	NewVersion int64
}

type Config struct {
	LeaseTTL         time.Duration
	MaxCommitRetries int
}

func DefaultConfig() Config {
	return Config{
		LeaseTTL:         30 * time.Second,
		MaxCommitRetries: 3,
	}
}

// Coordinator serializes all mutating operations per entity key: lease,
// reconcile, optimistically commit, publish. The reconciler proposes; only
// the coordinator writes.
type Coordinator struct {
	store  FixtureStore
	sink   EventSink
	leases *LeaseTable
	clock  clockwork.Clock
	config Config
}

func NewCoordinator(store FixtureStore, sink EventSink, leases *LeaseTable, clock clockwork.Clock, cfg Config) *Coordinator {
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = DefaultConfig().LeaseTTL
	}
	if cfg.MaxCommitRetries <= 0 {
		cfg.MaxCommitRetries = DefaultConfig().MaxCommitRetries
	}
	return &Coordinator{
		store:  store,
		sink:   sink,
		leases: leases,
		clock:  clock,
		config: cfg,
	}
}

// ProcessRecord runs one fetch-already-done reconcile-commit-publish cycle
// for a single record. The cycle is cancellable up to the commit; once the
// store accepts the new version the change event is always handed to the
// sink.
func (c *Coordinator) ProcessRecord(ctx context.Context, record models.RawRecord) CycleReport {
	report := CycleReport{Key: record.ExternalKey}

	lease, err := c.leases.Acquire(record.ExternalKey, c.config.LeaseTTL)
	if err != nil {
		// another unit owns this key right now; defer to its cycle
		report.ErrKind = ErrKindLeaseHeld
		report.Err = err
		return report
	}
	defer c.leases.Release(lease)

	for attempt := 0; attempt <= c.config.MaxCommitRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			report.ErrKind = ErrKindStorageFailure
			report.Err = err
			return report
		}

		report.Retries = attempt

		current, err := c.store.Get(ctx, record.ExternalKey)
		if err != nil && !errors.Is(err, fixture.ErrNotFound) {
			report.ErrKind = ErrKindStorageFailure
			report.Err = err
			return report
		}

		outcome := reconcile.Reconcile(current, record)
		report.Outcome = outcome.Kind

		switch outcome.Kind {
		case reconcile.OutcomeNoChange:
			return report
		case reconcile.OutcomeRejected:
			log.Warn().
				Str("external_key", record.ExternalKey).
				Str("from", string(currentStatus(current))).
				Str("to", string(record.Status)).
				Msg("rejected non-monotonic status transition without correction flag")
			return report
		}

		event := c.buildEvent(current, outcome)

		if outcome.Kind == reconcile.OutcomeCreate {
			err = c.store.Insert(ctx, outcome.Next, event)
		} else {
			err = c.store.CommitUpdate(ctx, outcome.Next, current.Version, event)
		}

		if errors.Is(err, fixture.ErrConflict) {
			// another writer advanced the version between our read and
			// commit; re-read fresh state and reconcile again
			log.Debug().
				Str("external_key", record.ExternalKey).
				Int("attempt", attempt+1).
				Msg("optimistic commit lost, retrying with fresh state")
			continue
		}
		if err != nil {
			report.ErrKind = ErrKindStorageFailure
			report.Err = err
			return report
		}

		report.NewVersion = outcome.Next.Version
		c.publishCommitted(ctx, event)
		return report
	}

	report.Outcome = ""
	report.ErrKind = ErrKindPersistentConflict
	report.Err = ErrPersistentConflict
	return report
}

// publishCommitted hands a committed event to the sink. QueueFull is
// backpressure, not failure: wait for the low-water drain and try again.
// The event is journaled with the fixture, so cancellation here loses
// nothing.
func (c *Coordinator) publishCommitted(ctx context.Context, event models.ChangeEvent) {
	for {
		err := c.sink.Publish(ctx, event)
		if err == nil {
			return
		}
		if !errors.Is(err, publish.ErrQueueFull) {
			log.Error().
				Err(err).
				Str("external_key", event.ExternalKey).
				Int64("version", event.NewVersion).
				Msg("failed to hand committed event to publisher")
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-c.sink.Drained():
		}
	}
}

func (c *Coordinator) buildEvent(current *models.Fixture, outcome reconcile.Outcome) models.ChangeEvent {
	event := models.ChangeEvent{
		ID:          uuid.New(),
		ExternalKey: outcome.Next.ExternalKey,
		Competition: outcome.Next.Competition,
		NewVersion:  outcome.Next.Version,
		NewStatus:   outcome.Next.Status,
		Diff:        outcome.Diff,
		ProviderTS:  outcome.Next.ProviderTS,
		OccurredAt:  c.clock.Now().UTC(),
	}
	if current != nil {
		event.PrevVersion = current.Version
		event.PrevStatus = current.Status
	}
	outcome.Next.UpdatedAt = event.OccurredAt
	return event
}

func currentStatus(f *models.Fixture) models.FixtureStatus {
	if f == nil {
		return ""
	}
	return f.Status
}
