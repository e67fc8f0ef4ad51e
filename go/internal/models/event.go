package models

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// FixtureDiff captures the fields that changed in one accepted mutation.
// Nil pointers mean "unchanged". Applying a diff on top of the previous
// state reproduces the new state, so an event stream replayed from version
// zero rebuilds the stored record.
type FixtureDiff struct {
	Status   *FixtureStatus `json:"status,omitempty"`
	HomeTeam *string        `json:"home_team,omitempty"`
	AwayTeam *string        `json:"away_team,omitempty"`
	Kickoff  *time.Time     `json:"kickoff,omitempty"`
	Score    *Score         `json:"score,omitempty"`
}

// Empty reports whether the diff carries no field changes.
func (d FixtureDiff) Empty() bool {
	return d.Status == nil && d.HomeTeam == nil && d.AwayTeam == nil &&
		d.Kickoff == nil && d.Score == nil
}

// ChangeEvent is the immutable record of one accepted state transition.
// Consumers deduplicate on (ExternalKey, NewVersion).
type ChangeEvent struct {
	ID          uuid.UUID     `json:"id"`
	ExternalKey string        `json:"external_key"`
	Competition string        `json:"competition"`
	PrevVersion int64         `json:"prev_version"`
	NewVersion  int64         `json:"new_version"`
	PrevStatus  FixtureStatus `json:"prev_status"`
	NewStatus   FixtureStatus `json:"new_status"`
	Diff        FixtureDiff   `json:"diff"`
	// ProviderTS is the committed state's provider timestamp. Replay needs
	// it so a rebuilt fixture keeps its newer-wins baseline.
	ProviderTS time.Time `json:"provider_ts"`
	OccurredAt time.Time `json:"occurred_at"`
}

// DedupID returns the identity downstream consumers key idempotency on.
// It doubles as the JetStream message ID for duplicate detection.
func (e ChangeEvent) DedupID() string {
	return e.ExternalKey + ":" + strconv.FormatInt(e.NewVersion, 10)
}

// Apply mutates a fixture in place with the event's diff and version
// bookkeeping. Used by replay and by conforming consumers.
func (e ChangeEvent) Apply(f *Fixture) {
	f.ExternalKey = e.ExternalKey
	if f.Competition == "" {
		f.Competition = e.Competition
	}
	if e.Diff.Status != nil {
		f.Status = *e.Diff.Status
	}
	if e.Diff.HomeTeam != nil {
		f.HomeTeam = *e.Diff.HomeTeam
	}
	if e.Diff.AwayTeam != nil {
		f.AwayTeam = *e.Diff.AwayTeam
	}
	if e.Diff.Kickoff != nil {
		f.Kickoff = *e.Diff.Kickoff
	}
	if e.Diff.Score != nil {
		score := *e.Diff.Score
		f.Score = &score
	}
	f.Version = e.NewVersion
	f.ProviderTS = e.ProviderTS
	f.UpdatedAt = e.OccurredAt
}

// Replay folds an ordered event sequence into a fixture starting from the
// zero state. Events must be sorted by NewVersion.
func Replay(events []ChangeEvent) Fixture {
	var f Fixture
	for _, e := range events {
		e.Apply(&f)
	}
	return f
}
