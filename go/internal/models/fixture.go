package models

import (
	"time"
)

// FixtureStatus defines the lifecycle status of a fixture.
type FixtureStatus string

const (
	FixtureStatusScheduled FixtureStatus = "SCHEDULED"
	FixtureStatusInPlay    FixtureStatus = "IN_PLAY"
	FixtureStatusFinished  FixtureStatus = "FINISHED"
	FixtureStatusPostponed FixtureStatus = "POSTPONED"
	FixtureStatusCancelled FixtureStatus = "CANCELLED"
)

// statusRank orders the normal forward progression of a fixture.
// Postponed and Cancelled sit outside the rank ladder and are handled
// explicitly by CanTransition.
var statusRank = map[FixtureStatus]int{
	FixtureStatusScheduled: 0,
	FixtureStatusInPlay:    1,
	FixtureStatusFinished:  2,
}

// CanTransition reports whether a fixture may move from one status to
// another. Transitions are monotonic: a fixture never moves backwards on
// the Scheduled -> InPlay -> Finished ladder. Postponed -> Scheduled is an
// allowed re-activation. Leaving Finished requires an explicit correction.
func CanTransition(from, to FixtureStatus, correction bool) bool {
	if from == to {
		return true
	}
	if correction {
		return true
	}
	if from == FixtureStatusFinished {
		return false
	}
	if from == FixtureStatusPostponed {
		return to == FixtureStatusScheduled || to == FixtureStatusCancelled
	}
	if to == FixtureStatusPostponed || to == FixtureStatusCancelled {
		return true
	}
	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	toRank, ok := statusRank[to]
	if !ok {
		return false
	}
	return toRank > fromRank
}

// Score holds a full-time result. Only populated once a fixture finishes.
type Score struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

// Fixture is the canonical stored state of one tracked match.
// Version increases strictly on every accepted mutation.
type Fixture struct {
	ExternalKey string        `json:"external_key"`
	Competition string        `json:"competition"`
	Status      FixtureStatus `json:"status"`
	HomeTeam    string        `json:"home_team"`
	AwayTeam    string        `json:"away_team"`
	Kickoff     time.Time     `json:"kickoff"`
	Score       *Score        `json:"score,omitempty"`
	Version     int64         `json:"version"`
	ProviderTS  time.Time     `json:"provider_ts"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// RawRecord is one provider record as distilled by the fetcher. It is never
// persisted as-is; only its reconciled effect survives a cycle.
type RawRecord struct {
	ExternalKey string        `json:"external_key"`
	Competition string        `json:"competition"`
	Status      FixtureStatus `json:"status"`
	HomeTeam    string        `json:"home_team"`
	AwayTeam    string        `json:"away_team"`
	Kickoff     time.Time     `json:"kickoff"`
	Score       *Score        `json:"score,omitempty"`

	// ProviderTS is the provider-reported last-updated instant; ReceivedAt is
	// the wall-clock receipt time used as a fallback when the provider omits
	// it. FetchOrder breaks ties within one batch.
	ProviderTS time.Time `json:"provider_ts"`
	ReceivedAt time.Time `json:"received_at"`
	FetchOrder int       `json:"-"`

	// Correction marks an explicit upstream correction that is allowed to
	// rewind a Finished fixture.
	Correction bool `json:"correction,omitempty"`
}

// EffectiveTS returns the timestamp used for newer-wins comparisons.
func (r RawRecord) EffectiveTS() time.Time {
	if !r.ProviderTS.IsZero() {
		return r.ProviderTS
	}
	return r.ReceivedAt
}
