package reconcile

import (
	"github.com/jstats/matchlens/go/internal/models"
)

// OutcomeKind classifies the result of reconciling one incoming record
// against stored state.
type OutcomeKind string

const (
	// OutcomeNoChange means the incoming record's derived state already
	// matches the store, or it is stale relative to the stored state.
	OutcomeNoChange OutcomeKind = "NO_CHANGE"
	// OutcomeCreate means no fixture exists yet for this key.
	OutcomeCreate OutcomeKind = "CREATE"
	// OutcomeUpdate means the incoming record is newer and differs.
	OutcomeUpdate OutcomeKind = "UPDATE"
	// OutcomeRejected means the incoming record asked for a status
	// transition the monotonic policy forbids without a correction flag.
	OutcomeRejected OutcomeKind = "REJECTED"
)

// Outcome is a proposed mutation. Next is the state the coordination layer
// should commit under the entity's lease; it is nil for NoChange and
// Rejected outcomes.
type Outcome struct {
	Kind OutcomeKind
	Diff models.FixtureDiff
	Next *models.Fixture
}

// Reconcile diffs one incoming record against the current stored state.
// It proposes a mutation but never touches the store itself; the
// coordination layer applies Next under the key's lease with an optimistic
// version check.
func Reconcile(current *models.Fixture, incoming models.RawRecord) Outcome {
	if current == nil {
		next := fixtureFromRecord(incoming)
		next.Version = 1
		return Outcome{
			Kind: OutcomeCreate,
			Diff: fullDiff(next),
			Next: next,
		}
	}

	// Newer-wins: the provider timestamp decides, receipt time is the
	// fallback when the provider omits one.
	if incoming.EffectiveTS().Before(current.ProviderTS) {
		return Outcome{Kind: OutcomeNoChange}
	}

	diff := computeDiff(current, incoming)
	if diff.Empty() {
		return Outcome{Kind: OutcomeNoChange}
	}

	if diff.Status != nil && !models.CanTransition(current.Status, *diff.Status, incoming.Correction) {
		return Outcome{Kind: OutcomeRejected, Diff: diff}
	}

	next := *current
	if diff.Status != nil {
		next.Status = *diff.Status
	}
	if diff.HomeTeam != nil {
		next.HomeTeam = *diff.HomeTeam
	}
	if diff.AwayTeam != nil {
		next.AwayTeam = *diff.AwayTeam
	}
	if diff.Kickoff != nil {
		next.Kickoff = *diff.Kickoff
	}
	if diff.Score != nil {
		score := *diff.Score
		next.Score = &score
	}
	next.Version = current.Version + 1
	next.ProviderTS = incoming.EffectiveTS()

	return Outcome{
		Kind: OutcomeUpdate,
		Diff: diff,
		Next: &next,
	}
}

// CollapseBatch reduces a batch to at most one record per key: the record
// with the latest provider timestamp wins, and equal timestamps favor the
// one fetched later. Key order of first appearance is preserved so cycles
// stay deterministic.
func CollapseBatch(records []models.RawRecord) []models.RawRecord {
	winners := make(map[string]models.RawRecord, len(records))
	var order []string

	for _, r := range records {
		prev, seen := winners[r.ExternalKey]
		if !seen {
			winners[r.ExternalKey] = r
			order = append(order, r.ExternalKey)
			continue
		}
		if beats(r, prev) {
			winners[r.ExternalKey] = r
		}
	}

	collapsed := make([]models.RawRecord, 0, len(order))
	for _, key := range order {
		collapsed = append(collapsed, winners[key])
	}
	return collapsed
}

func beats(candidate, incumbent models.RawRecord) bool {
	ct, it := candidate.EffectiveTS(), incumbent.EffectiveTS()
	if ct.After(it) {
		return true
	}
	if ct.Equal(it) {
		return candidate.FetchOrder > incumbent.FetchOrder
	}
	return false
}

func computeDiff(current *models.Fixture, incoming models.RawRecord) models.FixtureDiff {
	var diff models.FixtureDiff

	if incoming.Status != current.Status {
		status := incoming.Status
		diff.Status = &status
	}
	if incoming.HomeTeam != "" && incoming.HomeTeam != current.HomeTeam {
		home := incoming.HomeTeam
		diff.HomeTeam = &home
	}
	if incoming.AwayTeam != "" && incoming.AwayTeam != current.AwayTeam {
		away := incoming.AwayTeam
		diff.AwayTeam = &away
	}
	if !incoming.Kickoff.IsZero() && !incoming.Kickoff.Equal(current.Kickoff) {
		kickoff := incoming.Kickoff
		diff.Kickoff = &kickoff
	}
	if incoming.Score != nil && (current.Score == nil || *incoming.Score != *current.Score) {
		score := *incoming.Score
		diff.Score = &score
	}

	return diff
}

func fixtureFromRecord(r models.RawRecord) *models.Fixture {
	f := &models.Fixture{
		ExternalKey: r.ExternalKey,
		Competition: r.Competition,
		Status:      r.Status,
		HomeTeam:    r.HomeTeam,
		AwayTeam:    r.AwayTeam,
		Kickoff:     r.Kickoff,
		ProviderTS:  r.EffectiveTS(),
	}
	if r.Score != nil {
		score := *r.Score
		f.Score = &score
	}
	return f
}

func fullDiff(f *models.Fixture) models.FixtureDiff {
	status := f.Status
	home := f.HomeTeam
	away := f.AwayTeam
	kickoff := f.Kickoff

	diff := models.FixtureDiff{
		Status:   &status,
		HomeTeam: &home,
		AwayTeam: &away,
		Kickoff:  &kickoff,
	}
	if f.Score != nil {
		score := *f.Score
		diff.Score = &score
	}
	return diff
}
