package ingest

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/jstats/matchlens/go/clients/footballdata"
	"github.com/jstats/matchlens/go/internal/models"
)

// Window bounds one fetch: a competition code plus an optional date range.
type Window struct {
	Competition string
	From        time.Time
	To          time.Time
}

// Batch is one provider response snapshot. It lives only long enough for
// the reconciler to consume it.
type Batch struct {
	Window    Window
	Records   []models.RawRecord
	Dropped   int
	FetchedAt time.Time
}

// Fetcher pulls raw provider records. Implementations return the client
// error taxonomy: RateLimitedError, UnavailableError, MalformedError.
type Fetcher interface {
	Fetch(ctx context.Context, window Window) (*Batch, error)
}

// MatchesClient is what the fetcher needs from the football-data.org client.
type MatchesClient interface {
	GetMatches(ctx context.Context, code string, dateFrom, dateTo time.Time) (*footballdata.MatchesResponse, error)
}

// FootballDataFetcher adapts football-data.org match payloads into raw
// records. Individual records that fail to decode are dropped and counted;
// only an undecodable envelope fails the batch.
type FootballDataFetcher struct {
	client MatchesClient
	clock  clockwork.Clock
}

func NewFootballDataFetcher(client MatchesClient, clock clockwork.Clock) *FootballDataFetcher {
	return &FootballDataFetcher{
		client: client,
		clock:  clock,
	}
}

func (f *FootballDataFetcher) Fetch(ctx context.Context, window Window) (*Batch, error) {
	resp, err := f.client.GetMatches(ctx, window.Competition, window.From, window.To)
	if err != nil {
		return nil, err
	}

	now := f.clock.Now().UTC()
	batch := &Batch{
		Window:    window,
		FetchedAt: now,
	}

	for i, raw := range resp.Matches {
		record, err := decodeMatch(raw, window.Competition, now, i)
		if err != nil {
			batch.Dropped++
			log.Warn().
				Err(err).
				Str("competition", window.Competition).
				Int("index", i).
				Msg("dropping malformed match record")
			continue
		}
		batch.Records = append(batch.Records, record)
	}

	log.Debug().
		Str("competition", window.Competition).
		Int("records", len(batch.Records)).
		Int("dropped", batch.Dropped).
		Msg("fetched provider batch")

	return batch, nil
}

func decodeMatch(raw json.RawMessage, competition string, receivedAt time.Time, order int) (models.RawRecord, error) {
	var m footballdata.Match
	if err := json.Unmarshal(raw, &m); err != nil {
		return models.RawRecord{}, &footballdata.MalformedError{Reason: err.Error()}
	}

	if m.ID == 0 {
		return models.RawRecord{}, &footballdata.MalformedError{Reason: "match without id"}
	}
	if m.HomeTeam.Name == "" || m.AwayTeam.Name == "" {
		return models.RawRecord{}, &footballdata.MalformedError{Reason: "match without participants"}
	}

	status, ok := mapStatus(m.Status)
	if !ok {
		return models.RawRecord{}, &footballdata.MalformedError{Reason: "unknown match status " + m.Status}
	}

	record := models.RawRecord{
		ExternalKey: matchKey(m.ID),
		Competition: competition,
		Status:      status,
		HomeTeam:    m.HomeTeam.Name,
		AwayTeam:    m.AwayTeam.Name,
		Kickoff:     m.UTCDate,
		ProviderTS:  m.LastUpdated,
		ReceivedAt:  receivedAt,
		FetchOrder:  order,
	}

	if status == models.FixtureStatusFinished && m.Score.FullTime.Home != nil && m.Score.FullTime.Away != nil {
		record.Score = &models.Score{
			Home: *m.Score.FullTime.Home,
			Away: *m.Score.FullTime.Away,
		}
	}

	return record, nil
}

// mapStatus folds the provider's status vocabulary onto ours. TIMED is a
// scheduled match with a confirmed kickoff; PAUSED is half time.
func mapStatus(s string) (models.FixtureStatus, bool) {
	switch s {
	case "SCHEDULED", "TIMED":
		return models.FixtureStatusScheduled, true
	case "IN_PLAY", "PAUSED", "LIVE":
		return models.FixtureStatusInPlay, true
	case "FINISHED", "AWARDED":
		return models.FixtureStatusFinished, true
	case "POSTPONED", "SUSPENDED":
		return models.FixtureStatusPostponed, true
	case "CANCELLED":
		return models.FixtureStatusCancelled, true
	default:
		return "", false
	}
}

func matchKey(id int64) string {
	return "M" + strconv.FormatInt(id, 10)
}
