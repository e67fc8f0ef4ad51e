package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/jstats/matchlens/go/clients/footballdata"
)

// refetchGuard is how long a stored competition snapshot suppresses another
// remote call for the same code.
const refetchGuard = 30 * 24 * time.Hour

// RawIngestStore is what the raw ingest service needs from its repository.
type RawIngestStore interface {
	WasFetchedSince(ctx context.Context, source, endpoint, externalKey string, since time.Time) (bool, error)
	InsertRaw(ctx context.Context, source, endpoint, externalKey string, fetchedAt time.Time, payload []byte) (int64, bool, error)
}

// CompetitionClient is what the raw ingest service needs from the provider
// client.
type CompetitionClient interface {
	GetCompetition(ctx context.Context, code string) (*footballdata.Competition, []byte, error)
}

// RawIngestService fetches competition info on demand and archives the raw
// payload. A snapshot stored within the guard window short-circuits the
// remote call entirely.
type RawIngestService struct {
	repo   RawIngestStore
	client CompetitionClient
	clock  clockwork.Clock
}

func NewRawIngestService(repo RawIngestStore, client CompetitionClient, clock clockwork.Clock) *RawIngestService {
	return &RawIngestService{
		repo:   repo,
		client: client,
		clock:  clock,
	}
}

// StoreCompetitionRaw fetches and archives one competition. Returns the
// stored row ID, or stored=false when the snapshot was skipped (recently
// fetched or already present).
func (s *RawIngestService) StoreCompetitionRaw(ctx context.Context, code string) (int64, bool, error) {
	now := s.clock.Now().UTC()

	fetched, err := s.repo.WasFetchedSince(ctx, Source, CompetitionEndpoint, code, now.Add(-refetchGuard))
	if err != nil {
		return 0, false, err
	}
	if fetched {
		log.Debug().Str("competition", code).Msg("skipping recently fetched competition")
		return 0, false, nil
	}

	_, body, err := s.client.GetCompetition(ctx, code)
	if err != nil {
		return 0, false, fmt.Errorf("failed to fetch competition %s: %w", code, err)
	}

	id, stored, err := s.repo.InsertRaw(ctx, Source, CompetitionEndpoint, code, now, body)
	if err != nil {
		return 0, false, err
	}

	if stored {
		log.Info().Str("competition", code).Int64("raw_id", id).Msg("archived competition snapshot")
	}
	return id, stored, nil
}
