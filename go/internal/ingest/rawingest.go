package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	Source              = "football-data.org"
	CompetitionEndpoint = "/v4/competitions/{code}"
)

// RawIngestRepository archives provider response snapshots. One row per
// (source, endpoint, external key); re-fetches of the same key are no-ops at
// the database level.
type RawIngestRepository struct {
	db *pgxpool.Pool
}

func NewRawIngestRepository(db *pgxpool.Pool) *RawIngestRepository {
	return &RawIngestRepository{db: db}
}

// WasFetchedSince reports whether a snapshot for this key was stored at or
// after the given instant. Used to skip the remote call on recently fetched
// keys.
func (r *RawIngestRepository) WasFetchedSince(ctx context.Context, source, endpoint, externalKey string, since time.Time) (bool, error) {
	var one int
	err := r.db.QueryRow(ctx, `
		SELECT 1
		FROM raw_ingest
		WHERE source = $1
		  AND endpoint = $2
		  AND external_key = $3
		  AND fetched_at >= $4
		LIMIT 1`,
		source, endpoint, externalKey, since).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check raw ingest guard: %w", err)
	}
	return true, nil
}

// InsertRaw stores one snapshot. Returns the new row ID, or (0, false) when
// a snapshot for this key already exists.
func (r *RawIngestRepository) InsertRaw(ctx context.Context, source, endpoint, externalKey string, fetchedAt time.Time, payload []byte) (int64, bool, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO raw_ingest
		  (source, endpoint, external_key, fetched_at, payload)
		VALUES
		  ($1, $2, $3, $4, $5)
		ON CONFLICT (source, endpoint, external_key)
		DO NOTHING
		RETURNING id`,
		source, endpoint, externalKey, fetchedAt, payload).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to insert raw ingest snapshot: %w", err)
	}
	return id, true, nil
}
