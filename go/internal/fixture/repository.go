package fixture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jstats/matchlens/go/internal/models"
	"github.com/jstats/matchlens/go/internal/sqlutil"
)

// ErrNotFound is returned when no fixture exists for the requested key.
var ErrNotFound = errors.New("fixture not found")

// ErrConflict is returned when a commit's optimistic version check fails:
// another writer advanced the fixture after this cycle read it.
var ErrConflict = errors.New("fixture version conflict")

// Repository implements fixture data access against Postgres. The fixture
// row and its change event commit in one transaction, so a committed
// mutation always has a journaled event to publish from.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const fixtureColumns = `external_key, competition, status, home_team, away_team, kickoff,
	home_score, away_score, version, provider_ts, updated_at`

// Get retrieves a fixture by its external key.
func (r *Repository) Get(ctx context.Context, key string) (*models.Fixture, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+fixtureColumns+`
		FROM fixtures
		WHERE external_key = $1`, key)
	return scanFixture(row)
}

// List retrieves fixtures, optionally filtered by competition.
func (r *Repository) List(ctx context.Context, competition string, limit int) ([]models.Fixture, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+fixtureColumns+`
		FROM fixtures
		WHERE ($1 = '' OR competition = $1)
		ORDER BY kickoff
		LIMIT $2`, competition, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list fixtures: %w", err)
	}
	defer rows.Close()

	var fixtures []models.Fixture
	for rows.Next() {
		f, err := scanFixture(rows)
		if err != nil {
			return nil, err
		}
		fixtures = append(fixtures, *f)
	}
	return fixtures, rows.Err()
}

// Insert creates a fixture at version 1 together with its Create event.
// A concurrent insert of the same key surfaces as ErrConflict.
func (r *Repository) Insert(ctx context.Context, f *models.Fixture, event models.ChangeEvent) error {
	return sqlutil.Run(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO fixtures
			  (`+fixtureColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (external_key) DO NOTHING`,
			f.ExternalKey, f.Competition, f.Status, f.HomeTeam, f.AwayTeam, f.Kickoff,
			scoreHome(f.Score), scoreAway(f.Score), f.Version, f.ProviderTS, f.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert fixture: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrConflict
		}
		return insertEvent(ctx, tx, event)
	})
}

// CommitUpdate applies a reconciled diff only if the stored version still
// equals expectedVersion, writing the new state and its change event
// atomically. Returns ErrConflict when the check fails.
func (r *Repository) CommitUpdate(ctx context.Context, f *models.Fixture, expectedVersion int64, event models.ChangeEvent) error {
	return sqlutil.Run(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE fixtures
			SET competition = $2,
			    status = $3,
			    home_team = $4,
			    away_team = $5,
			    kickoff = $6,
			    home_score = $7,
			    away_score = $8,
			    version = $9,
			    provider_ts = $10,
			    updated_at = $11
			WHERE external_key = $1 AND version = $12`,
			f.ExternalKey, f.Competition, f.Status, f.HomeTeam, f.AwayTeam, f.Kickoff,
			scoreHome(f.Score), scoreAway(f.Score), f.Version, f.ProviderTS, f.UpdatedAt,
			expectedVersion)
		if err != nil {
			return fmt.Errorf("failed to update fixture: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrConflict
		}
		return insertEvent(ctx, tx, event)
	})
}

// ListEvents returns a fixture's change events ordered by version.
func (r *Repository) ListEvents(ctx context.Context, key string) ([]models.ChangeEvent, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, external_key, competition, prev_version, new_version,
		       prev_status, new_status, diff, provider_ts, occurred_at
		FROM fixture_events
		WHERE external_key = $1
		ORDER BY new_version`, key)
	if err != nil {
		return nil, fmt.Errorf("failed to list fixture events: %w", err)
	}
	defer rows.Close()

	var events []models.ChangeEvent
	for rows.Next() {
		var e models.ChangeEvent
		var diff []byte
		if err := rows.Scan(&e.ID, &e.ExternalKey, &e.Competition, &e.PrevVersion, &e.NewVersion,
			&e.PrevStatus, &e.NewStatus, &diff, &e.ProviderTS, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan fixture event: %w", err)
		}
		if err := json.Unmarshal(diff, &e.Diff); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event diff: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Ping reports whether the store is reachable. Used by the readiness probe.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func insertEvent(ctx context.Context, tx pgx.Tx, event models.ChangeEvent) error {
	diff, err := json.Marshal(event.Diff)
	if err != nil {
		return fmt.Errorf("failed to marshal event diff: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO fixture_events
		  (id, external_key, competition, prev_version, new_version,
		   prev_status, new_status, diff, provider_ts, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		event.ID, event.ExternalKey, event.Competition, event.PrevVersion, event.NewVersion,
		event.PrevStatus, event.NewStatus, diff, event.ProviderTS, event.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to insert fixture event: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFixture(row rowScanner) (*models.Fixture, error) {
	var f models.Fixture
	var homeScore, awayScore *int
	err := row.Scan(&f.ExternalKey, &f.Competition, &f.Status, &f.HomeTeam, &f.AwayTeam, &f.Kickoff,
		&homeScore, &awayScore, &f.Version, &f.ProviderTS, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan fixture: %w", err)
	}
	if homeScore != nil && awayScore != nil {
		f.Score = &models.Score{Home: *homeScore, Away: *awayScore}
	}
	return &f, nil
}

func scoreHome(s *models.Score) *int {
	if s == nil {
		return nil
	}
	return &s.Home
}

func scoreAway(s *models.Score) *int {
	if s == nil {
		return nil
	}
	return &s.Away
}
