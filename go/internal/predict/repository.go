package predict

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jstats/matchlens/go/internal/models"
)

// Repository stores match embeddings and reads finished fixtures for
// prediction context. Vectors are plain float8 arrays ranked in Go; the
// corpus for a handful of competitions stays small enough that a
// database-side vector index would be overkill.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// MatchEmbedding pairs a finished fixture's summary fields with its vector.
type MatchEmbedding struct {
	ExternalKey string
	HomeTeam    string
	AwayTeam    string
	Competition string
	Result      string
	Kickoff     time.Time
	Embedding   []float64
}

// Exists reports whether an embedding is already stored for the key.
func (r *Repository) Exists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM match_embeddings WHERE external_key = $1)`, key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check embedding existence: %w", err)
	}
	return exists, nil
}

// Save stores an embedding, keeping the first one written for a key.
func (r *Repository) Save(ctx context.Context, e MatchEmbedding) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO match_embeddings
		  (external_key, home_team, away_team, competition, result, kickoff, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (external_key) DO NOTHING`,
		e.ExternalKey, e.HomeTeam, e.AwayTeam, e.Competition, e.Result, e.Kickoff, e.Embedding)
	if err != nil {
		return fmt.Errorf("failed to save match embedding: %w", err)
	}
	return nil
}

// List returns every stored embedding for in-process similarity ranking.
func (r *Repository) List(ctx context.Context) ([]MatchEmbedding, error) {
	rows, err := r.db.Query(ctx, `
		SELECT external_key, home_team, away_team, competition, result, kickoff, embedding
		FROM match_embeddings`)
	if err != nil {
		return nil, fmt.Errorf("failed to list match embeddings: %w", err)
	}
	defer rows.Close()

	var embeddings []MatchEmbedding
	for rows.Next() {
		var e MatchEmbedding
		if err := rows.Scan(&e.ExternalKey, &e.HomeTeam, &e.AwayTeam, &e.Competition,
			&e.Result, &e.Kickoff, &e.Embedding); err != nil {
			return nil, fmt.Errorf("failed to scan match embedding: %w", err)
		}
		embeddings = append(embeddings, e)
	}
	return embeddings, rows.Err()
}

// Candidates returns finished fixtures without a stored embedding, newest
// first.
func (r *Repository) Candidates(ctx context.Context, limit int) ([]models.Fixture, error) {
	rows, err := r.db.Query(ctx, `
		SELECT f.external_key, f.competition, f.status, f.home_team, f.away_team, f.kickoff,
		       f.home_score, f.away_score, f.version, f.provider_ts, f.updated_at
		FROM fixtures f
		LEFT JOIN match_embeddings e ON e.external_key = f.external_key
		WHERE f.status = $1 AND e.external_key IS NULL
		ORDER BY f.kickoff DESC
		LIMIT $2`, models.FixtureStatusFinished, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list embedding candidates: %w", err)
	}
	defer rows.Close()

	var fixtures []models.Fixture
	for rows.Next() {
		var f models.Fixture
		var homeScore, awayScore *int
		if err := rows.Scan(&f.ExternalKey, &f.Competition, &f.Status, &f.HomeTeam, &f.AwayTeam,
			&f.Kickoff, &homeScore, &awayScore, &f.Version, &f.ProviderTS, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan embedding candidate: %w", err)
		}
		if homeScore != nil && awayScore != nil {
			f.Score = &models.Score{Home: *homeScore, Away: *awayScore}
		}
		fixtures = append(fixtures, f)
	}
	return fixtures, rows.Err()
}

// RecentResults returns finished fixtures involving either team, newest
// first. Serves as the context fallback when similarity search comes back
// empty.
func (r *Repository) RecentResults(ctx context.Context, homeTeam, awayTeam string, limit int) ([]HistoricalMatch, error) {
	rows, err := r.db.Query(ctx, `
		SELECT home_team, away_team, home_score, away_score, competition, kickoff
		FROM fixtures
		WHERE status = $1
		  AND (home_team ILIKE $2 OR away_team ILIKE $2 OR home_team ILIKE $3 OR away_team ILIKE $3)
		ORDER BY kickoff DESC
		LIMIT $4`,
		models.FixtureStatusFinished, "%"+homeTeam+"%", "%"+awayTeam+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent results: %w", err)
	}
	defer rows.Close()

	var matches []HistoricalMatch
	for rows.Next() {
		var m HistoricalMatch
		var homeScore, awayScore *int
		if err := rows.Scan(&m.HomeTeam, &m.AwayTeam, &homeScore, &awayScore,
			&m.Competition, &m.Date); err != nil {
			return nil, fmt.Errorf("failed to scan recent result: %w", err)
		}
		m.Result = scoreLine(homeScore, awayScore)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func scoreLine(home, away *int) string {
	if home == nil || away == nil {
		return "unknown"
	}
	return fmt.Sprintf("%d-%d", *home, *away)
}
