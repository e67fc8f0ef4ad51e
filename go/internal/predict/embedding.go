package predict

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/jstats/matchlens/go/internal/models"
)

// DefaultBatchLimit caps one embedding generation pass.
const DefaultBatchLimit = 100

// Embedder produces embedding vectors for text.
type Embedder interface {
	Embed(ctx context.Context, model, text string) ([]float64, error)
}

// EmbeddingStore persists match embeddings and supplies the fixtures still
// waiting for one.
type EmbeddingStore interface {
	Save(ctx context.Context, e MatchEmbedding) error
	List(ctx context.Context) ([]MatchEmbedding, error)
	Candidates(ctx context.Context, limit int) ([]models.Fixture, error)
}

// EmbeddingService turns finished fixtures into stored vectors and answers
// similarity queries over them.
type EmbeddingService struct {
	store    EmbeddingStore
	embedder Embedder
	model    string
}

func NewEmbeddingService(store EmbeddingStore, embedder Embedder, model string) *EmbeddingService {
	return &EmbeddingService{
		store:    store,
		embedder: embedder,
		model:    model,
	}
}

// GenerateBatch embeds finished fixtures that have no stored vector yet.
// Per-fixture failures are logged and skipped so one bad record does not
// abort the pass. Returns the number of embeddings stored.
func (s *EmbeddingService) GenerateBatch(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = DefaultBatchLimit
	}

	candidates, err := s.store.Candidates(ctx, limit)
	if err != nil {
		return 0, err
	}

	stored := 0
	for _, f := range candidates {
		if ctx.Err() != nil {
			return stored, ctx.Err()
		}
		if err := s.embedFixture(ctx, f); err != nil {
			log.Warn().
				Err(err).
				Str("external_key", f.ExternalKey).
				Msg("skipping fixture embedding")
			continue
		}
		stored++
	}

	log.Info().
		Int("candidates", len(candidates)).
		Int("stored", stored).
		Msg("embedding batch complete")
	return stored, nil
}

func (s *EmbeddingService) embedFixture(ctx context.Context, f models.Fixture) error {
	vector, err := s.embedder.Embed(ctx, s.model, matchText(f))
	if err != nil {
		return err
	}
	return s.store.Save(ctx, MatchEmbedding{
		ExternalKey: f.ExternalKey,
		HomeTeam:    f.HomeTeam,
		AwayTeam:    f.AwayTeam,
		Competition: f.Competition,
		Result:      fixtureResult(f),
		Kickoff:     f.Kickoff,
		Embedding:   vector,
	})
}

// QueryEmbedding embeds free text for similarity search.
func (s *EmbeddingService) QueryEmbedding(ctx context.Context, text string) ([]float64, error) {
	return s.embedder.Embed(ctx, s.model, text)
}

// SimilarMatches ranks stored embeddings against the query vector by cosine
// similarity and returns the top k as historical matches.
func (s *EmbeddingService) SimilarMatches(ctx context.Context, query []float64, k int) ([]HistoricalMatch, error) {
	stored, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	type scored struct {
		embedding  MatchEmbedding
		similarity float64
	}
	ranked := make([]scored, 0, len(stored))
	for _, e := range stored {
		sim := cosine(query, e.Embedding)
		if sim < 0 {
			continue
		}
		ranked = append(ranked, scored{embedding: e, similarity: sim})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].similarity > ranked[j].similarity
	})

	if k > 0 && len(ranked) > k {
		ranked = ranked[:k]
	}
	matches := make([]HistoricalMatch, 0, len(ranked))
	for _, r := range ranked {
		matches = append(matches, HistoricalMatch{
			HomeTeam:    r.embedding.HomeTeam,
			AwayTeam:    r.embedding.AwayTeam,
			Result:      r.embedding.Result,
			Competition: r.embedding.Competition,
			Date:        r.embedding.Kickoff,
		})
	}
	return matches, nil
}

// matchText is the canonical text a fixture embeds under. Changing it
// invalidates every stored vector, so extend rather than reorder.
func matchText(f models.Fixture) string {
	return fmt.Sprintf("%s vs %s, Score: %s, Competition: %s, Date: %s",
		f.HomeTeam, f.AwayTeam, fixtureResult(f), f.Competition, f.Kickoff.Format("2006-01-02"))
}

func fixtureResult(f models.Fixture) string {
	if f.Score == nil {
		return "unknown"
	}
	return fmt.Sprintf("%d-%d", f.Score.Home, f.Score.Away)
}

// cosine returns -1 for unusable vector pairs; mismatched dimensions can
// appear after an embedding model swap and must never match.
func cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return -1
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return -1
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
