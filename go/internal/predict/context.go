package predict

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

const noHistory = "No historical data available"

const fallbackLimit = 15

// ResultFinder supplies recent finished fixtures for the two teams.
type ResultFinder interface {
	RecentResults(ctx context.Context, homeTeam, awayTeam string, limit int) ([]HistoricalMatch, error)
}

// ContextBuilder renders the historical-context block of the prediction
// prompt. When similarity search comes back empty it falls back to a plain
// fixtures query over both teams, and failing that states that no history
// exists rather than erroring the prediction.
type ContextBuilder struct {
	results ResultFinder
}

func NewContextBuilder(results ResultFinder) *ContextBuilder {
	return &ContextBuilder{results: results}
}

// Build returns the prompt block and the matches it summarizes.
func (b *ContextBuilder) Build(ctx context.Context, req Request, matches []HistoricalMatch) (string, []HistoricalMatch) {
	if len(matches) == 0 {
		fallback, err := b.results.RecentResults(ctx, req.HomeTeam, req.AwayTeam, fallbackLimit)
		if err != nil {
			log.Warn().
				Err(err).
				Str("home_team", req.HomeTeam).
				Str("away_team", req.AwayTeam).
				Msg("historical fallback query failed")
		} else {
			matches = fallback
		}
	}
	if len(matches) == 0 {
		return noHistory, nil
	}

	var sb strings.Builder
	for _, m := range matches {
		fmt.Fprintf(&sb, "- %s vs %s: %s (%s, %s)\n",
			m.HomeTeam, m.AwayTeam, m.Result, m.Competition, m.Date.Format("2006-01-02"))
	}
	return strings.TrimRight(sb.String(), "\n"), matches
}
