package predict

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/jstats/matchlens/go/internal/retry"
)

const (
	WinnerHome = "HOME"
	WinnerAway = "AWAY"
	WinnerDraw = "DRAW"

	// confidence when the model answered but without a usable number
	defaultConfidence = 0.5
	// confidence when the model was unreachable and the draw fallback serves
	fallbackConfidence = 0.33
)

const promptTemplate = `You are a football match prediction expert. Predict the outcome of this match.

Match: %s vs %s
Competition: %s
Date: %s

Historical Context:
%s

Respond ONLY with a valid JSON object in this exact format:
{"predicted_winner": "HOME", "confidence": 0.75, "reasoning": "short explanation", "key_factors": ["factor one", "factor two"]}

predicted_winner must be HOME, AWAY or DRAW. confidence is a number between 0 and 1.`

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// Retriever finds stored matches similar to a free-text query.
type Retriever interface {
	QueryEmbedding(ctx context.Context, text string) ([]float64, error)
	SimilarMatches(ctx context.Context, query []float64, k int) ([]HistoricalMatch, error)
}

type PredictorConfig struct {
	ChatModel         string
	MaxContextMatches int
	Policy            retry.Policy
}

func DefaultPredictorConfig() PredictorConfig {
	return PredictorConfig{
		ChatModel:         "llama3",
		MaxContextMatches: 15,
		Policy: retry.Policy{
			MaxAttempts:  2,
			InitialDelay: time.Second,
			Multiplier:   2.0,
			MaxDelay:     4 * time.Second,
		},
	}
}

// Predictor answers match predictions by retrieving similar finished
// fixtures and asking a chat model to weigh them. Retrieval failures
// degrade to an empty context and model failures degrade to a draw
// verdict; a prediction request never fails on a downstream outage.
type Predictor struct {
	generator Generator
	retriever Retriever
	context   *ContextBuilder
	clock     clockwork.Clock
	config    PredictorConfig
}

func NewPredictor(generator Generator, retriever Retriever, contextBuilder *ContextBuilder, clock clockwork.Clock, config PredictorConfig) *Predictor {
	def := DefaultPredictorConfig()
	if config.ChatModel == "" {
		config.ChatModel = def.ChatModel
	}
	if config.MaxContextMatches <= 0 {
		config.MaxContextMatches = def.MaxContextMatches
	}
	if config.Policy.MaxAttempts == 0 {
		config.Policy = def.Policy
	}

	return &Predictor{
		generator: generator,
		retriever: retriever,
		context:   contextBuilder,
		clock:     clock,
		config:    config,
	}
}

// Predict runs the full retrieval-augmented flow for one match.
func (p *Predictor) Predict(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	history, matches := p.context.Build(ctx, req, p.retrieve(ctx, req))
	prompt := fmt.Sprintf(promptTemplate,
		req.HomeTeam, req.AwayTeam, req.Competition, req.MatchDate.Format("2006-01-02"), history)

	var raw string
	err := p.config.Policy.Do(ctx, p.clock, func() error {
		var genErr error
		raw, genErr = p.generator.Generate(ctx, p.config.ChatModel, prompt)
		return genErr
	})
	if err != nil {
		log.Warn().
			Err(err).
			Str("home_team", req.HomeTeam).
			Str("away_team", req.AwayTeam).
			Msg("prediction model unavailable, serving fallback")
		return fallbackResponse(matches), nil
	}

	response := parseResponse(raw)
	response.RelevantMatches = matches
	return response, nil
}

func (p *Predictor) retrieve(ctx context.Context, req Request) []HistoricalMatch {
	query := fmt.Sprintf("%s vs %s %s football match", req.HomeTeam, req.AwayTeam, req.Competition)

	vector, err := p.retriever.QueryEmbedding(ctx, query)
	if err != nil {
		log.Warn().Err(err).Msg("query embedding failed")
		return nil
	}
	matches, err := p.retriever.SimilarMatches(ctx, vector, p.config.MaxContextMatches)
	if err != nil {
		log.Warn().Err(err).Msg("similarity search failed")
		return nil
	}
	return matches
}

// parseResponse decodes the model's JSON verdict, tolerating markdown code
// fences. Unparseable output degrades to a keyword scan over the raw text.
func parseResponse(raw string) *Response {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var decoded struct {
		PredictedWinner string   `json:"predicted_winner"`
		Confidence      *float64 `json:"confidence"`
		Reasoning       string   `json:"reasoning"`
		KeyFactors      []string `json:"key_factors"`
	}
	if err := json.Unmarshal([]byte(cleaned), &decoded); err != nil || !validWinner(decoded.PredictedWinner) {
		return extractFromText(raw)
	}

	confidence := defaultConfidence
	if decoded.Confidence != nil {
		confidence = *decoded.Confidence
	}
	return &Response{
		PredictedWinner: decoded.PredictedWinner,
		Confidence:      confidence,
		Reasoning:       decoded.Reasoning,
		KeyFactors:      decoded.KeyFactors,
	}
}

func validWinner(winner string) bool {
	switch winner {
	case WinnerHome, WinnerAway, WinnerDraw:
		return true
	}
	return false
}

func extractFromText(raw string) *Response {
	upper := strings.ToUpper(raw)
	winner := WinnerDraw
	switch {
	case strings.Contains(upper, WinnerHome):
		winner = WinnerHome
	case strings.Contains(upper, WinnerAway):
		winner = WinnerAway
	}
	return &Response{
		PredictedWinner: winner,
		Confidence:      defaultConfidence,
		Reasoning:       strings.TrimSpace(raw),
		KeyFactors:      []string{"Unable to parse structured response"},
	}
}

func fallbackResponse(matches []HistoricalMatch) *Response {
	return &Response{
		PredictedWinner: WinnerDraw,
		Confidence:      fallbackConfidence,
		Reasoning:       "Prediction model unavailable, defaulting to a draw",
		KeyFactors:      []string{"Model fallback", "Insufficient data"},
		RelevantMatches: matches,
	}
}
