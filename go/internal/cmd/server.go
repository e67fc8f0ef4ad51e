package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/jstats/matchlens/go/clients/footballdata"
	"github.com/jstats/matchlens/go/internal/fixture"
	"github.com/jstats/matchlens/go/internal/predict"
)

// competition codes look like PL, CL, BL1
var competitionPattern = regexp.MustCompile(`^[A-Z0-9]{2,5}$`)

func setupServer(services *Services) *http.Server {
	mux := http.NewServeMux()

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	registerRoutes(mux, services)

	handler := c.Handler(mux)

	// Setup HTTP/2 server
	return &http.Server{
		Addr:    fmt.Sprintf(":%s", getEnv("PORT", "8080")),
		Handler: h2c.NewHandler(handler, &http2.Server{}),
	}
}

func registerRoutes(mux *http.ServeMux, services *Services) {
	// Read path: straight to the store, bypassing the write pipeline
	mux.HandleFunc("GET /fixtures", func(w http.ResponseWriter, r *http.Request) {
		fixtures, err := services.Fixtures.ListFixtures(r.Context(), r.URL.Query().Get("competition"), 500)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, fixtures)
	})

	mux.HandleFunc("GET /fixtures/{key}", func(w http.ResponseWriter, r *http.Request) {
		f, err := services.Fixtures.GetFixture(r.Context(), r.PathValue("key"))
		if errors.Is(err, fixture.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, f)
	})

	mux.HandleFunc("GET /fixtures/{key}/events", func(w http.ResponseWriter, r *http.Request) {
		events, err := services.Fixtures.GetFixtureEvents(r.Context(), r.PathValue("key"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, events)
	})

	// On-demand ingest: archive a competition snapshot and queue a refresh
	// cycle for its fixtures
	mux.HandleFunc("GET /ingest/footballdataorg/fixtures", func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("competition")
		if !competitionPattern.MatchString(code) {
			writeError(w, http.StatusBadRequest,
				errors.New("competition must be an uppercase code like PL, CL, etc."))
			return
		}

		id, stored, err := services.RawIngest.StoreCompetitionRaw(r.Context(), code)
		if err != nil {
			writeError(w, upstreamStatus(err), err)
			return
		}

		if err := services.Engine.RefreshCompetition(code); err != nil {
			log.Warn().Err(err).Str("competition", code).Msg("could not queue refresh cycle")
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"competition": code,
			"raw_id":      id,
			"stored":      stored,
		})
	})

	// Prediction: retrieval-augmented verdict for one match
	mux.HandleFunc("POST /predictions", func(w http.ResponseWriter, r *http.Request) {
		var req predict.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
			return
		}
		if err := req.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		response, err := services.Predictor.Predict(r.Context(), req)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, response)
	})

	mux.HandleFunc("POST /predictions/embeddings/generate", func(w http.ResponseWriter, r *http.Request) {
		limit := predict.DefaultBatchLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				writeError(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
				return
			}
			limit = parsed
		}

		stored, err := services.Embeddings.GenerateBatch(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message":              "embedding generation complete",
			"embeddings_generated": stored,
			"limit":                limit,
		})
	})

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		status := services.Health.Check(r.Context())
		code := http.StatusOK
		if !status.Healthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, status)
	})

	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, r *http.Request) {
		if err := services.Health.Ready(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Warn().Err(err).Msg("failed to write readiness response")
		}
	})

	mux.Handle("GET /metrics", promhttp.HandlerFor(services.Registry, promhttp.HandlerOpts{}))
}

// upstreamStatus translates provider errors onto the HTTP surface the same
// way they arrived: 404, 429 and gateway-class failures stay recognizable.
func upstreamStatus(err error) int {
	var rateLimited *footballdata.RateLimitedError
	var unavailable *footballdata.UnavailableError
	var malformed *footballdata.MalformedError

	switch {
	case errors.Is(err, footballdata.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &rateLimited):
		return http.StatusTooManyRequests
	case errors.As(err, &unavailable):
		return http.StatusBadGateway
	case errors.As(err, &malformed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
