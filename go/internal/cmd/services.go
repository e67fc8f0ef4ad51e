package main

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jstats/matchlens/go/clients/footballdata"
	"github.com/jstats/matchlens/go/clients/ollama"
	"github.com/jstats/matchlens/go/internal/coordinate"
	"github.com/jstats/matchlens/go/internal/fixture"
	"github.com/jstats/matchlens/go/internal/health"
	"github.com/jstats/matchlens/go/internal/ingest"
	"github.com/jstats/matchlens/go/internal/metrics"
	"github.com/jstats/matchlens/go/internal/predict"
	"github.com/jstats/matchlens/go/internal/publish"
)

type Services struct {
	Fixtures   *fixture.App
	RawIngest  *ingest.RawIngestService
	Engine     *coordinate.Engine
	Queue      *publish.Queue
	Fanout     *publish.Fanout
	JetStream  *publish.JetStreamPublisher
	Health     *health.Checker
	Predictor  *predict.Predictor
	Embeddings *predict.EmbeddingService
	Registry   *prometheus.Registry
}

func setupServices(db *pgxpool.Pool, apiKey string, config *Config) (*Services, error) {
	// Wire up explicitly: client -> fetcher -> coordinator -> publisher.
	// No implicit runtime wiring; every component takes its collaborators
	// at construction time.
	clock := clockwork.NewRealClock()

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// Provider client + fetcher
	client := footballdata.NewClient(apiKey)
	fetcher := ingest.NewFootballDataFetcher(client, clock)

	// Fixture store read path
	fixtureRepo := fixture.NewRepository(db)
	fixtureApp := fixture.NewApp(fixtureRepo)

	// Raw snapshot archive
	rawRepo := ingest.NewRawIngestRepository(db)
	rawService := ingest.NewRawIngestService(rawRepo, client, clock)

	// Publisher: internal queue plus JetStream leg
	queue := publish.NewQueue(publish.QueueConfig{
		Capacity: config.Queue.Capacity,
		LowWater: config.Queue.LowWater,
	})

	jsCfg := publish.DefaultJetStreamConfig()
	jsCfg.URL = getEnv("NATS_URL", nats.DefaultURL)
	if config.Messaging.Stream != "" {
		jsCfg.StreamName = config.Messaging.Stream
	}
	if config.Messaging.SubjectPrefix != "" {
		jsCfg.SubjectPrefix = config.Messaging.SubjectPrefix
	}
	jsPublisher, err := publish.NewJetStreamPublisher(jsCfg)
	if err != nil {
		return nil, err
	}

	fanout := publish.NewFanout(queue, jsPublisher, publish.DefaultFanoutConfig(), clock, collector)

	// Coordination: leases + commit protocol + sharded engine
	leases := coordinate.NewLeaseTable(clock)
	coordinator := coordinate.NewCoordinator(fixtureRepo, fanout, leases, clock, coordinate.Config{
		LeaseTTL:         duration(config.Coordination.LeaseTTL, coordinate.DefaultConfig().LeaseTTL),
		MaxCommitRetries: config.Coordination.MaxCommitRetries,
	})

	engineCfg := coordinate.DefaultEngineConfig()
	engineCfg.Competitions = config.Ingest.Competitions
	if len(engineCfg.Competitions) == 0 {
		engineCfg.Competitions = []string{footballdata.PremierLeague}
	}
	if config.Ingest.Shards > 0 {
		engineCfg.Shards = config.Ingest.Shards
	}
	engineCfg.PollInterval = duration(config.Ingest.PollInterval, engineCfg.PollInterval)
	engineCfg.WindowBack = duration(config.Ingest.WindowBack, engineCfg.WindowBack)
	engineCfg.WindowAhead = duration(config.Ingest.WindowAhead, engineCfg.WindowAhead)

	engine := coordinate.NewEngine(fetcher, coordinator, engineCfg, clock, collector)

	checker := health.NewChecker(fixtureRepo, engine, jsPublisher, clock,
		duration(config.Health.StaleFetchAfter, 3*engineCfg.PollInterval))

	// Prediction: Ollama-backed retrieval over stored match embeddings
	llm := ollama.NewClient(getEnv("OLLAMA_URL", ollama.DefaultBaseURL))
	predictRepo := predict.NewRepository(db)
	predictorCfg := predict.DefaultPredictorConfig()
	if config.Prediction.ChatModel != "" {
		predictorCfg.ChatModel = config.Prediction.ChatModel
	}
	if config.Prediction.MaxContextMatches > 0 {
		predictorCfg.MaxContextMatches = config.Prediction.MaxContextMatches
	}
	embedModel := config.Prediction.EmbedModel
	if embedModel == "" {
		embedModel = "nomic-embed-text"
	}
	embeddings := predict.NewEmbeddingService(predictRepo, llm, embedModel)
	predictor := predict.NewPredictor(llm, embeddings, predict.NewContextBuilder(predictRepo), clock, predictorCfg)

	return &Services{
		Fixtures:   fixtureApp,
		RawIngest:  rawService,
		Engine:     engine,
		Queue:      queue,
		Fanout:     fanout,
		JetStream:  jsPublisher,
		Health:     checker,
		Predictor:  predictor,
		Embeddings: embeddings,
		Registry:   registry,
	}, nil
}
