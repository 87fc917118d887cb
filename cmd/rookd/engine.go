package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"rook/internal/cognitive"
	"rook/internal/config"
	"rook/internal/consolidation"
	"rook/internal/embedding"
	"rook/internal/facade"
	"rook/internal/fsrs"
	"rook/internal/graph"
	"rook/internal/history"
	"rook/internal/ingest"
	"rook/internal/intentions"
	"rook/internal/llm"
	llmopenai "rook/internal/llm/openai"
	"rook/internal/observability"
	"rook/internal/persistence/databases"
	"rook/internal/retrieval"
	"rook/internal/runtime"
)

// engine bundles every long-lived collaborator cmd/rookd wires up, so its
// subcommands can share one construction path and one shutdown sequence.
type engine struct {
	cfg *config.Config

	memory       *facade.Memory
	runtime      *runtime.Runtime
	consolidator *consolidation.Manager

	cognitiveStore *cognitive.Store
	historyStore   *history.Store
	versionStore   *history.VersionStore
	graphStore     *graph.Store
	intentionStore *intentions.Store
	dbManager      databases.Manager

	shutdownOTel func(context.Context) error
}

// close releases every resource engine opened, logging rather than failing
// on individual close errors since callers are already shutting down.
func (e *engine) close(ctx context.Context) {
	if e.shutdownOTel != nil {
		if err := e.shutdownOTel(ctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown failed")
		}
	}
	e.dbManager.Close()
	if e.graphStore != nil {
		if err := e.graphStore.Close(); err != nil {
			log.Warn().Err(err).Msg("graph store close failed")
		}
	}
	if e.cognitiveStore != nil {
		if err := e.cognitiveStore.Close(); err != nil {
			log.Warn().Err(err).Msg("cognitive store close failed")
		}
	}
	if e.versionStore != nil {
		if err := e.versionStore.Close(); err != nil {
			log.Warn().Err(err).Msg("version store close failed")
		}
	}
	if e.historyStore != nil {
		if err := e.historyStore.Close(); err != nil {
			log.Warn().Err(err).Msg("history store close failed")
		}
	}
	if e.intentionStore != nil {
		if err := e.intentionStore.Close(); err != nil {
			log.Warn().Err(err).Msg("intentions store close failed")
		}
	}
}

// buildEngine loads configuration from cfgPath and wires every component
// the façade and background runtime depend on. It never runs the background
// loops itself; callers decide whether to start runtime.Run.
func buildEngine(ctx context.Context, cfgPath string) (*engine, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	observability.InitLogger("rookd.log", "info")

	shutdownOTel, err := observability.InitOTel(ctx, cfg.Obs)
	if err != nil {
		log.Warn().Err(err).Msg("otel init failed, continuing without observability")
		shutdownOTel = nil
	}

	e := &engine{cfg: cfg, shutdownOTel: shutdownOTel}

	httpClient := observability.NewHTTPClient(nil)
	embedder := embedding.NewClient(cfg.Embedding, cfg.DB.Vector.Dimensions)

	chatClient := llmopenai.New(llmopenai.Config{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL}, httpClient)
	chatLLM := llm.NewPortsAdapter(chatClient, cfg.Model)

	dbManager, err := databases.NewManager(ctx, cfg.DB)
	if err != nil {
		e.close(ctx)
		return nil, fmt.Errorf("init persistence backends: %w", err)
	}
	e.dbManager = dbManager

	graphStore, err := graph.Open(cfg.DB.Graph.DSN)
	if err != nil {
		e.close(ctx)
		return nil, fmt.Errorf("open graph store: %w", err)
	}
	e.graphStore = graphStore
	graphLLMStore := graph.NewLLMStore(graphStore, chatLLM)

	cognitiveStore, err := cognitive.Open(cfg.Cognitive.DBPath)
	if err != nil {
		e.close(ctx)
		return nil, fmt.Errorf("open cognitive store: %w", err)
	}
	e.cognitiveStore = cognitiveStore

	historyStore, err := history.Open(cfg.History.HistoryDBPath)
	if err != nil {
		e.close(ctx)
		return nil, fmt.Errorf("open history store: %w", err)
	}
	e.historyStore = historyStore

	versionStore, err := history.OpenVersions(cfg.History.VersionDBPath)
	if err != nil {
		e.close(ctx)
		return nil, fmt.Errorf("open version store: %w", err)
	}
	e.versionStore = versionStore

	scheduler := fsrs.NewScheduler()
	retrievabilitySource := cognitive.NewRetrievability(cognitiveStore, scheduler)
	retrievability := wireRetrievabilityCache(cfg.Redis, retrievabilitySource)

	engineRetrieval := retrieval.NewEngine(dbManager.Vector, graphStore, dbManager.Search, retrievability)

	gate := ingest.WithDefaults(ingest.Deps{Embedder: embedder, Contradiction: chatLLM})

	e.memory = facade.NewWithDefaults(facade.Deps{
		LLM:         chatLLM,
		Embedder:    embedder,
		VectorStore: dbManager.Vector,
		GraphStore:  graphLLMStore,

		Cognitive: cognitiveStore,
		History:   historyStore,
		Versions:  versionStore,
		Strength:  fsrs.NewSignalProcessor(),
		Tagger:    consolidation.WithDefaults(),

		Engine: engineRetrieval,
		Gate:   gate,
	})

	intentionStore, err := intentions.Open(cfg.Intentions.DBPath)
	if err != nil {
		e.close(ctx)
		return nil, fmt.Errorf("open intentions store: %w", err)
	}
	e.intentionStore = intentionStore
	scheduler2 := intentions.NewScheduler(intentionStore, logOnlyFireHandler)

	consolidator := consolidation.NewManager(cognitiveStore, consolidation.Config{
		TagThreshold:           cfg.Cognitive.TagThreshold,
		StorageBoost:           cfg.Cognitive.StorageBoost,
		BatchSize:              cfg.Consolidation.BatchSize,
		PenalizeUnconsolidated: cfg.Cognitive.PenalizeUnconsolidated,
		UnconsolidatedPenalty:  cfg.Cognitive.UnconsolidatedPenalty,
	})
	e.consolidator = consolidator

	e.runtime = runtime.New(runtime.Config{
		ConsolidationInterval: time.Duration(cfg.Consolidation.IntervalMinutes) * time.Minute,
		ConsolidationEnabled:  !cfg.Consolidation.Disabled,
		RunConsolidationNow:   cfg.Consolidation.RunOnStart,
		IntentionInterval:     time.Minute,
		IntentionsEnabled:     !cfg.Intentions.Disabled,
	}, consolidator, scheduler2)

	return e, nil
}

// wireRetrievabilityCache wraps source with a Redis-backed memo layer when
// cfg.Enabled, matching the teacher's disabled-by-default cache pattern: a
// nil client degrades every lookup straight through to source.
func wireRetrievabilityCache(cfg config.RedisConfig, source retrieval.Retrievability) retrieval.Retrievability {
	if !cfg.Enabled {
		return source
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Warn().Err(err).Msg("redis retrievability cache ping failed, continuing without cache")
		return source
	}
	ttl := time.Duration(cfg.TTLSeconds) * time.Second
	return retrieval.NewRetrievabilityCache(client, source, ttl)
}

// logOnlyFireHandler dispatches due intentions by logging them. rook has no
// notification/callback transport of its own; a host embedding this engine
// is expected to replace this with a handler wired to its own channels.
func logOnlyFireHandler(_ context.Context, in intentions.Intention) error {
	log.Info().
		Str("intention_id", in.ID).
		Str("name", in.Name).
		Str("action_type", in.ActionType).
		Msg("intention fired")
	return nil
}
