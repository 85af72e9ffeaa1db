package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/arcadia-ai/dataagent/pkg/agent"
	"github.com/arcadia-ai/dataagent/pkg/config"
	"github.com/arcadia-ai/dataagent/pkg/executor"
	"github.com/arcadia-ai/dataagent/pkg/handlers"
	"github.com/arcadia-ai/dataagent/pkg/history"
	"github.com/arcadia-ai/dataagent/pkg/llm"
	"github.com/arcadia-ai/dataagent/pkg/middleware"
	"github.com/arcadia-ai/dataagent/pkg/retry"
	"github.com/arcadia-ai/dataagent/pkg/schema"
	"github.com/arcadia-ai/dataagent/pkg/search"
	"github.com/arcadia-ai/dataagent/pkg/semantics"
	"github.com/arcadia-ai/dataagent/pkg/session"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var logger *zap.Logger
	if cfg.Env == "local" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", cfg.Database.Host),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("ai_model", cfg.AI.Model))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database startup races container orchestration; retry with backoff
	// instead of crash-looping.
	pool, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*pgxpool.Pool, error) {
		p, err := pgxpool.New(ctx, cfg.Database.ConnString())
		if err != nil {
			return nil, err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return nil, err
		}
		return p, nil
	})
	if err != nil {
		logger.Fatal("database unavailable", zap.Error(err))
	}
	defer pool.Close()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, schema cache is in-process only", zap.Error(err))
			redisClient = nil
		}
	}

	clients, err := llm.NewClientSet(&llm.FactoryConfig{
		Provider:          llm.Provider(cfg.AI.Provider),
		Endpoint:          cfg.AI.Endpoint,
		APIKey:            cfg.AI.APIKey,
		Model:             cfg.AI.Model,
		FastModel:         cfg.AI.FastModel,
		EmbeddingEndpoint: cfg.AI.EmbeddingEndpoint,
		EmbeddingAPIKey:   cfg.AI.EmbeddingAPIKey,
		EmbeddingModel:    cfg.AI.EmbeddingModel,
	}, logger)
	if err != nil {
		logger.Fatal("failed to create model clients", zap.Error(err))
	}

	layer := semantics.Default()
	clock := session.SystemClock{}

	schemaCache := schema.NewCache(time.Duration(cfg.Agent.SchemaTTLMinutes)*time.Minute, clock, redisClient, logger)
	introspector := schema.NewPostgresIntrospector(pool, schemaCache, logger)

	index := search.NewIndex(clients.Embedding, clients.EmbeddingModel, logger)
	sessions := session.NewMemoryStore(time.Duration(cfg.Agent.SessionTTLMinutes)*time.Minute, clock, logger)
	session.StartSweeping(ctx, sessions, time.Duration(cfg.Agent.SessionSweepSeconds)*time.Second)
	queryHistory := history.NewMemoryStore()

	generator := agent.NewGenerator(clients.Default, clients.Fast, cfg.Agent.TenantColumn, cfg.Agent.DefaultRowLimit, logger)
	corrector := executor.NewCorrector(executor.NewPostgresExecutor(pool, logger), generator, logger)

	service := agent.NewService(agent.ServiceDeps{
		Introspector: introspector,
		Index:        index,
		Sessions:     sessions,
		History:      queryHistory,
		Layer:        layer,
		Planner:      agent.NewPlanner(layer, logger),
		Decomposer:   agent.NewDecomposer(clients.Fast, layer, logger),
		Generator:    generator,
		Corrector:    corrector,
		Stitcher:     agent.NewStitcher(logger),
		Presenter:    agent.NewPresenter(layer, logger),
		Logger:       logger,
	})

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewAnalyzeHandler(service, logger).RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.BindAddr + ":" + cfg.Port,
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("starting dataagent",
		zap.String("addr", server.Addr),
		zap.String("version", cfg.Version))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server failed", zap.Error(err))
	}
}
