package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/linkscout/citefinder/internal/circuitbreaker"
	"github.com/linkscout/citefinder/internal/config"
	"github.com/linkscout/citefinder/internal/embeddings"
	"github.com/linkscout/citefinder/internal/health"
	"github.com/linkscout/citefinder/internal/httpapi"
	"github.com/linkscout/citefinder/internal/keywords"
	"github.com/linkscout/citefinder/internal/llm"
	"github.com/linkscout/citefinder/internal/pagerank"
	"github.com/linkscout/citefinder/internal/pipeline"
	"github.com/linkscout/citefinder/internal/query"
	"github.com/linkscout/citefinder/internal/ranking"
	"github.com/linkscout/citefinder/internal/ratecontrol"
	"github.com/linkscout/citefinder/internal/reason"
	"github.com/linkscout/citefinder/internal/search"
	"github.com/linkscout/citefinder/internal/tracing"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	policy, err := config.LoadDomainPolicy(cfg.DomainPolicyPath, logger)
	if err != nil {
		logger.Fatal("Failed to load domain policy", zap.Error(err))
	}
	limits, err := ratecontrol.Load(cfg.RateLimitsPath, logger)
	if err != nil {
		logger.Fatal("Failed to load rate limits", zap.Error(err))
	}

	shutdownTracing, err := tracing.Initialize(tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		ServiceName:  cfg.Tracing.ServiceName,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		Version:      version,
	}, logger)
	if err != nil {
		logger.Warn("Failed to initialize tracing", zap.Error(err))
	}

	circuitbreaker.StartMetricsCollection(ctx)
	hm := health.NewManager(logger)

	completer, err := llm.New(cfg.LLM, limits, logger)
	if err != nil {
		logger.Fatal("Failed to create completion client", zap.Error(err))
	}

	// Embeddings back the semantic filter and the semantic signal
	var embedder embeddings.Embedder
	if cfg.Embeddings.Enabled && cfg.LLM.OpenAIAPIKey != "" {
		var cache embeddings.EmbeddingCache
		if cfg.Embeddings.RedisCache {
			rc, err := embeddings.NewRedisCache(ctx, cfg.Redis, logger)
			if err != nil {
				logger.Warn("Embeddings Redis cache init failed, using in-process cache only", zap.Error(err))
			} else {
				defer rc.Close()
				cache = rc
				_ = hm.RegisterChecker(health.NewRedisHealthChecker(rc.Wrapper()))
			}
		}
		embedder = embeddings.NewService(embeddings.Config{
			Model:      cfg.Embeddings.Model,
			CacheTTL:   cfg.Embeddings.CacheTTL,
			MaxLRU:     cfg.Embeddings.CacheSize,
			MaxTextLen: cfg.Embeddings.MaxTextLen,
		}, embeddings.NewOpenAIProvider(cfg.LLM.OpenAIAPIKey, cfg.LLM.OpenAIBaseURL, limits), cache, logger)
	} else {
		logger.Info("Embeddings disabled, semantic stages skipped")
	}

	serperHTTP := circuitbreaker.NewHTTPWrapper(&http.Client{Timeout: cfg.Timeouts.Search}, "serper", logger)
	oprHTTP := circuitbreaker.NewHTTPWrapper(&http.Client{Timeout: cfg.Timeouts.PageRank}, "openpagerank", logger)
	_ = hm.RegisterChecker(health.NewBreakerHealthChecker("serper", serperHTTP.Breaker(), true))
	_ = hm.RegisterChecker(health.NewBreakerHealthChecker("openpagerank", oprHTTP.Breaker(), false))
	_ = hm.RegisterChecker(health.NewConfigHealthChecker("search_api_key", cfg.Search.APIKey != "", true))
	_ = hm.RegisterChecker(health.NewConfigHealthChecker("llm_api_key", llmKeyPresent(cfg.LLM), true))

	retriever := search.NewClient(serperHTTP, cfg.Search, limits, cfg.Timeouts.Search, logger)
	ranks := pagerank.NewClient(oprHTTP, cfg.PageRank, limits, cfg.Timeouts.PageRank, logger)

	scorerOpts := []ranking.ScorerOption{ranking.WithTimeouts(cfg.Timeouts)}
	if ranks.Enabled() {
		scorerOpts = append(scorerOpts, ranking.WithPageRank(ranks))
	}
	if embedder != nil && cfg.Ranking.SemanticSignal {
		scorerOpts = append(scorerOpts, ranking.WithEmbedder(embedder))
	}

	p := pipeline.New(pipeline.Deps{
		Extractor: keywords.NewExtractor(completer, cfg.Keywords, cfg.Timeouts.Extraction, logger),
		Filter:    keywords.NewFilter(embedder, cfg.Keywords, cfg.Timeouts.Embedding, logger),
		Builder:   query.NewBuilder(policy),
		Retriever: retriever,
		Scorer:    ranking.NewScorer(cfg.Ranking.Weights, policy, logger, scorerOpts...),
	}, cfg.Ranking, cfg.Pipeline, logger)
	reasons := reason.NewGenerator(completer, cfg.Timeouts.Reason, logger)

	mux := http.NewServeMux()
	mw := httpapi.NewMiddleware(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, cfg.Server.MaxBodyBytes, logger)
	httpapi.NewHandler(p, reasons, logger).RegisterRoutes(mux, mw.Wrap)
	health.NewHTTPHandler(hm, logger).RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	_ = hm.Start(ctx)
	server := httpapi.NewServer(cfg.Server, mux)
	go func() {
		logger.Info("HTTP server listening",
			zap.String("address", cfg.Server.Addr),
			zap.String("llm_provider", cfg.LLM.Provider),
			zap.Bool("embeddings", embedder != nil),
			zap.Bool("pagerank", ranks.Enabled()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down citefinder")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	_ = hm.Stop()
	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("Tracing shutdown failed", zap.Error(err))
		}
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}
	return zcfg.Build()
}

func llmKeyPresent(cfg config.LLMConfig) bool {
	if cfg.Provider == "anthropic" {
		return cfg.AnthropicAPIKey != ""
	}
	return cfg.OpenAIAPIKey != ""
}
