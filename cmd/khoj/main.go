package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/khoj-labs/khoj/internal/config"
	logpkg "github.com/khoj-labs/khoj/internal/logger"
	"github.com/khoj-labs/khoj/internal/metrics"
	"github.com/khoj-labs/khoj/internal/version"

	"github.com/khoj-labs/khoj/internal/gazetteer"
	corpusrepo "github.com/khoj-labs/khoj/internal/repository/corpus"
	feedbackrepo "github.com/khoj-labs/khoj/internal/repository/feedback"
	lexicalrepo "github.com/khoj-labs/khoj/internal/repository/lexical"
	semanticrepo "github.com/khoj-labs/khoj/internal/repository/semantic"
	chiTransport "github.com/khoj-labs/khoj/internal/transport/chi"
	openaiEmb "github.com/khoj-labs/khoj/internal/transport/openai"
	canonuc "github.com/khoj-labs/khoj/internal/usecase/canon"
	searchuc "github.com/khoj-labs/khoj/internal/usecase/search"
)

const rankerVersion = "ranker_v1"

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting khoj API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("redis_addrs", cfg.Redis.Addrs),
		zap.String("qdrant_addr", cfg.Qdrant.Addr),
	)

	ctx := context.Background()

	// Register Prometheus metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()

	// Corpus snapshot: article metadata, chunk texts, canonicalizer vocabulary
	// and gazetteer rows all come from the same parquet export.
	corpus, err := corpusrepo.Load(ctx, corpusrepo.Config{
		ArticlesPath: cfg.Corpus.ArticlesPath,
		ChunksPath:   cfg.Corpus.ChunksPath,
		VocabMinFreq: cfg.Corpus.VocabMinFreq,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to load corpus", zap.Error(err))
	}

	gaz := gazetteer.New(corpus.GazetteerEntries())
	vocab := canonuc.NewVocabulary(corpus.Vocabulary(), gaz.Surfaces())
	canon := canonuc.New(gaz, vocab, canonuc.Config{
		MixedPolicy:  canonuc.MixedPolicy(cfg.Canon.MixedPolicy),
		ShortLen:     cfg.Canon.ShortLen,
		MaxDistShort: cfg.Canon.MaxDistShort,
		MaxDistLong:  cfg.Canon.MaxDistLong,
	})
	logger.Info("Canonicalizer ready",
		zap.Int("gazetteer_entries", gaz.Len()),
		zap.Int("vocabulary_size", vocab.Size()),
	)

	// Lexical backend (RediSearch)
	lexical, err := lexicalrepo.New(lexicalrepo.Config{
		Addrs:    cfg.Redis.Addrs,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		Index:    cfg.Redis.Index,
	})
	if err != nil {
		logger.Fatal("Failed to create lexical backend", zap.Error(err))
	}
	defer lexical.Close()

	if err := lexical.WaitForReady(ctx, time.Duration(cfg.Redis.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Lexical backend not ready", zap.Error(err))
	}
	logger.Info("Connected to lexical backend")

	// Semantic backend (Qdrant)
	semantic, err := semanticrepo.New(semanticrepo.Config{
		Addr:              cfg.Qdrant.Addr,
		ArticleCollection: cfg.Qdrant.ArticleCollection,
		ChunkCollection:   cfg.Qdrant.ChunkCollection,
	})
	if err != nil {
		logger.Fatal("Failed to create semantic backend", zap.Error(err))
	}
	defer func() { _ = semantic.Close() }()

	// Query embedder
	embedder := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	// Search service
	searchSvc := searchuc.New(canon, lexical, semantic, embedder, corpus, searchuc.Config{
		LexicalTimeout:  time.Duration(cfg.Search.LexicalTimeoutMS) * time.Millisecond,
		SemanticTimeout: time.Duration(cfg.Search.SemanticTimeoutMS) * time.Millisecond,
		LexicalTopK:     cfg.Search.LexicalTopK,
		SemArticleTopK:  cfg.Search.SemArticleTopK,
		SemChunkTopK:    cfg.Search.SemChunkTopK,
		CandidateCap:    cfg.Search.CandidateCap,
		DefaultPageSize: cfg.Search.DefaultPageSize,
		MaxPageSize:     cfg.Search.MaxPageSize,
		LogTopN:         cfg.Search.LogTopN,
		Weights:         weightsFromConfig(cfg.Search.Weights),
	}).WithEntityDetector(gaz)

	// Feedback store (optional)
	var labels chiTransport.Labeler
	if cfg.Feedback.Enabled {
		feedback, err := feedbackrepo.Open(cfg.Feedback.Path, feedbackrepo.Versions{
			Ranker:    rankerVersion,
			Retrieval: version.Version,
		})
		if err != nil {
			logger.Fatal("Failed to open feedback store", zap.Error(err))
		}
		defer func() { _ = feedback.Close() }()
		searchSvc.WithFeedback(feedback)
		labels = feedback
		logger.Info("Feedback store ready", zap.String("path", cfg.Feedback.Path))
	}

	// Health checks
	checks := map[string]chiTransport.HealthCheck{
		"lexical":   lexical.Ping,
		"embedding": embedder.HealthCheck,
	}

	server := chiTransport.NewServer(searchSvc, labels, checks, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())

	r.Post("/search", server.Search)
	r.Post("/label", server.Label)
	r.Post("/label_query", server.LabelQuery)
	r.Get("/health", server.HealthCheck)
	r.Get("/metrics", server.Metrics)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

func weightsFromConfig(w config.WeightsConfig) searchuc.Weights {
	if w == (config.WeightsConfig{}) {
		return searchuc.DefaultWeights()
	}
	return searchuc.Weights{
		Lex:                 w.Lexical,
		SemArticle:          w.SemArticle,
		SemChunk:            w.SemChunk,
		FacetBoost:          w.FacetBoost,
		RecencyMax:          w.RecencyMax,
		RecencyHalfLifeDays: w.RecencyHalfLifeDays,
	}
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
