package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quizsmith/quizsmith/internal/ai"
	"github.com/quizsmith/quizsmith/internal/pipeline"
	"github.com/quizsmith/quizsmith/internal/platform/cache"
	"github.com/quizsmith/quizsmith/internal/platform/config"
	"github.com/quizsmith/quizsmith/internal/platform/database"
	"github.com/quizsmith/quizsmith/internal/quiz"
	"github.com/quizsmith/quizsmith/internal/render"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	deps := make(map[string]healthChecker)

	// Without Postgres the in-memory store keeps the service usable for
	// development; state is lost on restart.
	var store quiz.Store = quiz.NewMemoryStore()
	db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
	if err != nil {
		slog.Warn("database unavailable, using in-memory store", "error", err)
	} else {
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			slog.Error("migration failed", "error", err)
			os.Exit(1)
		}
		pgStore, err := quiz.NewPostgresStore(db.Pool)
		if err != nil {
			slog.Error("failed to create store", "error", err)
			os.Exit(1)
		}
		store = pgStore
		deps["database"] = db
	}

	var renderer render.Renderer = render.NewHTTPRenderer(cfg.Render.Timeout())
	pageCache, err := cache.New(ctx, cfg.Cache.URL)
	if err != nil {
		slog.Warn("cache unavailable, rendering without page cache", "error", err)
	} else {
		defer pageCache.Close()
		renderer = render.NewCachedRenderer(renderer, pageCache, cfg.Render.CacheTTL())
		deps["cache"] = pageCache
	}

	router := newCompletionRouter(cfg.AI)
	orch := pipeline.NewOrchestrator(renderer, router, store, ai.RetryConfig{},
		pipeline.WithMaxConcurrency(cfg.Pipeline.MaxConcurrency),
		pipeline.WithAutoFinalizeDelay(cfg.Pipeline.FinalizeDelay()),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      newServer(store, orch, deps).routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// newCompletionRouter registers every configured provider; OpenAI first,
// DeepSeek as fallback.
func newCompletionRouter(cfg config.AIConfig) *ai.Router {
	router := ai.NewRouter()
	if cfg.OpenAI.APIKey != "" {
		opts := []ai.OpenAIOption{}
		if cfg.OpenAI.Model != "" {
			opts = append(opts, ai.WithDefaultModel(cfg.OpenAI.Model))
		}
		router.Register("openai", ai.NewOpenAIProvider(cfg.OpenAI.APIKey, opts...))
	}
	if cfg.DeepSeek.APIKey != "" {
		opts := []ai.OpenAIOption{}
		if cfg.DeepSeek.Model != "" {
			opts = append(opts, ai.WithDefaultModel(cfg.DeepSeek.Model))
		}
		router.Register("deepseek", ai.NewDeepSeekProvider(cfg.DeepSeek.APIKey, opts...))
	}
	return router
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
