// Package app wires configuration into a ready gateway; both binaries
// share it.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"paperai/api/internal/config"
	"paperai/api/internal/gateway"
	"paperai/api/internal/llm"
	"paperai/api/internal/llm/gemini"
	"paperai/api/internal/llm/openai"
	"paperai/api/internal/ratelimit"
	"paperai/api/internal/store"
	"paperai/api/internal/validate"
)

const (
	sweepEvery   = 5 * time.Minute
	bucketIdle   = 30 * time.Minute
	janitorEvery = time.Hour
)

type App struct {
	Gateway *gateway.Gateway
	// Repo and Pool are nil without DATABASE_URL.
	Repo *store.GenerationRepo
	Pool *pgxpool.Pool
}

// Engines builds only the backends that have an API key.
func Engines(cfg config.LLM) *llm.Engines {
	e := &llm.Engines{Default: cfg.Default}
	if cfg.GeminiAPIKey != "" {
		e.Gemini = gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel)
	}
	if cfg.OpenAIAPIKey != "" {
		e.OpenAI = openai.New(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
	}
	return e
}

// Build wires the gateway. Background workers (bucket sweeper, audit
// janitor) stop with ctx; Close releases the database pool.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	limiter, err := ratelimit.BuildLimiter(cfg.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	if m, ok := limiter.(*ratelimit.MemoryLimiter); ok {
		go m.RunSweeper(ctx, sweepEvery, bucketIdle)
	}
	log.Info().Str("mode", cfg.RateLimit.Mode).Msg("rate limiter ready")

	v, err := validate.New(validate.WithSemanticChecks(cfg.Validation.Semantic))
	if err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}

	a := &App{}
	opts := []gateway.Option{gateway.WithLogger(log), gateway.WithMaxFiles(cfg.MaxFiles)}
	if cfg.DatabaseURL != "" {
		pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		pool, err := store.NewPool(pctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		repo := store.NewGenerationRepo(pool)
		if err := repo.EnsureSchema(pctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		a.Pool, a.Repo = pool, repo
		opts = append(opts, gateway.WithRecorder(repo))
		if cfg.AuditRetention > 0 {
			go store.RunJanitor(ctx, repo, janitorEvery, cfg.AuditRetention, log)
		}
		log.Info().Msg("generation audit log enabled")
	}

	engines := Engines(cfg.LLM)
	a.Gateway = gateway.New(limiter, engines, v, opts...)
	return a, nil
}

// Ping checks the database when one is configured.
func (a *App) Ping(ctx context.Context) error {
	if a.Pool == nil {
		return nil
	}
	return a.Pool.Ping(ctx)
}

func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
}
