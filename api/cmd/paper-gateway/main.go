package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"paperai/api/internal/app"
	"paperai/api/internal/config"
	"paperai/api/internal/handle"
	"paperai/api/internal/httpserver"
	"paperai/api/internal/logger"
)

func main() {
	cfg := config.MustLoad()
	log := logger.SetupLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build gateway")
	}
	defer a.Close()

	var papers handle.PaperStore
	if a.Repo != nil {
		papers = a.Repo
	}
	h := handle.New(a.Gateway, papers, handle.Options{
		ClientHeader:    cfg.RateLimit.ClientHeader,
		GenerateTimeout: cfg.HTTP.GenerateTimeout,
		MaxBodyBytes:    cfg.HTTP.MaxBodyBytes,
		Ping:            a.Ping,
		PapersToken:     cfg.HTTP.PapersToken,
	})

	srv := httpserver.New(cfg.HTTP, handle.NewRouter(h, cfg.HTTP.CORSOrigins, log))
	log.Info().Str("default_llm", cfg.LLM.Default).Msg("paper gateway starting")
	if err := httpserver.Run(ctx, srv, cfg.HTTP.ShutdownTimeout, log); err != nil {
		log.Error().Err(err).Msg("http server")
		stop()
		a.Close()
		os.Exit(1)
	}
}
