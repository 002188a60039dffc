package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"avatar/internal/adapter/repo"
	"avatar/internal/infra"
	"avatar/internal/infra/credentials"
	"avatar/internal/providers/did"
	"avatar/internal/reconcile"
)

// The worker resolves talks submitted through POST /api/avatar/talks when the
// API runs on more than one instance.
func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	if pool == nil {
		logger.Fatal().Msg("worker: DATABASE_URL is required")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)
	talks := repo.NewTalkRepository(runner)
	if err := talks.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to prepare talk table")
	}

	apiKey, err := credentials.NewStore(runner).Resolve(ctx, credentials.ProviderDID, cfg.DIDAPIKey)
	if err != nil {
		logger.Warn().Err(err).Msg("worker: failed to load d-id api key from store")
		apiKey = cfg.DIDAPIKey
	}
	if apiKey == "" {
		logger.Fatal().Msg("worker: D_ID_API_KEY is required")
	}

	client, err := did.NewClient(did.Options{
		APIKey:       apiKey,
		BaseURL:      cfg.DIDBaseURL,
		PollInterval: cfg.AvatarPoll,
		MaxWait:      cfg.AvatarMaxWait,
		Limiter:      did.NewLimiter(cfg.DIDRateLimit),
		Logger:       &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure d-id client")
	}

	reconciler := reconcile.New(reconcile.Options{
		Repo:     talks,
		Poller:   client,
		Logger:   &logger,
		MaxWait:  cfg.AvatarMaxWait,
		Interval: cfg.AvatarPoll,
	})

	logger.Info().Dur("interval", cfg.AvatarPoll).Dur("max_wait", cfg.AvatarMaxWait).Msg("worker: started")
	if err := reconciler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("worker: stopped with error")
		os.Exit(1)
	}
	logger.Info().Msg("worker: stopped")
}
