package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"avatar/internal/adapter/repo"
	"avatar/internal/chat"
	"avatar/internal/domain"
	"avatar/internal/http/handlers"
	httpapi "avatar/internal/http/httpapi"
	"avatar/internal/infra"
	"avatar/internal/infra/credentials"
	"avatar/internal/infra/geoip"
	"avatar/internal/providers/did"
	"avatar/internal/providers/openai"
	"avatar/internal/reconcile"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Talk records live in Postgres when configured, in memory otherwise.
	var talks domain.TalkRepository = repo.NewMemoryTalkRepository()
	didKey, openaiKey := cfg.DIDAPIKey, cfg.OpenAIAPIKey
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	if pool != nil {
		defer pool.Close()
		runner := infra.NewSQLRunner(pool, logger)
		pgTalks := repo.NewTalkRepository(runner)
		if err := pgTalks.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare talk table")
		}
		talks = pgTalks

		creds := credentials.NewStore(runner)
		if err := creds.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare credentials table")
		}
		didKey = resolveKey(ctx, creds, credentials.ProviderDID, didKey, logger)
		openaiKey = resolveKey(ctx, creds, credentials.ProviderOpenAI, openaiKey, logger)
	} else {
		logger.Warn().Msg("DATABASE_URL not set, talk records are kept in memory")
	}

	geo, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	defer geo.Close()

	avatarClient, err := did.NewClient(did.Options{
		APIKey:           didKey,
		BaseURL:          cfg.DIDBaseURL,
		DefaultSourceURL: cfg.DIDSourceURL,
		DefaultVoiceID:   cfg.DIDVoiceID,
		PollInterval:     cfg.AvatarPoll,
		MaxWait:          cfg.AvatarMaxWait,
		Limiter:          did.NewLimiter(cfg.DIDRateLimit),
		Logger:           &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure d-id client")
	}
	if !avatarClient.HasCredentials() {
		logger.Warn().Msg("D_ID_API_KEY missing, avatar video disabled")
	}

	openaiOpts := openai.Options{
		APIKey:       openaiKey,
		BaseURL:      cfg.OpenAIBaseURL,
		Model:        cfg.OpenAIModel,
		Organization: cfg.OpenAIOrg,
		Logger:       &logger,
	}
	chatClient := openai.NewChatClient(openaiOpts)
	transcriber := openai.NewTranscribeClient(openaiOpts)
	if !chatClient.HasCredentials() {
		logger.Warn().Msg("OPENAI_API_KEY missing, chat replies fall back to an apology")
	}

	reconciler := reconcile.New(reconcile.Options{
		Repo:     talks,
		Poller:   avatarClient,
		Logger:   &logger,
		MaxWait:  cfg.AvatarMaxWait,
		Interval: cfg.AvatarPoll,
	})
	if avatarClient.HasCredentials() {
		go func() {
			_ = reconciler.Run(ctx)
		}()
	}

	app := &handlers.App{
		Avatar:      avatarClient,
		Talks:       talks,
		Refresher:   reconciler,
		Chat:        chat.NewBoundedService(chatClient, &logger, cfg.ChatMaxSessions),
		Transcriber: transcriber,
		Logger:      &logger,
		Features: handlers.NewFeatures(
			transcriber.HasCredentials(),
			avatarClient.HasCredentials(),
			cfg.ElevenLabsAPIKey != "",
		),
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     handlers.CheckOrigin(cfg.CORSOrigins),
		},
	}

	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:          logger,
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		CountryLookup:   geo.Lookup(),
		FrontendDir:     cfg.FrontendDir,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on %s", server.Addr())
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

func resolveKey(ctx context.Context, creds *credentials.Store, provider, configured string, logger infra.Logger) string {
	key, err := creds.Resolve(ctx, provider, configured)
	if err != nil {
		logger.Warn().Err(err).Str("provider", provider).Msg("failed to load api key from store")
		return configured
	}
	return key
}
