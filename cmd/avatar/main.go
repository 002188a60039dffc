package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"avatar/internal/domain"
	"avatar/internal/infra"
	"avatar/internal/providers/did"
)

func main() {
	var (
		voiceFlag  string
		sourceFlag string
		waitFlag   time.Duration
	)
	flag.StringVar(&voiceFlag, "voice", "", "voice id (defaults to D_ID_DEFAULT_VOICE or "+domain.DefaultVoiceID+")")
	flag.StringVar(&sourceFlag, "source", "", "presenter image url")
	flag.DurationVar(&waitFlag, "wait", 0, "maximum time to wait for the video (defaults to AVATAR_MAX_WAIT_SECONDS)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] text...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	text := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if text == "" {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := infra.NewLogger(cfg.AppEnv).With().Str("cmd", "avatar").Logger()

	client, err := did.NewClient(did.Options{
		APIKey:           cfg.DIDAPIKey,
		BaseURL:          cfg.DIDBaseURL,
		DefaultSourceURL: cfg.DIDSourceURL,
		DefaultVoiceID:   cfg.DIDVoiceID,
		PollInterval:     cfg.AvatarPoll,
		MaxWait:          cfg.AvatarMaxWait,
		Limiter:          did.NewLimiter(cfg.DIDRateLimit),
		Logger:           &logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "d-id client: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	maxWait := waitFlag
	if maxWait <= 0 {
		maxWait = client.MaxWait()
	}
	result, err := client.Generate(ctx, domain.TalkRequest{
		Text:      text,
		SourceURL: sourceFlag,
		VoiceID:   voiceFlag,
	}, maxWait)
	if err != nil {
		fmt.Fprintln(os.Stderr, describe(err))
		os.Exit(1)
	}
	fmt.Println(result.ResultURL)
}

func describe(err error) string {
	var timeout *did.TimeoutError
	var failure *did.RemoteJobFailure
	switch {
	case errors.Is(err, did.ErrMissingAPIKey):
		return "D_ID_API_KEY is not set"
	case errors.As(err, &timeout):
		return fmt.Sprintf("video %s not ready after %s; check it later with GET /talks/%s", timeout.Handle, timeout.Waited.Round(time.Second), timeout.Handle)
	case errors.As(err, &failure):
		return failure.Error()
	default:
		return err.Error()
	}
}
