package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Host             string
	Port             string
	DatabaseURL      string
	FrontendDir      string
	GeoIPDBPath      string
	CORSOrigins      []string
	DIDAPIKey        string
	DIDBaseURL       string
	DIDSourceURL     string
	DIDVoiceID       string
	DIDRateLimit     int
	AvatarMaxWait    time.Duration
	AvatarPoll       time.Duration
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAIModel      string
	OpenAIOrg        string
	ElevenLabsAPIKey string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	ChatMaxSessions  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Host:             getEnv("HOST", "0.0.0.0"),
		Port:             getEnv("PORT", "5000"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		FrontendDir:      os.Getenv("FRONTEND_DIR"),
		GeoIPDBPath:      os.Getenv("GEOIP_DB_PATH"),
		CORSOrigins:      splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		DIDAPIKey:        strings.TrimSpace(os.Getenv("D_ID_API_KEY")),
		DIDBaseURL:       getEnv("D_ID_BASE_URL", "https://api.d-id.com"),
		DIDSourceURL:     os.Getenv("D_ID_DEFAULT_SOURCE_URL"),
		DIDVoiceID:       os.Getenv("D_ID_DEFAULT_VOICE"),
		DIDRateLimit:     getEnvInt("D_ID_REQUESTS_PER_SECOND", 0),
		AvatarMaxWait:    time.Second * time.Duration(getEnvInt("AVATAR_MAX_WAIT_SECONDS", 60)),
		AvatarPoll:       time.Millisecond * time.Duration(getEnvInt("AVATAR_POLL_INTERVAL_MS", 2000)),
		OpenAIAPIKey:     strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:      getEnv("OPENAI_MODEL", "gpt-4"),
		OpenAIOrg:        os.Getenv("OPENAI_ORG"),
		ElevenLabsAPIKey: strings.TrimSpace(os.Getenv("ELEVENLABS_API_KEY")),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 90)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		ChatMaxSessions:  getEnvInt("CHAT_MAX_SESSIONS", 1000),
	}

	if cfg.AvatarMaxWait <= 0 {
		return nil, fmt.Errorf("AVATAR_MAX_WAIT_SECONDS must be positive")
	}
	if cfg.AvatarPoll <= 0 {
		return nil, fmt.Errorf("AVATAR_POLL_INTERVAL_MS must be positive")
	}
	// A synchronous generate call holds the response open for the whole wait.
	if cfg.HTTPWriteTimeout < cfg.AvatarMaxWait {
		cfg.HTTPWriteTimeout = cfg.AvatarMaxWait + 10*time.Second
	}

	return cfg, nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
