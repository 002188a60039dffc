package openai

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"avatar/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("openai: api key is required")

const (
	defaultBaseURL   = "https://api.openai.com/v1"
	defaultChatModel = "gpt-4"
	defaultTimeout   = 60 * time.Second
)

// Options configures both OpenAI clients.
type Options struct {
	APIKey       string
	BaseURL      string
	Model        string
	Organization string
	HTTPClient   *http.Client
	Logger       *infra.Logger
}

type base struct {
	apiKey       string
	baseURL      string
	organization string
	client       *http.Client
	logger       *infra.Logger
}

func newBase(opts Options) base {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	return base{
		apiKey:       strings.TrimSpace(opts.APIKey),
		baseURL:      baseURL,
		organization: strings.TrimSpace(opts.Organization),
		client:       client,
		logger:       logger,
	}
}

// HasCredentials reports whether the client can perform remote calls.
func (b base) HasCredentials() bool {
	return b.apiKey != ""
}

func (b base) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+b.apiKey)
	if b.organization != "" {
		req.Header.Set("OpenAI-Organization", b.organization)
	}
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

func readBody(resp *http.Response) ([]byte, error) {
	return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
}
