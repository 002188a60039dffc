package did

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"avatar/internal/domain"
	"avatar/internal/infra"
)

const (
	DefaultBaseURL      = "https://api.d-id.com"
	DefaultSourceURL    = "https://create-images-results.d-id.com/DefaultPresenters/Noelle_f/image.jpeg"
	DefaultPollInterval = 2 * time.Second
	DefaultMaxWait      = 60 * time.Second

	maxResponseBytes = 4 << 20
)

// Options configures the D-ID talks client. The values are copied at
// construction; the client never reads the environment.
type Options struct {
	APIKey           string
	BaseURL          string
	DefaultSourceURL string
	DefaultVoiceID   string
	PollInterval     time.Duration
	MaxWait          time.Duration
	HTTPClient       *http.Client
	RequestTimeout   time.Duration
	Logger           *infra.Logger
	Clock            Clock
	Breaker          *gobreaker.CircuitBreaker
	// Limiter throttles outbound requests. Nil means unlimited.
	Limiter *rate.Limiter
}

// Client submits talk jobs to D-ID and waits for them to resolve.
type Client struct {
	apiKey       string
	baseURL      string
	sourceURL    string
	voiceID      string
	pollInterval time.Duration
	maxWait      time.Duration
	httpClient   *http.Client
	logger       *infra.Logger
	clock        Clock
	breaker      *gobreaker.CircuitBreaker
	limiter      *rate.Limiter
}

// Avatar is a presenter image stored in the D-ID account.
type Avatar struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	CreatedAt string `json:"created_at,omitempty"`
}

type talkPayload struct {
	SourceURL string       `json:"source_url"`
	Script    talkScript   `json:"script"`
	Config    talkSettings `json:"config"`
}

type talkScript struct {
	Type     string       `json:"type"`
	Input    string       `json:"input"`
	Provider talkProvider `json:"provider"`
}

type talkProvider struct {
	Type    string `json:"type"`
	VoiceID string `json:"voice_id"`
}

type talkSettings struct {
	Fluent   bool    `json:"fluent"`
	PadAudio float64 `json:"pad_audio"`
	Stitch   bool    `json:"stitch"`
}

type createResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type statusResponse struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	ResultURL string          `json:"result_url"`
	Error     json.RawMessage `json:"error"`
}

type errorResponse struct {
	Kind        string `json:"kind"`
	Description string `json:"description"`
	Message     string `json:"message"`
}

type imagesResponse struct {
	Images []Avatar `json:"images"`
}

type response struct {
	status int
	body   []byte
}

// NewClient constructs a client with defaults for every unset option.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if parsed, err := url.Parse(baseURL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("did: invalid base url %q", opts.BaseURL)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock()
	}
	breaker := opts.Breaker
	if breaker == nil {
		breaker = NewBreaker("d-id", logger)
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	maxWait := opts.MaxWait
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	return &Client{
		apiKey:       strings.TrimSpace(opts.APIKey),
		baseURL:      baseURL,
		sourceURL:    firstNonEmpty(opts.DefaultSourceURL, DefaultSourceURL),
		voiceID:      firstNonEmpty(opts.DefaultVoiceID, domain.DefaultVoiceID),
		pollInterval: pollInterval,
		maxWait:      maxWait,
		httpClient:   httpClient,
		logger:       logger,
		clock:        clock,
		breaker:      breaker,
		limiter:      limiter,
	}, nil
}

// NewLimiter allows perSecond outbound requests with a burst of the same size.
// A non-positive rate returns nil, which the client treats as unlimited.
func NewLimiter(perSecond int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSecond), perSecond)
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// MaxWait returns the configured default wait budget.
func (c *Client) MaxWait() time.Duration { return c.maxWait }

// PollInterval returns the configured delay between status reads.
func (c *Client) PollInterval() time.Duration { return c.pollInterval }

// Voices returns the voice catalog the provider accepts.
func (c *Client) Voices() []domain.Voice { return domain.Voices() }

// Submit creates a talk and returns its handle. Failures are never retried.
func (c *Client) Submit(ctx context.Context, req domain.TalkRequest) (domain.TalkHandle, error) {
	if !c.HasCredentials() {
		return "", &SubmissionError{Message: "api key is required", Err: ErrMissingAPIKey}
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return "", &SubmissionError{Message: "text is required", Err: domain.ErrInvalidRequest}
	}
	settings := domain.DefaultTalkConfig()
	if req.Config != nil {
		settings = *req.Config
	}
	payload := talkPayload{
		SourceURL: firstNonEmpty(req.SourceURL, c.sourceURL),
		Script: talkScript{
			Type:  "text",
			Input: text,
			Provider: talkProvider{
				Type:    "microsoft",
				VoiceID: firstNonEmpty(req.VoiceID, c.voiceID),
			},
		},
		Config: talkSettings{
			Fluent:   settings.Fluent,
			PadAudio: settings.PadAudio,
			Stitch:   settings.Stitch,
		},
	}

	res, err := c.send(ctx, http.MethodPost, "/talks", payload)
	if err != nil {
		return "", &SubmissionError{Err: err}
	}
	if res.status >= 300 {
		return "", &SubmissionError{StatusCode: res.status, Message: remoteMessage(res.body)}
	}
	var decoded createResponse
	if err := json.Unmarshal(res.body, &decoded); err != nil {
		return "", &SubmissionError{StatusCode: res.status, Err: fmt.Errorf("decode response: %w", err)}
	}
	handle := domain.TalkHandle(strings.TrimSpace(decoded.ID))
	if handle == "" {
		return "", &SubmissionError{StatusCode: res.status, Message: "empty talk id"}
	}
	c.logger.Debug().
		Str("talk_id", handle.String()).
		Str("status", decoded.Status).
		Str("voice_id", payload.Script.Provider.VoiceID).
		Msg("did: talk submitted")
	return handle, nil
}

// PollStatus reads the current status of a talk once.
func (c *Client) PollStatus(ctx context.Context, handle domain.TalkHandle) (*domain.TalkResult, error) {
	if !c.HasCredentials() {
		return nil, &PollError{Handle: handle, Message: "api key is required", Err: ErrMissingAPIKey}
	}
	res, err := c.send(ctx, http.MethodGet, "/talks/"+url.PathEscape(handle.String()), nil)
	if err != nil {
		return nil, &PollError{Handle: handle, Err: err}
	}
	if res.status >= 300 {
		return nil, &PollError{Handle: handle, StatusCode: res.status, Message: remoteMessage(res.body)}
	}
	var decoded statusResponse
	if err := json.Unmarshal(res.body, &decoded); err != nil {
		return nil, &PollError{Handle: handle, StatusCode: res.status, Err: fmt.Errorf("decode response: %w", err)}
	}
	result := &domain.TalkResult{
		Handle: handle,
		Status: domain.ParseTalkStatus(decoded.Status),
		Raw:    json.RawMessage(res.body),
	}
	switch {
	case result.Status == domain.TalkStatusDone:
		result.ResultURL = strings.TrimSpace(decoded.ResultURL)
	case result.Status.Failed():
		result.ErrorMessage = errorDetail(decoded.Error)
	}
	return result, nil
}

// AwaitCompletion polls handle every pollInterval until it reaches a terminal
// status, a poll fails, or maxWait has elapsed since the first poll started.
// Zero durations fall back to the client defaults. The remote talk is left
// untouched when the wait ends early.
//
// Concurrent waits on one Client share its circuit breaker and rate limiter:
// repeated 5xx responses seen by one job can make another job's poll fail
// fast with gobreaker.ErrOpenState, and all jobs draw from one request budget.
func (c *Client) AwaitCompletion(ctx context.Context, handle domain.TalkHandle, maxWait, pollInterval time.Duration) (*domain.TalkResult, error) {
	if maxWait <= 0 {
		maxWait = c.maxWait
	}
	if pollInterval <= 0 {
		pollInterval = c.pollInterval
	}
	start := c.clock.Now()
	polls := 0
	var last *domain.TalkResult
	for c.clock.Now().Sub(start) < maxWait {
		result, err := c.PollStatus(ctx, handle)
		polls++
		if err != nil {
			return nil, err
		}
		last = result
		switch {
		case result.Status == domain.TalkStatusDone:
			c.logger.Info().Str("talk_id", handle.String()).Int("polls", polls).Msg("did: talk done")
			return result, nil
		case result.Status.Failed():
			return nil, &RemoteJobFailure{
				Handle:  handle,
				Status:  result.Status,
				Message: result.ErrorMessage,
				Result:  result,
			}
		}
		remaining := maxWait - c.clock.Now().Sub(start)
		if remaining <= 0 {
			break
		}
		if err := c.clock.Sleep(ctx, min(pollInterval, remaining)); err != nil {
			return nil, err
		}
	}
	timeout := &TimeoutError{Handle: handle, Waited: c.clock.Now().Sub(start), Polls: polls}
	if last != nil {
		timeout.LastRaw = last.Raw
	}
	c.logger.Warn().Str("talk_id", handle.String()).Int("polls", polls).Dur("waited", timeout.Waited).Msg("did: talk timed out")
	return nil, timeout
}

// Generate submits req and waits up to maxWait for the resulting video.
func (c *Client) Generate(ctx context.Context, req domain.TalkRequest, maxWait time.Duration) (*domain.TalkResult, error) {
	handle, err := c.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.AwaitCompletion(ctx, handle, maxWait, c.pollInterval)
}

// Delete removes a talk and its rendered video on the provider side.
func (c *Client) Delete(ctx context.Context, handle domain.TalkHandle) error {
	if !c.HasCredentials() {
		return ErrMissingAPIKey
	}
	res, err := c.send(ctx, http.MethodDelete, "/talks/"+url.PathEscape(handle.String()), nil)
	if err != nil {
		return fmt.Errorf("did: delete %s: %w", handle, err)
	}
	if res.status == http.StatusNotFound {
		return fmt.Errorf("did: delete %s: %w", handle, domain.ErrNotFound)
	}
	if res.status >= 300 {
		return fmt.Errorf("did: delete %s: status %d: %s", handle, res.status, remoteMessage(res.body))
	}
	return nil
}

// ListAvatars returns the presenter images uploaded to the account.
func (c *Client) ListAvatars(ctx context.Context) ([]Avatar, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	res, err := c.send(ctx, http.MethodGet, "/images", nil)
	if err != nil {
		return nil, fmt.Errorf("did: list images: %w", err)
	}
	if res.status >= 300 {
		return nil, fmt.Errorf("did: list images: status %d: %s", res.status, remoteMessage(res.body))
	}
	var decoded imagesResponse
	if err := json.Unmarshal(res.body, &decoded); err != nil {
		return nil, fmt.Errorf("did: decode images: %w", err)
	}
	if decoded.Images == nil {
		decoded.Images = []Avatar{}
	}
	return decoded.Images, nil
}

// send performs one request through the breaker. 5xx responses come back as a
// normal response; only transport failures and an open breaker are errors.
func (c *Client) send(ctx context.Context, method, path string, payload any) (*response, error) {
	var body []byte
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = encoded
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	out, err := c.breaker.Execute(func() (interface{}, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Authorization", "Basic "+c.apiKey)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("http request: %w", err)
		}
		defer resp.Body.Close()
		raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		res := &response{status: resp.StatusCode, body: raw}
		if resp.StatusCode >= 500 {
			return res, errServerStatus
		}
		return res, nil
	})
	if errors.Is(err, errServerStatus) {
		return out.(*response), nil
	}
	if err != nil {
		c.logger.Error().Err(err).Str("method", method).Str("path", path).Msg("did: request failed")
		return nil, err
	}
	return out.(*response), nil
}

func remoteMessage(raw []byte) string {
	var detail errorResponse
	if err := json.Unmarshal(raw, &detail); err == nil {
		if msg := firstNonEmpty(detail.Message, detail.Description); msg != "" {
			return msg
		}
		if detail.Kind != "" {
			return detail.Kind
		}
	}
	text := strings.TrimSpace(string(raw))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

// errorDetail extracts the description from a status payload's error field,
// which D-ID sends either as an object or as a plain string.
func errorDetail(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var detail errorResponse
	if err := json.Unmarshal(raw, &detail); err == nil {
		return firstNonEmpty(detail.Description, detail.Message, detail.Kind)
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
