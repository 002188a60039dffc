package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// ChatClient calls the chat completions endpoint.
type ChatClient struct {
	base
	model       string
	maxTokens   int
	temperature float64
}

// NewChatClient builds a chat client. An empty API key is allowed; calls then
// fail with ErrMissingAPIKey.
func NewChatClient(opts Options) *ChatClient {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultChatModel
	}
	return &ChatClient{
		base:        newBase(opts),
		model:       model,
		maxTokens:   500,
		temperature: 0.7,
	}
}

// Model returns the configured model identifier.
func (c *ChatClient) Model() string {
	return c.model
}

// Complete sends the conversation and returns the assistant's reply.
func (c *ChatClient) Complete(ctx context.Context, messages []Message) (string, error) {
	if !c.HasCredentials() {
		return "", ErrMissingAPIKey
	}
	if len(messages) == 0 {
		return "", errors.New("openai: at least one message is required")
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(chatRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}); err != nil {
		return "", fmt.Errorf("openai: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", &buf)
	if err != nil {
		return "", fmt.Errorf("openai: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai: http request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	raw, err := readBody(resp)
	if err != nil {
		return "", fmt.Errorf("openai: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", statusError(resp.StatusCode, raw)
	}
	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("openai: decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("openai: no choices")
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("openai: empty response")
	}
	c.logger.Debug().Str("model", c.model).Int("messages", len(messages)).Msg("openai: chat completion")
	return text, nil
}

func statusError(status int, raw []byte) error {
	var detail apiError
	if err := json.Unmarshal(raw, &detail); err == nil && detail.Error.Message != "" {
		return fmt.Errorf("openai: %s (status %d)", detail.Error.Message, status)
	}
	return fmt.Errorf("openai: status %d", status)
}
