package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
)

const transcriptionModel = "whisper-1"

// TranscribeClient calls the audio transcription endpoint.
type TranscribeClient struct {
	base
}

// NewTranscribeClient builds a transcription client.
func NewTranscribeClient(opts Options) *TranscribeClient {
	return &TranscribeClient{base: newBase(opts)}
}

// Transcribe uploads audio and returns the recognized text. filename only
// hints the container format to the API; browsers record webm.
func (c *TranscribeClient) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if !c.HasCredentials() {
		return "", ErrMissingAPIKey
	}
	if len(audio) == 0 {
		return "", errors.New("openai: audio is required")
	}
	filename = strings.TrimSpace(filepath.Base(filename))
	if filename == "" || filename == "." || filename == "/" {
		filename = "audio.webm"
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("model", transcriptionModel); err != nil {
		return "", fmt.Errorf("openai: encode form: %w", err)
	}
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("openai: encode form: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("openai: encode form: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("openai: encode form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", fmt.Errorf("openai: build request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
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
	var out struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("openai: decode response: %w", err)
	}
	c.logger.Debug().Int("bytes", len(audio)).Msg("openai: transcribed audio")
	return strings.TrimSpace(out.Text), nil
}
