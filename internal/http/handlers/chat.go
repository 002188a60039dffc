package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"avatar/internal/providers/openai"

	"github.com/google/uuid"
)

const maxAudioBytes = 25 << 20

type chatRequest struct {
	Message   string `json:"message" validate:"max=4000"`
	SessionID string `json:"session_id" validate:"max=128"`
}

type transcribeRequest struct {
	Audio    string `json:"audio"`
	Filename string `json:"filename" validate:"max=255"`
}

func (a *App) ChatMessage(w http.ResponseWriter, r *http.Request) {
	if a.Chat == nil {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "chat is not configured")
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if msg := validateRequest(&req); msg != "" {
		a.error(w, http.StatusBadRequest, "validation_error", msg)
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "Message is required")
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	reply := a.Chat.Reply(r.Context(), sessionID, message)
	a.json(w, http.StatusOK, map[string]any{
		"success":    true,
		"message":    reply,
		"session_id": sessionID,
	})
}

func (a *App) Transcribe(w http.ResponseWriter, r *http.Request) {
	if a.Transcriber == nil {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "transcription is not configured")
		return
	}
	var req transcribeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAudioBytes*2)).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if msg := validateRequest(&req); msg != "" {
		a.error(w, http.StatusBadRequest, "validation_error", msg)
		return
	}
	audio, err := decodeAudio(req.Audio)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	text, err := a.Transcriber.Transcribe(r.Context(), audio, req.Filename)
	if err != nil {
		if errors.Is(err, openai.ErrMissingAPIKey) {
			a.error(w, http.StatusServiceUnavailable, "unavailable", "transcription is not configured")
			return
		}
		a.log().Error().Err(err).Msg("transcribe failed")
		a.error(w, http.StatusBadGateway, "upstream_error", "transcription failed")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"success": true, "text": text})
}

var errAudioRequired = errors.New("audio data is required")

// decodeAudio accepts plain base64 or a data URL as produced by FileReader.
func decodeAudio(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if i := strings.Index(encoded, ";base64,"); i >= 0 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[i+len(";base64,"):]
	}
	if encoded == "" {
		return nil, errAudioRequired
	}
	audio, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.New("audio must be base64 encoded")
	}
	if len(audio) == 0 {
		return nil, errAudioRequired
	}
	if len(audio) > maxAudioBytes {
		return nil, errors.New("audio exceeds 25MB")
	}
	return audio, nil
}
