package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"avatar/internal/chat"
	"avatar/internal/domain"
	"avatar/internal/infra"
	"avatar/internal/providers/did"

	"github.com/gorilla/websocket"
)

// AvatarClient is the subset of the D-ID client the handlers call.
type AvatarClient interface {
	HasCredentials() bool
	MaxWait() time.Duration
	Voices() []domain.Voice
	Submit(ctx context.Context, req domain.TalkRequest) (domain.TalkHandle, error)
	Generate(ctx context.Context, req domain.TalkRequest, maxWait time.Duration) (*domain.TalkResult, error)
	Delete(ctx context.Context, handle domain.TalkHandle) error
	ListAvatars(ctx context.Context) ([]did.Avatar, error)
}

// TalkRefresher brings a stored talk up to date with one remote read.
type TalkRefresher interface {
	Refresh(ctx context.Context, talk domain.Talk) (domain.Talk, error)
}

// Transcriber turns recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// Features reports which optional integrations are configured.
type Features struct {
	TextChat     bool `json:"text_chat"`
	VoiceInput   bool `json:"voice_input"`
	AvatarVideo  bool `json:"avatar_video"`
	TextToSpeech bool `json:"text_to_speech"`
}

// NewFeatures builds the advertised feature set. Text chat is always on: an
// unconfigured completer still answers with the fallback reply.
func NewFeatures(voiceInput, avatarVideo, textToSpeech bool) Features {
	return Features{
		TextChat:     true,
		VoiceInput:   voiceInput,
		AvatarVideo:  avatarVideo,
		TextToSpeech: textToSpeech,
	}
}

type App struct {
	Avatar      AvatarClient
	Talks       domain.TalkRepository
	Refresher   TalkRefresher
	Chat        *chat.Service
	Transcriber Transcriber
	Logger      *infra.Logger
	Features    Features
	Upgrader    websocket.Upgrader
	Now         func() time.Time

	connections atomic.Int64
}

// ActiveConnections reports the number of open WebSocket sessions.
func (a *App) ActiveConnections() int64 {
	return a.connections.Load()
}

func (a *App) log() *infra.Logger {
	if a.Logger == nil {
		return infra.NopLogger()
	}
	return a.Logger
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now().UTC()
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]any{
		"success": false,
		"code":    errCode,
		"error":   message,
	})
}
