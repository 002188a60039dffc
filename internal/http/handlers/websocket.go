package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait      = 10 * time.Second
	wsMaxMessageSize = 2 * maxAudioBytes
)

type wsInbound struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type wsOutbound struct {
	Type          string `json:"type"`
	Status        string `json:"status,omitempty"`
	Message       string `json:"message,omitempty"`
	Transcription string `json:"transcription,omitempty"`
	Timestamp     string `json:"timestamp,omitempty"`
}

// WebSocket runs one chat session per connection. Messages are handled in
// order on the connection's goroutine and the session history is dropped on
// disconnect.
func (a *App) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := a.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log().Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsMaxMessageSize)

	sessionID := uuid.NewString()
	a.connections.Add(1)
	logger := a.log().With().Str("session_id", sessionID).Logger()
	logger.Info().Msg("websocket connected")
	defer func() {
		a.connections.Add(-1)
		if a.Chat != nil {
			a.Chat.Forget(sessionID)
		}
		logger.Info().Msg("websocket disconnected")
	}()

	send := func(msg wsOutbound) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(msg)
	}
	if err := send(wsOutbound{Type: "status", Status: "connected", Message: "Connected to AI Avatar"}); err != nil {
		return
	}

	ctx := r.Context()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn().Err(err).Msg("websocket read failed")
			}
			return
		}
		var in wsInbound
		if err := json.Unmarshal(raw, &in); err != nil {
			if send(wsOutbound{Type: "error", Message: "Invalid message format"}) != nil {
				return
			}
			continue
		}
		out, ok := a.handleWSMessage(ctx, sessionID, in)
		if !ok {
			continue
		}
		if err := send(out); err != nil {
			logger.Warn().Err(err).Msg("websocket write failed")
			return
		}
	}
}

// handleWSMessage returns the frame to send back, or false when the inbound
// message warrants no reply.
func (a *App) handleWSMessage(ctx context.Context, sessionID string, in wsInbound) (wsOutbound, bool) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return wsOutbound{}, false
	}
	if a.Chat == nil {
		return wsOutbound{Type: "error", Message: "chat is not configured"}, true
	}
	switch in.Type {
	case "message":
		reply := a.Chat.Reply(ctx, sessionID, content)
		return wsOutbound{Type: "response", Message: reply, Timestamp: a.now().Format(time.RFC3339)}, true
	case "audio":
		if a.Transcriber == nil {
			return wsOutbound{Type: "error", Message: "transcription is not configured"}, true
		}
		audio, err := decodeAudio(content)
		if err != nil {
			return wsOutbound{Type: "error", Message: err.Error()}, true
		}
		text, err := a.Transcriber.Transcribe(ctx, audio, "")
		if err != nil {
			a.log().Error().Err(err).Str("session_id", sessionID).Msg("websocket transcribe failed")
			return wsOutbound{Type: "error", Message: "Transcription failed"}, true
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return wsOutbound{}, false
		}
		reply := a.Chat.Reply(ctx, sessionID, text)
		return wsOutbound{
			Type:          "response",
			Message:       reply,
			Transcription: text,
			Timestamp:     a.now().Format(time.RFC3339),
		}, true
	default:
		return wsOutbound{Type: "error", Message: "Unknown message type"}, true
	}
}

// CheckOrigin builds an Upgrader origin check from the CORS allow list. A "*"
// entry accepts every origin; requests without an Origin header always pass.
func CheckOrigin(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		set[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := set[origin]; ok {
			return true
		}
		return strings.EqualFold(origin, "http://"+r.Host) || strings.EqualFold(origin, "https://"+r.Host)
	}
}
