// Package chat keeps per-session conversation history and produces assistant
// replies for the WebSocket and REST chat endpoints.
package chat

import (
	"context"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"avatar/internal/infra"
	"avatar/internal/providers/openai"
)

const (
	SystemPrompt = "You are a helpful, friendly, and unbiased AI assistant. " +
		"You provide accurate, thoughtful responses to any questions without bias or judgment. " +
		"You are conversational, engaging, and aim to be as helpful as possible. " +
		"Keep your responses concise but informative, suitable for voice delivery."

	// FallbackReply is returned when the completion call fails.
	FallbackReply = "I apologize, but I encountered an error processing your request. Please try again."

	// DefaultMaxSessions bounds the conversations held in memory. The least
	// recently used one is evicted first.
	DefaultMaxSessions = 1000

	// maxHistory is the number of user/assistant messages kept after the system prompt.
	maxHistory = 20
)

// Completer produces the next assistant message for a conversation.
type Completer interface {
	Complete(ctx context.Context, messages []openai.Message) (string, error)
}

// Service owns the conversation histories. It is safe for concurrent use;
// turns within one session are serialized.
type Service struct {
	completer Completer
	logger    *infra.Logger

	// mu makes get-or-create on sessions atomic.
	mu       sync.Mutex
	sessions *lru.Cache
}

type session struct {
	mu      sync.Mutex
	history []openai.Message
}

// NewService builds a chat service around completer holding at most
// DefaultMaxSessions conversations.
func NewService(completer Completer, logger *infra.Logger) *Service {
	return NewBoundedService(completer, logger, DefaultMaxSessions)
}

// NewBoundedService is NewService with an explicit session cap. A
// non-positive cap uses DefaultMaxSessions.
func NewBoundedService(completer Completer, logger *infra.Logger, maxSessions int) *Service {
	if logger == nil {
		logger = infra.NopLogger()
	}
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	sessions, err := lru.NewWithEvict(maxSessions, func(key, _ interface{}) {
		logger.Debug().Str("session_id", key.(string)).Msg("chat: session evicted")
	})
	if err != nil {
		// Only a non-positive size fails, which is excluded above.
		panic(err)
	}
	return &Service{
		completer: completer,
		logger:    logger,
		sessions:  sessions,
	}
}

// Reply records text as the user's turn and returns the assistant's answer.
// On completion failure it logs, keeps the user turn, and returns FallbackReply.
func (s *Service) Reply(ctx context.Context, sessionID, text string) string {
	sess := s.session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.history = append(sess.history, openai.Message{Role: openai.RoleUser, Content: strings.TrimSpace(text)})
	snapshot := make([]openai.Message, len(sess.history))
	copy(snapshot, sess.history)

	answer, err := s.completer.Complete(ctx, snapshot)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("chat: completion failed")
		return FallbackReply
	}
	sess.history = append(sess.history, openai.Message{Role: openai.RoleAssistant, Content: answer})
	sess.history = trim(sess.history)
	return answer
}

// History returns a copy of the session's messages, system prompt included.
func (s *Service) History(sessionID string) []openai.Message {
	v, ok := s.sessions.Peek(sessionID)
	if !ok {
		return nil
	}
	sess := v.(*session)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	out := make([]openai.Message, len(sess.history))
	copy(out, sess.history)
	return out
}

// Forget drops a session's history.
func (s *Service) Forget(sessionID string) {
	s.sessions.Remove(sessionID)
}

// Sessions reports how many conversations are held in memory.
func (s *Service) Sessions() int {
	return s.sessions.Len()
}

func (s *Service) session(id string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.sessions.Get(id); ok {
		return v.(*session)
	}
	sess := &session{history: []openai.Message{{Role: openai.RoleSystem, Content: SystemPrompt}}}
	s.sessions.Add(id, sess)
	return sess
}

// trim keeps the system prompt plus the most recent maxHistory messages.
func trim(history []openai.Message) []openai.Message {
	if len(history) <= maxHistory+1 {
		return history
	}
	out := make([]openai.Message, 0, maxHistory+1)
	out = append(out, history[0])
	return append(out, history[len(history)-maxHistory:]...)
}
