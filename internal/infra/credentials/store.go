// Package credentials stores provider API keys in Postgres so deployments can
// rotate them without touching the environment.
package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"avatar/internal/infra"
	"avatar/internal/sqlinline"
)

const (
	ProviderDID        = "d-id"
	ProviderOpenAI     = "openai"
	ProviderElevenLabs = "elevenlabs"
)

// Providers lists every provider a key can be stored for.
func Providers() []string {
	return []string{ProviderDID, ProviderOpenAI, ProviderElevenLabs}
}

func validProvider(provider string) bool {
	for _, p := range Providers() {
		if p == provider {
			return true
		}
	}
	return false
}

type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.sql.Exec(ctx, sqlinline.QEnsureIntegrationTokensTable); err != nil {
		return fmt.Errorf("credentials: ensure schema: %w", err)
	}
	return nil
}

// Token returns the stored key for provider, or "" when none is stored.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", fmt.Errorf("credentials: load %s: %w", provider, err)
	}
	return strings.TrimSpace(token), nil
}

// Resolve prefers a key supplied through configuration and falls back to the
// stored one.
func (s *Store) Resolve(ctx context.Context, provider, configured string) (string, error) {
	if key := strings.TrimSpace(configured); key != "" {
		return key, nil
	}
	return s.Token(ctx, provider)
}

// SetToken upserts the key for provider. props is stored alongside it as
// free-form metadata.
func (s *Store) SetToken(ctx context.Context, provider, token string, props map[string]any) error {
	if !validProvider(provider) {
		return fmt.Errorf("credentials: unsupported provider %q", provider)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("credentials: %s api key is required", provider)
	}
	if props == nil {
		props = map[string]any{}
	}
	raw, err := json.Marshal(props)
	if err != nil {
		return err
	}
	if _, err := s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw); err != nil {
		return fmt.Errorf("credentials: store %s: %w", provider, err)
	}
	return nil
}
