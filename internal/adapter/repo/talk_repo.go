package repo

import (
	"context"
	"fmt"
	"time"

	"avatar/internal/domain"
	"avatar/internal/infra"
	"avatar/internal/sqlinline"
)

// TalkRepositoryPG implements domain.TalkRepository on PostgreSQL.
type TalkRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewTalkRepository creates a talk repository over a marked-query executor.
func NewTalkRepository(sql infra.SQLExecutor) *TalkRepositoryPG {
	return &TalkRepositoryPG{sql: sql}
}

// EnsureSchema creates the avatar_talks table when it does not exist.
func (r *TalkRepositoryPG) EnsureSchema(ctx context.Context) error {
	if _, err := r.sql.Exec(ctx, sqlinline.QEnsureTalksTable); err != nil {
		return fmt.Errorf("repo: ensure talks schema: %w", err)
	}
	return nil
}

// Create inserts a new talk record.
func (r *TalkRepositoryPG) Create(ctx context.Context, talk *domain.Talk) error {
	if talk.CreatedAt.IsZero() {
		talk.CreatedAt = time.Now().UTC()
	}
	talk.UpdatedAt = talk.CreatedAt
	_, err := r.sql.Exec(ctx, sqlinline.QInsertTalk,
		talk.ID,
		talk.Handle.String(),
		talk.Text,
		talk.VoiceID,
		talk.SourceURL,
		string(talk.Status),
		talk.ResultURL,
		talk.ErrorMessage,
		talk.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("repo: insert talk: %w", err)
	}
	return nil
}

// Get fetches a talk by id.
func (r *TalkRepositoryPG) Get(ctx context.Context, id string) (*domain.Talk, error) {
	talk, err := scanTalk(r.sql.QueryRow(ctx, sqlinline.QSelectTalk, id).Scan)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("repo: get talk: %w", err)
	}
	return talk, nil
}

// UpdateStatus resolves a pending talk with its result or error detail.
// Records that already left pending are not touched.
func (r *TalkRepositoryPG) UpdateStatus(ctx context.Context, id string, status domain.TalkStatus, resultURL, errMsg string) (bool, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QUpdateTalkStatus, id, string(status), resultURL, errMsg)
	if err != nil {
		return false, fmt.Errorf("repo: update talk: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}
	// Zero rows means either no such talk or one that is already terminal.
	if _, err := r.Get(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// ListPending returns the oldest pending talks first.
func (r *TalkRepositoryPG) ListPending(ctx context.Context, limit int) ([]domain.Talk, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.sql.Query(ctx, sqlinline.QSelectPendingTalks, limit)
	if err != nil {
		return nil, fmt.Errorf("repo: list pending talks: %w", err)
	}
	defer rows.Close()
	var out []domain.Talk
	for rows.Next() {
		talk, err := scanTalk(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("repo: scan talk: %w", err)
		}
		out = append(out, *talk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo: list pending talks: %w", err)
	}
	return out, nil
}

// Delete removes a talk record.
func (r *TalkRepositoryPG) Delete(ctx context.Context, id string) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QDeleteTalk, id)
	if err != nil {
		return fmt.Errorf("repo: delete talk: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanTalk(scan func(dest ...any) error) (*domain.Talk, error) {
	var (
		talk   domain.Talk
		handle string
		status string
	)
	if err := scan(
		&talk.ID,
		&handle,
		&talk.Text,
		&talk.VoiceID,
		&talk.SourceURL,
		&status,
		&talk.ResultURL,
		&talk.ErrorMessage,
		&talk.CreatedAt,
		&talk.UpdatedAt,
	); err != nil {
		return nil, err
	}
	talk.Handle = domain.TalkHandle(handle)
	talk.Status = domain.ParseTalkStatus(status)
	return &talk, nil
}

var _ domain.TalkRepository = (*TalkRepositoryPG)(nil)
