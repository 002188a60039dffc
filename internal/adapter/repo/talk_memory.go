package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"avatar/internal/domain"
)

// TalkRepositoryMemory keeps talk records in process memory. It backs the API
// when no database is configured; records vanish on restart.
type TalkRepositoryMemory struct {
	mu    sync.RWMutex
	talks map[string]domain.Talk
	now   func() time.Time
}

// NewMemoryTalkRepository creates an empty in-memory repository.
func NewMemoryTalkRepository() *TalkRepositoryMemory {
	return &TalkRepositoryMemory{
		talks: make(map[string]domain.Talk),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *TalkRepositoryMemory) Create(ctx context.Context, talk *domain.Talk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.talks[talk.ID]; exists {
		return domain.ErrInvalidRequest
	}
	if talk.CreatedAt.IsZero() {
		talk.CreatedAt = r.now()
	}
	talk.UpdatedAt = talk.CreatedAt
	r.talks[talk.ID] = *talk
	return nil
}

func (r *TalkRepositoryMemory) Get(ctx context.Context, id string) (*domain.Talk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	talk, ok := r.talks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &talk, nil
}

func (r *TalkRepositoryMemory) UpdateStatus(ctx context.Context, id string, status domain.TalkStatus, resultURL, errMsg string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	talk, ok := r.talks[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if talk.Status != domain.TalkStatusPending {
		return false, nil
	}
	talk.Status = status
	talk.ResultURL = resultURL
	talk.ErrorMessage = errMsg
	talk.UpdatedAt = r.now()
	r.talks[id] = talk
	return true, nil
}

func (r *TalkRepositoryMemory) ListPending(ctx context.Context, limit int) ([]domain.Talk, error) {
	if limit <= 0 {
		limit = 50
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Talk
	for _, talk := range r.talks {
		if talk.Status == domain.TalkStatusPending {
			out = append(out, talk)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *TalkRepositoryMemory) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.talks[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.talks, id)
	return nil
}

var _ domain.TalkRepository = (*TalkRepositoryMemory)(nil)
