package domain

import "context"

// TalkRepository persists talk records submitted through the async API.
type TalkRepository interface {
	Create(ctx context.Context, talk *Talk) error
	Get(ctx context.Context, id string) (*Talk, error)
	// UpdateStatus moves a pending talk to status. It reports false without
	// error when the record has already left pending; terminal states are final.
	UpdateStatus(ctx context.Context, id string, status TalkStatus, resultURL, errMsg string) (bool, error)
	ListPending(ctx context.Context, limit int) ([]Talk, error)
	Delete(ctx context.Context, id string) error
}
