package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"avatar/internal/domain"
	"avatar/internal/sqlinline"
)

func talkTuple(id, status string, created time.Time) []any {
	return []any{id, "tlk_" + id, "hello", "en-US-JennyNeural", "https://img/1.png", status, "", "", created, created}
}

func TestTalkRepositoryPGCreate(t *testing.T) {
	exec := &fakeExecutor{affected: 1}
	repo := NewTalkRepository(exec)

	talk := &domain.Talk{ID: "a", Handle: "tlk_a", Text: "hello", Status: domain.TalkStatusPending}
	if err := repo.Create(context.Background(), talk); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if len(exec.execs) != 1 || exec.execs[0].query != sqlinline.QInsertTalk {
		t.Fatalf("unexpected exec calls: %+v", exec.execs)
	}
	args := exec.execs[0].args
	if args[1] != "tlk_a" || args[5] != "pending" {
		t.Fatalf("unexpected args: %#v", args)
	}
	if talk.CreatedAt.IsZero() || !talk.UpdatedAt.Equal(talk.CreatedAt) {
		t.Fatalf("timestamps not set: %+v", talk)
	}
}

func TestTalkRepositoryPGGet(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	exec := &fakeExecutor{row: simpleRow{scan: func(dest ...any) error {
		return assignTuple(talkTuple("a", "done", created), dest)
	}}}
	repo := NewTalkRepository(exec)

	talk, err := repo.Get(context.Background(), "a")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if talk.Handle != "tlk_a" || talk.Status != domain.TalkStatusDone || !talk.CreatedAt.Equal(created) {
		t.Fatalf("unexpected talk: %+v", talk)
	}
	if len(exec.lastArgs) != 1 || exec.lastArgs[0] != "a" {
		t.Fatalf("unexpected args: %#v", exec.lastArgs)
	}
}

func TestTalkRepositoryPGGetMissing(t *testing.T) {
	repo := NewTalkRepository(&fakeExecutor{})
	if _, err := repo.Get(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTalkRepositoryPGUpdateAndDeleteMissing(t *testing.T) {
	repo := NewTalkRepository(&fakeExecutor{affected: 0})
	if _, err := repo.UpdateStatus(context.Background(), "x", domain.TalkStatusDone, "u", ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from update, got %v", err)
	}
	if err := repo.Delete(context.Background(), "x"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from delete, got %v", err)
	}
}

func TestTalkRepositoryPGListPending(t *testing.T) {
	now := time.Now().UTC()
	rows := &talkRows{tuples: [][]any{
		talkTuple("a", "pending", now.Add(-time.Minute)),
		talkTuple("b", "started", now),
	}}
	exec := &fakeExecutor{rows: rows}
	repo := NewTalkRepository(exec)

	talks, err := repo.ListPending(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListPending returned error: %v", err)
	}
	if len(talks) != 2 || talks[0].ID != "a" || talks[1].Status != domain.TalkStatusPending {
		t.Fatalf("unexpected talks: %+v", talks)
	}
	if exec.lastArgs[0] != 50 {
		t.Fatalf("default limit = %v, want 50", exec.lastArgs[0])
	}
	if !rows.closed {
		t.Fatalf("rows not closed")
	}
}

func TestTalkRepositoryMemoryLifecycle(t *testing.T) {
	repo := NewMemoryTalkRepository()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"c", "a", "b"} {
		talk := &domain.Talk{ID: id, Handle: domain.TalkHandle("tlk_" + id), Status: domain.TalkStatusPending, CreatedAt: base.Add(time.Duration(i) * time.Second)}
		if err := repo.Create(ctx, talk); err != nil {
			t.Fatalf("Create(%s) returned error: %v", id, err)
		}
	}
	if err := repo.Create(ctx, &domain.Talk{ID: "a"}); err == nil {
		t.Fatalf("expected duplicate create to fail")
	}

	if updated, err := repo.UpdateStatus(ctx, "a", domain.TalkStatusDone, "https://v/a.mp4", ""); err != nil || !updated {
		t.Fatalf("UpdateStatus = %v, %v", updated, err)
	}
	// A later writer cannot move a terminal talk.
	if updated, err := repo.UpdateStatus(ctx, "a", domain.TalkStatusTimedOut, "", "video generation timeout"); err != nil || updated {
		t.Fatalf("second UpdateStatus = %v, %v", updated, err)
	}
	got, err := repo.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.Status != domain.TalkStatusDone || got.ResultURL != "https://v/a.mp4" {
		t.Fatalf("unexpected talk: %+v", got)
	}

	pending, err := repo.ListPending(ctx, 1)
	if err != nil {
		t.Fatalf("ListPending returned error: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "c" {
		t.Fatalf("pending = %+v, want oldest c", pending)
	}

	if err := repo.Delete(ctx, "c"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err := repo.Get(ctx, "c"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if _, err := repo.UpdateStatus(ctx, "zzz", domain.TalkStatusDone, "", ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestTalkRepositoryPGUpdateSkipsResolvedTalk(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	exec := &fakeExecutor{affected: 0, row: simpleRow{scan: func(dest ...any) error {
		return assignTuple(talkTuple("a", "done", created), dest)
	}}}
	repo := NewTalkRepository(exec)

	updated, err := repo.UpdateStatus(context.Background(), "a", domain.TalkStatusTimedOut, "", "video generation timeout")
	if err != nil {
		t.Fatalf("UpdateStatus returned error: %v", err)
	}
	if updated {
		t.Fatalf("resolved talk reported as updated")
	}
	if len(exec.execs) != 1 || exec.execs[0].query != sqlinline.QUpdateTalkStatus {
		t.Fatalf("unexpected exec calls: %+v", exec.execs)
	}
}
