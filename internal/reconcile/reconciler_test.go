package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"avatar/internal/adapter/repo"
	"avatar/internal/domain"
)

type mapPoller struct {
	results map[domain.TalkHandle]*domain.TalkResult
	errs    map[domain.TalkHandle]error
	calls   []domain.TalkHandle
}

func (m *mapPoller) PollStatus(ctx context.Context, handle domain.TalkHandle) (*domain.TalkResult, error) {
	m.calls = append(m.calls, handle)
	if err, ok := m.errs[handle]; ok {
		return nil, err
	}
	if res, ok := m.results[handle]; ok {
		return res, nil
	}
	return &domain.TalkResult{Handle: handle, Status: domain.TalkStatusPending}, nil
}

func TestRunOnceResolvesTalks(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store := repo.NewMemoryTalkRepository()
	ctx := context.Background()
	seed := map[string]time.Duration{
		"done":    10 * time.Second,
		"failed":  20 * time.Second,
		"waiting": 30 * time.Second,
		"stale":   90 * time.Second,
		"broken":  5 * time.Second,
	}
	for id, age := range seed {
		talk := &domain.Talk{ID: id, Handle: domain.TalkHandle("h_" + id), Status: domain.TalkStatusPending, CreatedAt: now.Add(-age)}
		if err := store.Create(ctx, talk); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}
	poller := &mapPoller{
		results: map[domain.TalkHandle]*domain.TalkResult{
			"h_done":   {Status: domain.TalkStatusDone, ResultURL: "https://v/done.mp4"},
			"h_failed": {Status: domain.TalkStatusRejected, ErrorMessage: "face not detected"},
		},
		errs: map[domain.TalkHandle]error{"h_broken": errors.New("connection refused")},
	}
	rec := New(Options{Repo: store, Poller: poller, MaxWait: time.Minute, Now: func() time.Time { return now }})

	sum, err := rec.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
	want := Summary{Checked: 5, Done: 1, Failed: 1, TimedOut: 1, Errors: 1}
	if sum != want {
		t.Fatalf("summary = %+v, want %+v", sum, want)
	}
	for _, h := range poller.calls {
		if h == "h_stale" {
			t.Fatalf("stale talk should time out without polling")
		}
	}

	expect := map[string]domain.TalkStatus{
		"done":    domain.TalkStatusDone,
		"failed":  domain.TalkStatusRejected,
		"waiting": domain.TalkStatusPending,
		"stale":   domain.TalkStatusTimedOut,
		"broken":  domain.TalkStatusPending,
	}
	for id, status := range expect {
		talk, err := store.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get(%s): %v", id, err)
		}
		if talk.Status != status {
			t.Fatalf("%s status = %q, want %q", id, talk.Status, status)
		}
	}
	done, _ := store.Get(ctx, "done")
	if done.ResultURL != "https://v/done.mp4" {
		t.Fatalf("result url = %q", done.ResultURL)
	}
	failed, _ := store.Get(ctx, "failed")
	if failed.ErrorMessage != "face not detected" {
		t.Fatalf("failure detail = %q", failed.ErrorMessage)
	}
	stale, _ := store.Get(ctx, "stale")
	if stale.ErrorMessage != "video generation timeout" {
		t.Fatalf("timeout detail = %q", stale.ErrorMessage)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	rec := New(Options{Repo: repo.NewMemoryTalkRepository(), Poller: &mapPoller{}, Interval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rec.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop after cancel")
	}
}

func TestRefreshLeavesTerminalTalks(t *testing.T) {
	poller := &mapPoller{}
	rec := New(Options{Repo: repo.NewMemoryTalkRepository(), Poller: poller})

	talk := domain.Talk{ID: "x", Handle: "h_x", Status: domain.TalkStatusDone, ResultURL: "https://v/x.mp4"}
	got, err := rec.Refresh(context.Background(), talk)
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if got != talk {
		t.Fatalf("terminal talk changed: %+v", got)
	}
	if len(poller.calls) != 0 {
		t.Fatalf("terminal talk was polled")
	}
}

func TestRefreshReturnsPollError(t *testing.T) {
	store := repo.NewMemoryTalkRepository()
	talk := &domain.Talk{ID: "x", Handle: "h_x", Status: domain.TalkStatusPending}
	if err := store.Create(context.Background(), talk); err != nil {
		t.Fatalf("seed: %v", err)
	}
	boom := errors.New("boom")
	rec := New(Options{Repo: store, Poller: &mapPoller{errs: map[domain.TalkHandle]error{"h_x": boom}}})

	if _, err := rec.Refresh(context.Background(), *talk); !errors.Is(err, boom) {
		t.Fatalf("expected poll error, got %v", err)
	}
	stored, _ := store.Get(context.Background(), "x")
	if stored.Status != domain.TalkStatusPending {
		t.Fatalf("status = %q, want pending", stored.Status)
	}
}

func TestRefreshKeepsTalkResolvedSinceSnapshot(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store := repo.NewMemoryTalkRepository()
	ctx := context.Background()
	talk := &domain.Talk{ID: "x", Handle: "h_x", Status: domain.TalkStatusPending, CreatedAt: created}
	if err := store.Create(ctx, talk); err != nil {
		t.Fatalf("seed: %v", err)
	}
	pending, err := store.ListPending(ctx, 10)
	if err != nil || len(pending) != 1 {
		t.Fatalf("ListPending = %v, %v", pending, err)
	}
	// A live read resolves the talk after the pass took its snapshot.
	if _, err := store.UpdateStatus(ctx, "x", domain.TalkStatusDone, "https://cdn/x.mp4", ""); err != nil {
		t.Fatalf("update: %v", err)
	}

	rec := New(Options{Repo: store, Poller: &mapPoller{}, MaxWait: time.Minute, Now: func() time.Time { return created.Add(61 * time.Second) }})
	got, err := rec.Refresh(ctx, pending[0])
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if got.Status != domain.TalkStatusDone || got.ResultURL != "https://cdn/x.mp4" {
		t.Fatalf("refresh returned %+v", got)
	}
	stored, _ := store.Get(ctx, "x")
	if stored.Status != domain.TalkStatusDone || stored.ResultURL != "https://cdn/x.mp4" {
		t.Fatalf("stored talk overwritten: %+v", stored)
	}
}
