// Package reconcile resolves talks that were submitted asynchronously. Each
// pass reads every pending record once and persists any terminal outcome.
package reconcile

import (
	"context"
	"errors"
	"time"

	"avatar/internal/domain"
	"avatar/internal/infra"
)

// StatusPoller reads a talk's remote status once.
type StatusPoller interface {
	PollStatus(ctx context.Context, handle domain.TalkHandle) (*domain.TalkResult, error)
}

// Options configures a Reconciler.
type Options struct {
	Repo      domain.TalkRepository
	Poller    StatusPoller
	Logger    *infra.Logger
	MaxWait   time.Duration
	Interval  time.Duration
	BatchSize int
	Now       func() time.Time
}

// Reconciler applies the same timeout rule as a synchronous wait: a talk is
// abandoned once MaxWait has passed since it was created.
type Reconciler struct {
	repo      domain.TalkRepository
	poller    StatusPoller
	logger    *infra.Logger
	maxWait   time.Duration
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

// Summary counts what a single pass did.
type Summary struct {
	Checked  int
	Done     int
	Failed   int
	TimedOut int
	Errors   int
}

func New(opts Options) *Reconciler {
	r := &Reconciler{
		repo:      opts.Repo,
		poller:    opts.Poller,
		logger:    opts.Logger,
		maxWait:   opts.MaxWait,
		interval:  opts.Interval,
		batchSize: opts.BatchSize,
		now:       opts.Now,
	}
	if r.logger == nil {
		r.logger = infra.NopLogger()
	}
	if r.maxWait <= 0 {
		r.maxWait = 60 * time.Second
	}
	if r.interval <= 0 {
		r.interval = 2 * time.Second
	}
	if r.batchSize <= 0 {
		r.batchSize = 50
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// RunOnce performs one reconciliation pass.
func (r *Reconciler) RunOnce(ctx context.Context) (Summary, error) {
	var sum Summary
	talks, err := r.repo.ListPending(ctx, r.batchSize)
	if err != nil {
		return sum, err
	}
	for _, talk := range talks {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.Checked++
		updated, err := r.Refresh(ctx, talk)
		if err != nil {
			sum.Errors++
			r.logger.Warn().Err(err).Str("talk_id", talk.ID).Msg("reconcile: refresh failed")
			continue
		}
		switch {
		case updated.Status == domain.TalkStatusDone:
			sum.Done++
		case updated.Status == domain.TalkStatusTimedOut:
			sum.TimedOut++
		case updated.Status.Failed():
			sum.Failed++
		}
	}
	return sum, nil
}

// Refresh brings one talk record up to date. Terminal records are returned
// unchanged; a pending record past its wait budget becomes timed_out without
// a remote call; otherwise the remote status is read once and a terminal
// outcome is persisted.
func (r *Reconciler) Refresh(ctx context.Context, talk domain.Talk) (domain.Talk, error) {
	if talk.Status.Terminal() {
		return talk, nil
	}
	if r.now().Sub(talk.CreatedAt) >= r.maxWait {
		return r.persist(ctx, talk, domain.TalkStatusTimedOut, "", "video generation timeout")
	}
	result, err := r.poller.PollStatus(ctx, talk.Handle)
	if err != nil {
		return talk, err
	}
	switch {
	case result.Status == domain.TalkStatusDone:
		return r.persist(ctx, talk, result.Status, result.ResultURL, "")
	case result.Status.Failed():
		msg := result.ErrorMessage
		if msg == "" {
			msg = "video generation failed"
		}
		return r.persist(ctx, talk, result.Status, "", msg)
	}
	return talk, nil
}

// Run repeats RunOnce every interval until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		sum, err := r.RunOnce(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error().Err(err).Msg("reconcile: pass failed")
		} else if sum.Checked > 0 {
			r.logger.Debug().
				Int("checked", sum.Checked).
				Int("done", sum.Done).
				Int("failed", sum.Failed).
				Int("timed_out", sum.TimedOut).
				Int("errors", sum.Errors).
				Msg("reconcile: pass complete")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// persist resolves talk unless another writer got there first, in which case
// the stored record is returned as is.
func (r *Reconciler) persist(ctx context.Context, talk domain.Talk, status domain.TalkStatus, resultURL, errMsg string) (domain.Talk, error) {
	updated, err := r.repo.UpdateStatus(ctx, talk.ID, status, resultURL, errMsg)
	if err != nil {
		return talk, err
	}
	if !updated {
		stored, err := r.repo.Get(ctx, talk.ID)
		if err != nil {
			return talk, err
		}
		r.logger.Debug().Str("talk_id", talk.ID).Str("status", string(stored.Status)).Msg("reconcile: talk already resolved")
		return *stored, nil
	}
	talk.Status = status
	talk.ResultURL = resultURL
	talk.ErrorMessage = errMsg
	talk.UpdatedAt = r.now()
	r.logger.Info().Str("talk_id", talk.ID).Str("status", string(status)).Msg("reconcile: talk resolved")
	return talk, nil
}
