package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"avatar/internal/domain"
	"avatar/internal/middleware"
	"avatar/internal/providers/did"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
)

type talkConfigRequest struct {
	Fluent   *bool    `json:"fluent"`
	PadAudio *float64 `json:"pad_audio" validate:"omitnil,gte=0,lte=60"`
	Stitch   *bool    `json:"stitch"`
}

type talkCreateRequest struct {
	Text      string             `json:"text" validate:"max=10000"`
	SourceURL string             `json:"source_url" validate:"omitempty,url"`
	AvatarURL string             `json:"avatar_url" validate:"omitempty,url"`
	VoiceID   string             `json:"voice_id" validate:"max=128"`
	Config    *talkConfigRequest `json:"config"`
	MaxWaitMS int64              `json:"max_wait_ms" validate:"gte=0"`
}

type talkView struct {
	ID        string    `json:"id"`
	Handle    string    `json:"handle"`
	Status    string    `json:"status"`
	Text      string    `json:"text,omitempty"`
	VoiceID   string    `json:"voice_id,omitempty"`
	SourceURL string    `json:"source_url,omitempty"`
	VideoURL  string    `json:"video_url,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (req talkCreateRequest) toDomain(r *http.Request) domain.TalkRequest {
	out := domain.TalkRequest{
		Text:      strings.TrimSpace(req.Text),
		SourceURL: strings.TrimSpace(req.SourceURL),
		VoiceID:   voiceForRequest(r, strings.TrimSpace(req.VoiceID)),
	}
	if out.SourceURL == "" {
		out.SourceURL = strings.TrimSpace(req.AvatarURL)
	}
	if req.Config != nil {
		cfg := domain.DefaultTalkConfig()
		if req.Config.Fluent != nil {
			cfg.Fluent = *req.Config.Fluent
		}
		if req.Config.PadAudio != nil {
			cfg.PadAudio = *req.Config.PadAudio
		}
		if req.Config.Stitch != nil {
			cfg.Stitch = *req.Config.Stitch
		}
		out.Config = &cfg
	}
	return out
}

// voiceForRequest picks the catalog voice matching the caller's locale when
// none was requested. Callers on the fallback locale keep the configured
// default voice.
func voiceForRequest(r *http.Request, requested string) string {
	if requested != "" {
		return requested
	}
	v, ok := domain.DefaultVoiceFor(middleware.LocaleFromContext(r.Context()))
	if ok && v.ID != domain.DefaultVoiceID {
		return v.ID
	}
	return ""
}

func viewTalk(t *domain.Talk) talkView {
	return talkView{
		ID:        t.ID,
		Handle:    t.Handle.String(),
		Status:    string(t.Status),
		Text:      t.Text,
		VoiceID:   t.VoiceID,
		SourceURL: t.SourceURL,
		VideoURL:  t.ResultURL,
		Error:     t.ErrorMessage,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func (a *App) Voices(w http.ResponseWriter, r *http.Request) {
	locale := middleware.LocaleFromContext(r.Context())
	def := domain.DefaultVoiceID
	if v, ok := domain.DefaultVoiceFor(locale); ok {
		def = v.ID
	}
	a.json(w, http.StatusOK, map[string]any{
		"success": true,
		"voices":  a.Avatar.Voices(),
		"default": def,
		"locale":  locale,
	})
}

func (a *App) Avatars(w http.ResponseWriter, r *http.Request) {
	avatars, err := a.Avatar.ListAvatars(r.Context())
	if err != nil {
		if errors.Is(err, did.ErrMissingAPIKey) {
			a.error(w, http.StatusServiceUnavailable, "unavailable", "avatar video is not configured")
			return
		}
		a.log().Error().Err(err).Msg("list avatars failed")
		a.error(w, http.StatusBadGateway, "upstream_error", "failed to list avatars")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"success": true, "avatars": avatars})
}

// GenerateVideo submits a talk and holds the request until the video is ready.
func (a *App) GenerateVideo(w http.ResponseWriter, r *http.Request) {
	var req talkCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if msg := validateRequest(&req); msg != "" {
		a.error(w, http.StatusBadRequest, "validation_error", msg)
		return
	}
	talk := req.toDomain(r)
	if talk.Text == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "text is required")
		return
	}
	// Longer waits than the configured budget would outlive the server's
	// write timeout.
	maxWait := a.Avatar.MaxWait()
	if req.MaxWaitMS > 0 {
		if requested := time.Duration(req.MaxWaitMS) * time.Millisecond; requested < maxWait {
			maxWait = requested
		}
	}
	result, err := a.Avatar.Generate(r.Context(), talk, maxWait)
	if err != nil {
		a.avatarError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"success":   true,
		"talk_id":   result.Handle.String(),
		"status":    string(result.Status),
		"video_url": result.ResultURL,
	})
}

// SubmitTalk starts a talk and returns immediately. The stored record is
// resolved by GetTalk or the background reconciler.
func (a *App) SubmitTalk(w http.ResponseWriter, r *http.Request) {
	if a.Talks == nil {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "talk storage is not configured")
		return
	}
	var req talkCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if msg := validateRequest(&req); msg != "" {
		a.error(w, http.StatusBadRequest, "validation_error", msg)
		return
	}
	talk := req.toDomain(r)
	if talk.Text == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "text is required")
		return
	}
	handle, err := a.Avatar.Submit(r.Context(), talk)
	if err != nil {
		a.avatarError(w, r, err)
		return
	}
	now := a.now()
	record := &domain.Talk{
		ID:        uuid.NewString(),
		Handle:    handle,
		Text:      talk.Text,
		VoiceID:   talk.VoiceID,
		SourceURL: talk.SourceURL,
		Status:    domain.TalkStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.Talks.Create(r.Context(), record); err != nil {
		a.log().Error().Err(err).Str("handle", handle.String()).Msg("persist talk failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to persist talk")
		return
	}
	a.json(w, http.StatusAccepted, map[string]any{
		"success": true,
		"id":      record.ID,
		"handle":  handle.String(),
		"status":  string(record.Status),
	})
}

func (a *App) GetTalk(w http.ResponseWriter, r *http.Request) {
	talk, ok := a.loadTalk(w, r)
	if !ok {
		return
	}
	if !talk.Status.Terminal() && a.Refresher != nil {
		refreshed, err := a.Refresher.Refresh(r.Context(), *talk)
		if err != nil {
			a.avatarError(w, r, err)
			return
		}
		talk = &refreshed
	}
	a.json(w, http.StatusOK, map[string]any{"success": true, "talk": viewTalk(talk)})
}

func (a *App) DeleteTalk(w http.ResponseWriter, r *http.Request) {
	talk, ok := a.loadTalk(w, r)
	if !ok {
		return
	}
	if err := a.Avatar.Delete(r.Context(), talk.Handle); err != nil && !errors.Is(err, domain.ErrNotFound) {
		if errors.Is(err, did.ErrMissingAPIKey) {
			a.error(w, http.StatusServiceUnavailable, "unavailable", "avatar video is not configured")
			return
		}
		a.log().Error().Err(err).Str("talk_id", talk.ID).Msg("remote delete failed")
		a.error(w, http.StatusBadGateway, "upstream_error", "failed to delete video")
		return
	}
	if err := a.Talks.Delete(r.Context(), talk.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		a.log().Error().Err(err).Str("talk_id", talk.ID).Msg("delete talk failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to delete talk")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"success": true, "message": "Video deleted successfully"})
}

func (a *App) loadTalk(w http.ResponseWriter, r *http.Request) (*domain.Talk, bool) {
	if a.Talks == nil {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "talk storage is not configured")
		return nil, false
	}
	id := chi.URLParam(r, "id")
	if id == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "id required")
		return nil, false
	}
	talk, err := a.Talks.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "talk not found")
			return nil, false
		}
		a.log().Error().Err(err).Str("talk_id", id).Msg("load talk failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load talk")
		return nil, false
	}
	return talk, true
}

// avatarError maps provider failures onto HTTP responses.
func (a *App) avatarError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		sub     *did.SubmissionError
		poll    *did.PollError
		failure *did.RemoteJobFailure
		timeout *did.TimeoutError
	)
	switch {
	case r.Context().Err() != nil:
		a.log().Debug().Err(err).Msg("client went away")
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		a.error(w, http.StatusServiceUnavailable, "unavailable", "avatar service is temporarily unavailable")
	case errors.As(err, &timeout):
		a.json(w, http.StatusGatewayTimeout, map[string]any{
			"success": false,
			"code":    "timeout",
			"error":   "video generation timeout",
			"talk_id": timeout.Handle.String(),
		})
	case errors.As(err, &failure):
		msg := "video generation failed"
		if failure.Message != "" {
			msg += ": " + failure.Message
		}
		a.json(w, http.StatusBadGateway, map[string]any{
			"success": false,
			"code":    "generation_failed",
			"error":   msg,
			"status":  string(failure.Status),
			"talk_id": failure.Handle.String(),
		})
	case errors.As(err, &poll):
		a.log().Error().Err(err).Msg("talk status poll failed")
		a.error(w, http.StatusBadGateway, "poll_failed", "failed to read video status")
	case errors.As(err, &sub):
		a.submissionError(w, sub)
	default:
		a.log().Error().Err(err).Msg("avatar request failed")
		a.error(w, http.StatusInternalServerError, "internal", "avatar request failed")
	}
}

func (a *App) submissionError(w http.ResponseWriter, err *did.SubmissionError) {
	msg := err.Message
	if msg == "" {
		msg = "failed to create video"
	}
	switch {
	case errors.Is(err, did.ErrMissingAPIKey):
		a.error(w, http.StatusServiceUnavailable, "unavailable", "avatar video is not configured")
	case errors.Is(err, domain.ErrInvalidRequest),
		err.StatusCode == http.StatusBadRequest,
		err.StatusCode == http.StatusUnprocessableEntity:
		a.error(w, http.StatusBadRequest, "bad_request", msg)
	case err.StatusCode == http.StatusUnauthorized, err.StatusCode == http.StatusForbidden:
		a.log().Error().Err(err).Msg("avatar provider refused credentials")
		a.error(w, http.StatusBadGateway, "upstream_unauthorized", "avatar provider rejected credentials")
	case err.StatusCode == http.StatusPaymentRequired, err.StatusCode == http.StatusTooManyRequests:
		a.error(w, http.StatusTooManyRequests, "quota_exceeded", msg)
	default:
		a.log().Error().Err(err).Msg("talk submission failed")
		a.error(w, http.StatusBadGateway, "submission_failed", msg)
	}
}
