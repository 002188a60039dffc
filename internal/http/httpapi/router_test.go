package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"avatar/internal/adapter/repo"
	"avatar/internal/domain"
	"avatar/internal/http/handlers"
	"avatar/internal/infra"
	"avatar/internal/providers/did"
)

type stubAvatar struct{}

func (stubAvatar) HasCredentials() bool   { return false }
func (stubAvatar) MaxWait() time.Duration { return time.Minute }
func (stubAvatar) Voices() []domain.Voice { return domain.Voices() }
func (stubAvatar) Submit(context.Context, domain.TalkRequest) (domain.TalkHandle, error) {
	return "", &did.SubmissionError{Err: did.ErrMissingAPIKey}
}
func (stubAvatar) Generate(context.Context, domain.TalkRequest, time.Duration) (*domain.TalkResult, error) {
	return nil, &did.SubmissionError{Err: did.ErrMissingAPIKey}
}
func (stubAvatar) Delete(context.Context, domain.TalkHandle) error { return did.ErrMissingAPIKey }
func (stubAvatar) ListAvatars(context.Context) ([]did.Avatar, error) {
	return nil, did.ErrMissingAPIKey
}

func newTestRouter(t *testing.T, opts Options) http.Handler {
	t.Helper()
	app := &handlers.App{Avatar: stubAvatar{}, Talks: repo.NewMemoryTalkRepository()}
	opts.Logger = *infra.NopLogger()
	return NewRouter(app, opts)
}

func TestRouterRoutes(t *testing.T) {
	router := newTestRouter(t, Options{CORSOrigins: []string{"*"}})
	cases := []struct {
		method string
		path   string
		body   string
		status int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/api/health", "", http.StatusOK},
		{http.MethodGet, "/api/config", "", http.StatusOK},
		{http.MethodGet, "/api/avatar/voices", "", http.StatusOK},
		{http.MethodGet, "/api/avatar/avatars", "", http.StatusServiceUnavailable},
		{http.MethodPost, "/api/avatar/videos", `{"text":"hi"}`, http.StatusServiceUnavailable},
		{http.MethodGet, "/api/avatar/talks/unknown", "", http.StatusNotFound},
		{http.MethodPost, "/api/chat", `{"message":"hi"}`, http.StatusServiceUnavailable},
		{http.MethodGet, "/missing", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != tc.status {
			t.Fatalf("%s %s: status = %d, want %d", tc.method, tc.path, rr.Code, tc.status)
		}
		if rr.Header().Get("X-Request-ID") == "" {
			t.Fatalf("%s %s: missing request id", tc.method, tc.path)
		}
	}
}

func TestRouterRateLimitsAPI(t *testing.T) {
	router := newTestRouter(t, Options{RateLimitPerMin: 2})
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
		req.RemoteAddr = "203.0.113.7:5000"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		want := http.StatusOK
		if i == 2 {
			want = http.StatusTooManyRequests
		}
		if rr.Code != want {
			t.Fatalf("request %d: status = %d, want %d", i, rr.Code, want)
		}
	}

	// Health checks bypass the API limiter.
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "203.0.113.7:5000"
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("health status = %d", rr.Code)
	}
}

func TestRouterServesFrontend(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>avatar</h1>"), 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}
	router := newTestRouter(t, Options{FrontendDir: dir})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "avatar") {
		t.Fatalf("index: status = %d body = %q", rr.Code, rr.Body.String())
	}
}
