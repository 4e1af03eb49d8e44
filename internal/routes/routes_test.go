package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepwise-app/stepwise/internal/app"
	"github.com/stepwise-app/stepwise/internal/config"
	"github.com/stepwise-app/stepwise/internal/service"
)

const cronSecret = "cron-test-secret"

type testServer struct {
	*httptest.Server
	app *app.App
}

func newTestServer(t *testing.T, opts ...func(*config.Config)) *testServer {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		AppName:         "Stepwise",
		AppEnv:          "development",
		AppURL:          "http://localhost:8090",
		DBDriver:        "sqlite",
		DBConnection:    filepath.Join(dir, "test.db") + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		FallbackPath:    filepath.Join(dir, "fallback.jsonl"),
		JWTSecret:       "routes-test-secret-routes-test-secret",
		JWTExpiry:       time.Hour,
		CronSecret:      cronSecret,
		FreeGoalLimit:   3,
		GoalWriteRetry:  time.Millisecond,
		AIRateLimit:     100,
		PublicRateLimit: 100,
		AITimeout:       time.Second,
		EmailFrom:       "noreply@example.com",
		PaymentProvider: "stripe",
	}

	for _, opt := range opts {
		opt(cfg)
	}

	a, err := app.New(context.Background(), cfg)
	require.NoError(t, err)
	srv := httptest.NewServer(SetupRoutes(a))
	t.Cleanup(func() {
		srv.Close()
		_ = a.Close()
	})
	return &testServer{Server: srv, app: a}
}

func (s *testServer) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := s.app.AuthService.GenerateJWT(service.Identity{UserID: userID, Email: userID + "@example.com", FirstName: "Test"})
	require.NoError(t, err)
	return token
}

// do sends a request authenticated with a bearer token, if one is given, and
// decodes the JSON response into out when out is non-nil.
func (s *testServer) do(t *testing.T, method, path, token, body string, out any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, s.URL+path, r)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)

	var body map[string]string
	resp := s.do(t, http.MethodGet, "/healthz", "", "", &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	s := newTestServer(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/goals"},
		{http.MethodPost, "/api/goals"},
		{http.MethodGet, "/api/me"},
		{http.MethodPatch, "/api/steps/abc/status"},
	} {
		resp := s.do(t, route.method, route.path, "", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "%s %s", route.method, route.path)
	}
}

func TestGoalFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, "user_1")

	var created service.CreateGoalResult
	resp := s.do(t, http.MethodPost, "/api/goals", token, `{"title":"Run a 10k","why":"health"}`, &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "run-a-10k", created.Slug)
	assert.False(t, created.IsFallback)

	var detail service.GoalDetail
	resp = s.do(t, http.MethodGet, "/api/goals/"+created.GoalID, token, "", &detail)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, detail.Steps, created.StepsSaved)

	var change service.StatusChange
	resp = s.do(t, http.MethodPatch, "/api/steps/"+detail.Steps[0].ID+"/status", token, `{"status":"completed"}`, &change)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, change.Changed)

	resp = s.do(t, http.MethodGet, "/api/goals/"+created.GoalID, s.token(t, "user_2"), "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "other users cannot see the goal")

	resp = s.do(t, http.MethodDelete, "/api/goals/"+created.GoalID, token, "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, "user_1")

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"malformed body", http.MethodPost, "/api/goals", `{"title":`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/goals", `{"title":"x","color":"red"}`, http.StatusBadRequest},
		{"missing title", http.MethodPost, "/api/goals", `{"title":""}`, http.StatusBadRequest},
		{"unknown goal", http.MethodGet, "/api/goals/missing", "", http.StatusNotFound},
		{"export needs pro", http.MethodGet, "/api/goals/export", "", http.StatusForbidden},
		{"billing disabled", http.MethodPost, "/api/billing/checkout", `{"interval":"monthly"}`, http.StatusServiceUnavailable},
		{"bad username", http.MethodPut, "/api/me/username", `{"username":"no spaces"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body map[string]any
			resp := s.do(t, tt.method, tt.path, token, tt.body, &body)
			assert.Equal(t, tt.want, resp.StatusCode)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestCookieSessionsNeedCSRFToken(t *testing.T) {
	s := newTestServer(t)
	session := &http.Cookie{Name: service.SessionCookie, Value: s.token(t, "user_1")}

	get, err := http.NewRequest(http.MethodGet, s.URL+"/api/goals", nil)
	require.NoError(t, err)
	get.AddCookie(session)
	resp, err := s.Client().Do(get)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	csrf := resp.Header.Get("X-CSRF-Token")
	require.NotEmpty(t, csrf)

	post := func(token string) int {
		req, err := http.NewRequest(http.MethodPost, s.URL+"/api/goals", strings.NewReader(`{"title":"Cookie goal"}`))
		require.NoError(t, err)
		req.AddCookie(session)
		req.AddCookie(&http.Cookie{Name: "csrf_token", Value: csrf})
		if token != "" {
			req.Header.Set("X-CSRF-Token", token)
		}
		resp, err := s.Client().Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusForbidden, post(""))
	assert.Equal(t, http.StatusCreated, post(csrf))
}

func TestWebhooksAndCron(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodPost, "/webhooks/identity", "", `{}`, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, "no identity webhook secret configured")

	resp = s.do(t, http.MethodPost, "/webhooks/billing", "", `{}`, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, "billing disabled")

	resp = s.do(t, http.MethodPost, "/api/cron/reminders", "wrong", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var report service.ReminderReport
	resp = s.do(t, http.MethodPost, "/api/cron/reminders", cronSecret, "", &report)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var reconcile service.ReconcileReport
	resp = s.do(t, http.MethodPost, "/api/cron/reconcile", cronSecret, "", &reconcile)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, reconcile.Records)
}

func TestPublicPages(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, "user_1")

	var created service.CreateGoalResult
	s.do(t, http.MethodPost, "/api/goals", token, `{"title":"Learn Go"}`, &created)
	resp := s.do(t, http.MethodPut, "/api/me/username", token, `{"username":"gopher"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/public/gopher/learn-go", "", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = s.do(t, http.MethodPatch, "/api/goals/"+created.GoalID, token, `{"visibility":"public"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page service.PublicGoal
	resp = s.do(t, http.MethodGet, "/api/public/gopher/learn-go", "", "", &page)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Learn Go", page.Goal.Title)
	assert.Contains(t, resp.Header.Get("Cache-Control"), "max-age=60")

	var profile service.PublicProfile
	resp = s.do(t, http.MethodGet, "/api/public/gopher", "", "", &profile)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, profile.Goals, 1)
}

func TestPublicPagesRateLimitedByIP(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) { cfg.PublicRateLimit = 2 })

	for range 2 {
		resp := s.do(t, http.MethodGet, "/api/public/nobody", "", "", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	}
	resp := s.do(t, http.MethodGet, "/api/public/nobody/some-goal", "", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/healthz", "", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "only public pages share the limit")
}
