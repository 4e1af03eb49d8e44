package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepwise-app/stepwise/internal/ctxkeys"
	"github.com/stepwise-app/stepwise/internal/service"
)

const testSecret = "test-secret-test-secret-test-secret"

// echoIdentity reports who the request was authenticated as.
func echoIdentity(w http.ResponseWriter, r *http.Request) {
	if id := ctxkeys.Identity(r.Context()); id != nil {
		w.Header().Set("X-User", id.UserID)
		w.Header().Set("X-Via", ctxkeys.AuthVia(r.Context()))
	}
	w.WriteHeader(http.StatusOK)
}

func testToken(t *testing.T, auth *service.AuthService) string {
	t.Helper()
	token, err := auth.GenerateJWT(service.Identity{UserID: "user_1", Email: "a@example.com"})
	require.NoError(t, err)
	return token
}

func TestAuthMiddleware(t *testing.T) {
	auth := service.NewAuthService(testSecret, time.Hour, false)
	token := testToken(t, auth)
	h := AuthMiddleware(auth)(http.HandlerFunc(echoIdentity))

	tests := []struct {
		name        string
		setup       func(r *http.Request)
		wantUser    string
		wantVia     string
		clearCookie bool
	}{
		{"anonymous", func(*http.Request) {}, "", "", false},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, "user_1", ctxkeys.AuthViaBearer, false},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: service.SessionCookie, Value: token}) }, "user_1", ctxkeys.AuthViaCookie, false},
		{"bad bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, "", "", false},
		{"bad cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: service.SessionCookie, Value: "nope"}) }, "", "", true},
		{"basic auth is ignored", func(r *http.Request) { r.Header.Set("Authorization", "Basic Zm9vOmJhcg==") }, "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/goals", nil)
			tt.setup(r)
			w := httptest.NewRecorder()

			h.ServeHTTP(w, r)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.wantUser, w.Header().Get("X-User"))
			assert.Equal(t, tt.wantVia, w.Header().Get("X-Via"))
			assert.Equal(t, tt.clearCookie, len(w.Result().Cookies()) > 0)
		})
	}
}

func TestAuthMiddlewareRejectsExpiredToken(t *testing.T) {
	auth := service.NewAuthService(testSecret, -time.Minute, false)
	token := testToken(t, auth)
	h := AuthMiddleware(auth)(RequireAuth(echoIdentity))

	r := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"authentication required"}`, w.Body.String())
}

func TestRequireAuth(t *testing.T) {
	h := RequireAuth(echoIdentity)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	r := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	r = r.WithContext(ctxkeys.WithIdentity(r.Context(), &service.Identity{UserID: "user_1"}, ctxkeys.AuthViaBearer))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user_1", w.Header().Get("X-User"))
}
