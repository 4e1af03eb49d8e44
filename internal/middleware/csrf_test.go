package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepwise-app/stepwise/internal/ctxkeys"
	"github.com/stepwise-app/stepwise/internal/service"
)

func withSession(r *http.Request, via string) *http.Request {
	ctx := ctxkeys.WithIdentity(r.Context(), &service.Identity{UserID: "user_1"}, via)
	return r.WithContext(ctx)
}

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestCSRFIssuesTokenOnSafeRequests(t *testing.T) {
	h := CSRFProtection(http.HandlerFunc(okHandler))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, withSession(httptest.NewRequest(http.MethodGet, "/api/goals", nil), ctxkeys.AuthViaCookie))

	assert.Equal(t, http.StatusOK, w.Code)
	token := w.Header().Get(csrfHeader)
	require.NotEmpty(t, token)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, csrfCookieName, cookies[0].Name)
	assert.Equal(t, token, cookies[0].Value)
}

func TestCSRFValidatesCookieSessionWrites(t *testing.T) {
	h := CSRFProtection(http.HandlerFunc(okHandler))
	token := generateCSRFToken()

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"matching token", token, http.StatusOK},
		{"missing token", "", http.StatusForbidden},
		{"wrong token", generateCSRFToken(), http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/goals", nil)
			r.AddCookie(&http.Cookie{Name: csrfCookieName, Value: token})
			if tt.header != "" {
				r.Header.Set(csrfHeader, tt.header)
			}
			w := httptest.NewRecorder()

			h.ServeHTTP(w, withSession(r, ctxkeys.AuthViaCookie))

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestCSRFSkipsBearerAnonymousAndExemptPaths(t *testing.T) {
	h := CSRFProtection(http.HandlerFunc(okHandler))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, withSession(httptest.NewRequest(http.MethodPost, "/api/goals", nil), ctxkeys.AuthViaBearer))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/goals", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, withSession(httptest.NewRequest(http.MethodPost, "/webhooks/billing", nil), ctxkeys.AuthViaCookie))
	assert.Equal(t, http.StatusOK, w.Code)
}
