package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/stepwise-app/stepwise/internal/ctxkeys"
	"github.com/stepwise-app/stepwise/internal/service"
)

// AuthMiddleware verifies the session token and adds the caller's identity to
// the context. The token comes from the Authorization header (API clients) or
// the identity provider's session cookie (the browser app). Requests without a
// valid token continue anonymously.
func AuthMiddleware(authService *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, via := sessionToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			id, err := authService.VerifyJWT(token)
			if err != nil {
				slog.Debug("invalid session token", "error", err, "via", via, "path", r.URL.Path)
				if via == ctxkeys.AuthViaCookie {
					authService.ClearSessionCookie(w)
				}
				next.ServeHTTP(w, r)
				return
			}

			ctx := ctxkeys.WithIdentity(r.Context(), id, via)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionToken(r *http.Request) (string, string) {
	if h := r.Header.Get("Authorization"); h != "" {
		token, ok := strings.CutPrefix(h, "Bearer ")
		if ok && token != "" {
			return strings.TrimSpace(token), ctxkeys.AuthViaBearer
		}
	}

	cookie, err := r.Cookie(service.SessionCookie)
	if err == nil && cookie.Value != "" {
		return cookie.Value, ctxkeys.AuthViaCookie
	}
	return "", ""
}

// RequireAuth rejects anonymous requests with 401.
func RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ctxkeys.Identity(r.Context()) == nil {
			jsonError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	}
}

func jsonError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
