package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/stepwise-app/stepwise/internal/ctxkeys"
)

const requestIDHeader = "X-Request-ID"

// RequestID tags the request with an id, reusing one set by a proxy, and
// echoes it in the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(ctxkeys.WithRequestID(r.Context(), id)))
	})
}
