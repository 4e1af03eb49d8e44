package middleware

import "net/http"

// Chain applies middleware so that they execute in the order provided.
//
//	handler := Chain(mux,
//	    RequestID,         // runs first
//	    RequestLogging,
//	    AuthMiddleware(a), // runs last, right before mux
//	)
func Chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
