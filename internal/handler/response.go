package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/stepwise-app/stepwise/internal/ctxkeys"
	"github.com/stepwise-app/stepwise/internal/repository"
	"github.com/stepwise-app/stepwise/internal/service"
	"github.com/stepwise-app/stepwise/internal/service/payment"
)

const maxJSONBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps service errors to status codes. Unexpected errors are
// logged and reported to the caller without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case service.IsValidation(err):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrGoalNotFound),
		errors.Is(err, repository.ErrStepNotFound),
		errors.Is(err, repository.ErrUserNotFound):
		writeMessage(w, http.StatusNotFound, "not found")
	case errors.Is(err, repository.ErrUsernameTaken), errors.Is(err, repository.ErrSlugTaken):
		writeMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrGoalLimitReached),
		errors.Is(err, service.ErrProRequired),
		errors.Is(err, service.ErrActiveSubscription):
		writeMessage(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrInvalidWebhook):
		writeMessage(w, http.StatusBadRequest, "invalid webhook")
	case errors.Is(err, payment.ErrInvalidSignature):
		writeMessage(w, http.StatusUnauthorized, "invalid signature")
	case errors.Is(err, payment.ErrNoCustomer):
		writeMessage(w, http.StatusNotFound, "no billing account for this user")
	case errors.Is(err, payment.ErrUnknownInterval):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrConflict):
		writeMessage(w, http.StatusConflict, "concurrent update, please retry")
	default:
		attrs := []any{"error", err, "method", r.Method, "path", r.URL.Path, "request_id", ctxkeys.RequestID(r.Context())}
		if id := ctxkeys.Identity(r.Context()); id != nil {
			attrs = append(attrs, "user_id", id.UserID)
		}
		slog.Error("request failed", attrs...)
		writeMessage(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	err := dec.Decode(v)
	if err != nil {
		return service.Invalid("invalid request body: %s", jsonProblem(err))
	}
	return nil
}

func jsonProblem(err error) string {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, io.EOF):
		return "empty body"
	case errors.As(err, &syntaxErr):
		return fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset)
	case errors.As(err, &typeErr):
		return fmt.Sprintf("field %q has the wrong type", typeErr.Field)
	default:
		return err.Error()
	}
}

// identity returns the authenticated caller. Routes using it are wrapped in
// middleware.RequireAuth.
func identity(r *http.Request) service.Identity {
	return *ctxkeys.Identity(r.Context())
}

func userID(r *http.Request) string {
	return ctxkeys.Identity(r.Context()).UserID
}
