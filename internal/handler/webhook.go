package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/stepwise-app/stepwise/internal/service"
)

// IdentityWebhookHandler receives user lifecycle events from the identity
// provider.
type IdentityWebhookHandler struct {
	webhook *service.IdentityWebhook
}

func NewIdentityWebhookHandler(webhook *service.IdentityWebhook) *IdentityWebhookHandler {
	return &IdentityWebhookHandler{webhook: webhook}
}

func (h *IdentityWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.webhook == nil {
		writeMessage(w, http.StatusServiceUnavailable, "identity webhook is not configured")
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		slog.Error("failed to read webhook payload", "error", err)
		writeMessage(w, http.StatusBadRequest, "failed to read payload")
		return
	}

	err = h.webhook.Handle(r.Context(), payload, r.Header)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
