package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/stepwise-app/stepwise/internal/service"
	"github.com/stepwise-app/stepwise/internal/service/payment"
)

const maxWebhookBody = 1 << 20

// BillingHandler fronts the configured payment provider. A nil provider
// means billing is disabled and every endpoint answers 503.
type BillingHandler struct {
	userService     *service.UserService
	paymentProvider payment.Provider
}

func NewBillingHandler(userService *service.UserService, paymentProvider payment.Provider) *BillingHandler {
	return &BillingHandler{
		userService:     userService,
		paymentProvider: paymentProvider,
	}
}

func (h *BillingHandler) enabled(w http.ResponseWriter) bool {
	if h.paymentProvider == nil {
		writeMessage(w, http.StatusServiceUnavailable, "billing is not configured")
		return false
	}
	return true
}

func (h *BillingHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w) {
		return
	}

	var body struct {
		Interval string `json:"interval"`
	}
	err := decodeJSON(r, &body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if body.Interval == "" {
		body.Interval = payment.IntervalMonthly
	}

	user, err := h.userService.EnsureUser(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	checkoutURL, err := h.paymentProvider.CreateCheckoutURL(r.Context(), user.ID, body.Interval, user.Email, user.DisplayName())
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("checkout created", "user_id", user.ID, "provider", h.paymentProvider.Name(), "interval", body.Interval)
	writeJSON(w, http.StatusOK, map[string]string{"url": checkoutURL})
}

func (h *BillingHandler) CustomerPortal(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w) {
		return
	}

	portalURL, err := h.paymentProvider.CustomerPortalURL(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": portalURL})
}

func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w) {
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		slog.Error("failed to read webhook payload", "error", err)
		writeMessage(w, http.StatusBadRequest, "failed to read payload")
		return
	}

	err = h.paymentProvider.HandleWebhook(r.Context(), payload, r.Header)
	if err != nil {
		slog.Error("failed to handle webhook", "error", err, "provider", h.paymentProvider.Name())
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
