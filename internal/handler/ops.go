package handler

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/stepwise-app/stepwise/internal/service"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpsHandler serves the health check and the externally scheduled jobs.
type OpsHandler struct {
	db         Pinger
	reminders  *service.ReminderService
	reconciler *service.Reconciler
	cronSecret string
}

func NewOpsHandler(db Pinger, reminders *service.ReminderService, reconciler *service.Reconciler, cronSecret string) *OpsHandler {
	return &OpsHandler{
		db:         db,
		reminders:  reminders,
		reconciler: reconciler,
		cronSecret: cronSecret,
	}
}

func (h *OpsHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	err := h.db.Ping(ctx)
	if err != nil {
		slog.Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "ok"})
}

// SendReminders runs one reminder pass. The scheduler authenticates with
// the CRON_SECRET bearer token.
func (h *OpsHandler) SendReminders(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}

	report, err := h.reminders.Send(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Reconcile replays goals held in the fallback log.
func (h *OpsHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}

	report, err := h.reconciler.Run(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *OpsHandler) authorized(w http.ResponseWriter, r *http.Request) bool {
	token, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if h.cronSecret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.cronSecret)) != 1 {
		writeMessage(w, http.StatusUnauthorized, "invalid cron token")
		return false
	}
	return true
}
