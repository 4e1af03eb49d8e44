package handler

import (
	"log/slog"
	"net/http"

	"github.com/stepwise-app/stepwise/internal/service"
)

type MeHandler struct {
	userService *service.UserService
	authService *service.AuthService
}

func NewMeHandler(userService *service.UserService, authService *service.AuthService) *MeHandler {
	return &MeHandler{
		userService: userService,
		authService: authService,
	}
}

func (h *MeHandler) Me(w http.ResponseWriter, r *http.Request) {
	me, err := h.userService.Me(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, me)
}

func (h *MeHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	_, err := h.userService.EnsureUser(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	dashboard, err := h.userService.Dashboard(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

func (h *MeHandler) SetUsername(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
	}
	err := decodeJSON(r, &body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	_, err = h.userService.EnsureUser(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.userService.SetUsername(r.Context(), userID(r), body.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *MeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := userID(r)
	err := h.userService.DeleteAccount(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("account deleted", "user_id", id)
	h.authService.ClearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}
