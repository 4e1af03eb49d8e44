package handler

import (
	"net/http"

	"github.com/stepwise-app/stepwise/internal/service"
)

// PublicHandler serves the data behind shareable progress pages. No session
// is needed.
type PublicHandler struct {
	publicService *service.PublicService
}

func NewPublicHandler(publicService *service.PublicService) *PublicHandler {
	return &PublicHandler{publicService: publicService}
}

func (h *PublicHandler) Profile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.publicService.Profile(r.Context(), r.PathValue("username"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=60")
	writeJSON(w, http.StatusOK, profile)
}

func (h *PublicHandler) Goal(w http.ResponseWriter, r *http.Request) {
	goal, err := h.publicService.Goal(r.Context(), r.PathValue("username"), r.PathValue("slug"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=60")
	writeJSON(w, http.StatusOK, goal)
}
