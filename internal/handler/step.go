package handler

import (
	"net/http"

	"github.com/stepwise-app/stepwise/internal/service"
)

type StepHandler struct {
	stepService *service.StepService
}

func NewStepHandler(stepService *service.StepService) *StepHandler {
	return &StepHandler{stepService: stepService}
}

func (h *StepHandler) Edit(w http.ResponseWriter, r *http.Request) {
	var e service.StepEdit
	err := decodeJSON(r, &e)
	if err != nil {
		writeError(w, r, err)
		return
	}

	step, err := h.stepService.Edit(r.Context(), userID(r), r.PathValue("id"), e)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, step)
}

// UpdateStatus sets a step's status. Repeating the current status is a no-op
// reported with changed=false.
func (h *StepHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	err := decodeJSON(r, &body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	change, err := h.stepService.UpdateStatus(r.Context(), userID(r), r.PathValue("id"), body.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, change)
}

func (h *StepHandler) Breakdown(w http.ResponseWriter, r *http.Request) {
	breakdown, err := h.stepService.Breakdown(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, breakdown)
}
