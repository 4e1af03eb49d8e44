package handler

import (
	"log/slog"
	"net/http"

	"github.com/stepwise-app/stepwise/internal/model"
	"github.com/stepwise-app/stepwise/internal/service"
)

type GoalHandler struct {
	goalService *service.GoalService
}

func NewGoalHandler(goalService *service.GoalService) *GoalHandler {
	return &GoalHandler{
		goalService: goalService,
	}
}

// Create plans and stores a new goal. A goal that could only be written to
// the fallback log is still a success: the response carries isFallback.
func (h *GoalHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in service.CreateGoalInput
	err := decodeJSON(r, &in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.goalService.Create(r.Context(), identity(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if res.IsFallback {
		slog.Warn("goal created on fallback path", "user_id", userID(r), "goal_id", res.GoalID)
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *GoalHandler) List(w http.ResponseWriter, r *http.Request) {
	goals, err := h.goalService.List(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"goals": goals})
}

func (h *GoalHandler) Get(w http.ResponseWriter, r *http.Request) {
	detail, err := h.goalService.Get(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *GoalHandler) Update(w http.ResponseWriter, r *http.Request) {
	var u service.GoalUpdate
	err := decodeJSON(r, &u)
	if err != nil {
		writeError(w, r, err)
		return
	}

	goal, err := h.goalService.Update(r.Context(), userID(r), r.PathValue("id"), u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

func (h *GoalHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.goalService.Delete(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *GoalHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var order []model.StepOrder
	err := decodeJSON(r, &order)
	if err != nil {
		writeError(w, r, err)
		return
	}

	steps, err := h.goalService.Reorder(r.Context(), userID(r), r.PathValue("id"), order)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"steps": steps})
}

func (h *GoalHandler) Export(w http.ResponseWriter, r *http.Request) {
	export, err := h.goalService.Export(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="stepwise-goals.json"`)
	writeJSON(w, http.StatusOK, export)
}
