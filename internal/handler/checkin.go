package handler

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/stepwise-app/stepwise/internal/service"
)

const maxCheckInUpload = 10 << 20

type CheckInHandler struct {
	checkInService *service.CheckInService
}

func NewCheckInHandler(checkInService *service.CheckInService) *CheckInHandler {
	return &CheckInHandler{checkInService: checkInService}
}

// Create accepts a JSON body, or a multipart form when an image is attached.
func (h *CheckInHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, err := checkInInput(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	checkIn, err := h.checkInService.Create(r.Context(), userID(r), r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, checkIn)
}

func (h *CheckInHandler) List(w http.ResponseWriter, r *http.Request) {
	checkIns, err := h.checkInService.List(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"checkIns": checkIns})
}

func checkInInput(w http.ResponseWriter, r *http.Request) (service.CheckInInput, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var body struct {
			Type     string `json:"type"`
			Mood     string `json:"mood"`
			Content  string `json:"content"`
			IsPublic bool   `json:"isPublic"`
		}
		err := decodeJSON(r, &body)
		if err != nil {
			return service.CheckInInput{}, err
		}
		return service.CheckInInput{
			Type:     body.Type,
			Mood:     body.Mood,
			Content:  body.Content,
			IsPublic: body.IsPublic,
		}, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxCheckInUpload+(1<<20))
	err := r.ParseMultipartForm(maxCheckInUpload)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return service.CheckInInput{}, service.Invalid("upload is too large")
		}
		return service.CheckInInput{}, service.Invalid("failed to parse form")
	}

	in := service.CheckInInput{
		Type:    r.FormValue("type"),
		Mood:    r.FormValue("mood"),
		Content: r.FormValue("content"),
	}
	if v := r.FormValue("isPublic"); v != "" {
		in.IsPublic, err = strconv.ParseBool(v)
		if err != nil {
			return service.CheckInInput{}, service.Invalid("isPublic must be true or false")
		}
	}

	file, header, err := r.FormFile("image")
	switch {
	case err == nil:
		closeErr := file.Close()
		if closeErr != nil {
			slog.Error("failed to close file", "error", closeErr)
		}
		in.Image = header
	case !errors.Is(err, http.ErrMissingFile):
		return service.CheckInInput{}, service.Invalid("failed to read image")
	}

	return in, nil
}
