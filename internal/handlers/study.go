package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tubetrack-backend/internal/middleware"
	"tubetrack-backend/internal/models"
	"tubetrack-backend/internal/services"
)

type studyService interface {
	GenerateNotes(ctx context.Context, userID, playlistID, videoID string, force bool) (models.NotesRecord, error)
	GetTest(ctx context.Context, userID, playlistID, videoID string) (services.TestView, error)
	GenerateTest(ctx context.Context, userID, playlistID, videoID string, force bool) (services.TestView, error)
	SubmitTest(ctx context.Context, userID, playlistID, videoID string, answers []int) (models.TestResult, error)
	ResultsForPlaylist(ctx context.Context, userID, playlistID string) ([]models.TestResult, error)
	UserStats(ctx context.Context, userID string) (models.UserStats, error)
}

type StudyHandler struct {
	study studyService
}

func NewStudyHandler(study studyService) *StudyHandler {
	return &StudyHandler{study: study}
}

func (h *StudyHandler) Notes(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateRequest
	if err := decodeOptional(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	notes, err := h.study.GenerateNotes(r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "id"),
		chi.URLParam(r, "videoId"),
		req.Force,
	)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

func (h *StudyHandler) GetTest(w http.ResponseWriter, r *http.Request) {
	view, err := h.study.GetTest(r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "id"),
		chi.URLParam(r, "videoId"),
	)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *StudyHandler) GenerateTest(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateRequest
	if err := decodeOptional(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	view, err := h.study.GenerateTest(r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "id"),
		chi.URLParam(r, "videoId"),
		req.Force,
	)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *StudyHandler) SubmitTest(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	result, err := h.study.SubmitTest(r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "id"),
		chi.URLParam(r, "videoId"),
		req.Answers,
	)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *StudyHandler) Results(w http.ResponseWriter, r *http.Request) {
	results, err := h.study.ResultsForPlaylist(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

func (h *StudyHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.study.UserStats(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
