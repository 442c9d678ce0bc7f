package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"tubetrack-backend/internal/coordinator"
	"tubetrack-backend/internal/middleware"
	"tubetrack-backend/internal/models"
	"tubetrack-backend/internal/services"
)

type playlistCoordinator interface {
	LoadPlaylistIndex(ctx context.Context, userID string) ([]models.Playlist, error)
	OpenPlaylist(ctx context.Context, playlistID, userID string) (coordinator.PlaylistSnapshot, error)
	Refresh(ctx context.Context, playlistID string, force bool) (models.PlaylistDetails, error)
	AddPlaylist(ctx context.Context, playlistID, userID string) (models.Playlist, error)
	DeletePlaylist(ctx context.Context, playlistID, userID string) error
	ToggleProgress(ctx context.Context, userID, playlistID, videoID string) (models.ProgressRecord, error)
	CacheInfo(ctx context.Context, playlistID string) (*time.Time, error)
	TaskStatus(id string) (models.TaskStatus, bool)
}

type PlaylistHandler struct {
	coord playlistCoordinator
}

func NewPlaylistHandler(coord playlistCoordinator) *PlaylistHandler {
	return &PlaylistHandler{coord: coord}
}

type openPlaylistResponse struct {
	coordinator.PlaylistSnapshot
	Part       int            `json:"part"`
	PartCount  int            `json:"part_count"`
	PartSizes  []int          `json:"part_sizes"`
	PartVideos []models.Video `json:"part_videos"`
}

func (h *PlaylistHandler) List(w http.ResponseWriter, r *http.Request) {
	playlists, err := h.coord.LoadPlaylistIndex(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if playlists == nil {
		playlists = []models.Playlist{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"playlists": playlists})
}

func (h *PlaylistHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req models.AddPlaylistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	playlistID := services.ExtractPlaylistID(req.URL)
	if playlistID == "" {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", map[string]string{"url": "not a playlist link or id"}, r))
		return
	}

	p, err := h.coord.AddPlaylist(r.Context(), playlistID, middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *PlaylistHandler) Open(w http.ResponseWriter, r *http.Request) {
	playlistID := chi.URLParam(r, "id")
	snap, err := h.coord.OpenPlaylist(r.Context(), playlistID, middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	// A missing or unparsable part falls back to the first one.
	part, _ := strconv.Atoi(r.URL.Query().Get("part"))
	segments := services.Segment(snap.Videos)
	part = services.SelectSegment(segments, part)

	resp := openPlaylistResponse{
		PlaylistSnapshot: snap,
		Part:             part,
		PartCount:        len(segments),
		PartSizes:        services.SegmentSizes(segments),
		PartVideos:       []models.Video{},
	}
	if len(segments) > 0 {
		resp.PartVideos = segments[part]
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *PlaylistHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	details, err := h.coord.Refresh(r.Context(), chi.URLParam(r, "id"), force)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (h *PlaylistHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.coord.DeletePlaylist(r.Context(), chi.URLParam(r, "id"), middleware.GetUserID(r.Context())); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PlaylistHandler) CacheInfo(w http.ResponseWriter, r *http.Request) {
	cachedAt, err := h.coord.CacheInfo(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"cached_at": cachedAt})
}

func (h *PlaylistHandler) ToggleProgress(w http.ResponseWriter, r *http.Request) {
	rec, err := h.coord.ToggleProgress(r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "id"),
		chi.URLParam(r, "videoId"),
	)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *PlaylistHandler) Task(w http.ResponseWriter, r *http.Request) {
	status, ok := h.coord.TaskStatus(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Task not found", r))
		return
	}
	writeJSON(w, http.StatusOK, status)
}
