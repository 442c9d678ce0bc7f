package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"tubetrack-backend/internal/models"
)

type sessionProvider interface {
	Current() (models.User, bool)
	SignIn(ctx context.Context, token string) (models.User, error)
	SignOut(ctx context.Context)
}

// SessionHandler lets the shell hand over the token it got from the
// identity service.
type SessionHandler struct {
	identity sessionProvider
}

func NewSessionHandler(identity sessionProvider) *SessionHandler {
	return &SessionHandler{identity: identity}
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := h.identity.Current()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]interface{}{"user": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": user})
}

func (h *SessionHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req models.SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", map[string]string{"token": "required"}, r))
		return
	}

	user, err := h.identity.SignIn(r.Context(), strings.TrimSpace(req.Token))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": user})
}

func (h *SessionHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	h.identity.SignOut(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
