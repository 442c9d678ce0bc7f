package handlers

import (
	"context"
	"net/http"

	"tubetrack-backend/internal/middleware"
	"tubetrack-backend/internal/models"
	"tubetrack-backend/internal/services"
)

type creditLedger interface {
	Balance(ctx context.Context, userID string) (int, error)
	Cost(action services.Action) (int, error)
}

type CreditsHandler struct {
	ledger creditLedger
}

func NewCreditsHandler(ledger creditLedger) *CreditsHandler {
	return &CreditsHandler{ledger: ledger}
}

// Balance is mounted behind middleware.RequireUser.
func (h *CreditsHandler) Balance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.ledger.Balance(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	costs := make(map[string]int, 3)
	for _, action := range []services.Action{services.ActionSearch, services.ActionNotes, services.ActionTest} {
		cost, err := h.ledger.Cost(action)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		costs[string(action)] = cost
	}
	writeJSON(w, http.StatusOK, models.CreditsResponse{Credits: balance, Costs: costs})
}
