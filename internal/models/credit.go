package models

import "time"

type CreditBalance struct {
	UserID           string     `json:"user_id"`
	Credits          int        `json:"credits"`
	LastDailyBonusAt *time.Time `json:"last_daily_bonus_at"`
}

// ReserveResult mirrors the authoritative store's answer to a reserve call.
type ReserveResult struct {
	Success    bool   `json:"success"`
	NewBalance int    `json:"new_balance"`
	Message    string `json:"message,omitempty"`
}
