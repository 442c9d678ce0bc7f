package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tubetrack-backend/internal/models"
)

// StartingCredits is granted the first time a user's balance is touched.
const StartingCredits = 100

// CreditRepo is the authoritative credit balance with an audit trail.
type CreditRepo struct {
	pool *pgxpool.Pool
}

func NewCreditRepo(pool *pgxpool.Pool) *CreditRepo {
	return &CreditRepo{pool: pool}
}

const ensureCreditsQuery = `INSERT INTO user_credits (user_id, credits) VALUES ($1, $2) ON CONFLICT (user_id) DO NOTHING`

func (r *CreditRepo) Balance(ctx context.Context, userID string) (models.CreditBalance, error) {
	if _, err := r.pool.Exec(ctx, ensureCreditsQuery, userID, StartingCredits); err != nil {
		return models.CreditBalance{}, fmt.Errorf("ensure credits: %w", err)
	}

	b := models.CreditBalance{UserID: userID}
	err := r.pool.QueryRow(ctx,
		"SELECT credits, last_daily_bonus_at FROM user_credits WHERE user_id = $1", userID,
	).Scan(&b.Credits, &b.LastDailyBonusAt)
	if err != nil {
		return models.CreditBalance{}, fmt.Errorf("get credits: %w", err)
	}
	return b, nil
}

// Reserve deducts cost (or credits it back when negative) only if the balance
// stays non-negative. The check and the write are a single statement under the
// row lock, and the audit row commits with it.
func (r *CreditRepo) Reserve(ctx context.Context, userID string, cost int, label string) (models.ReserveResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return models.ReserveResult{}, fmt.Errorf("begin reserve: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, ensureCreditsQuery, userID, StartingCredits); err != nil {
		return models.ReserveResult{}, fmt.Errorf("ensure credits: %w", err)
	}

	var balance int
	err = tx.QueryRow(ctx,
		`UPDATE user_credits SET credits = credits - $2, updated_at = NOW()
		WHERE user_id = $1 AND credits - $2 >= 0
		RETURNING credits`,
		userID, cost,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		if err := tx.QueryRow(ctx, "SELECT credits FROM user_credits WHERE user_id = $1", userID).Scan(&balance); err != nil {
			return models.ReserveResult{}, fmt.Errorf("read credits: %w", err)
		}
		return models.ReserveResult{Success: false, NewBalance: balance, Message: "Insufficient credits"}, nil
	}
	if err != nil {
		return models.ReserveResult{}, fmt.Errorf("reserve credits: %w", err)
	}

	_, err = tx.Exec(ctx,
		"INSERT INTO credit_transactions (id, user_id, amount, label, balance) VALUES ($1, $2, $3, $4, $5)",
		uuid.New(), userID, -cost, label, balance)
	if err != nil {
		return models.ReserveResult{}, fmt.Errorf("record credit transaction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.ReserveResult{}, fmt.Errorf("commit reserve: %w", err)
	}
	return models.ReserveResult{Success: true, NewBalance: balance}, nil
}
