package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"tubetrack-backend/internal/models"
)

type Action string

const (
	ActionSearch Action = "search"
	ActionNotes  Action = "notes"
	ActionTest   Action = "test"
)

const refundPrefix = "refund_"

// CreditStore is the authoritative balance. Reserve must check and decrement in
// one atomic step; a negative cost is a refund.
type CreditStore interface {
	Balance(ctx context.Context, userID string) (models.CreditBalance, error)
	Reserve(ctx context.Context, userID string, cost int, label string) (models.ReserveResult, error)
}

// CreditPolicy is the injected cost table.
type CreditPolicy struct {
	Costs map[Action]int
	// ChargeOnCacheHit decides whether an explicit generate request is billed
	// when the artifact is already cached.
	ChargeOnCacheHit map[Action]bool
}

func DefaultCreditPolicy() CreditPolicy {
	return CreditPolicy{
		Costs: map[Action]int{
			ActionSearch: 15,
			ActionNotes:  10,
			ActionTest:   5,
		},
		ChargeOnCacheHit: map[Action]bool{
			ActionNotes: true,
		},
	}
}

// Reservation is a successful deduction that may still need to be refunded.
type Reservation struct {
	UserID     string
	Action     Action
	Cost       int
	NewBalance int
}

type CreditLedger struct {
	store     CreditStore
	policy    CreditPolicy
	publisher Publisher
	log       *zap.Logger

	mu     sync.Mutex
	cached map[string]int
}

func NewCreditLedger(store CreditStore, policy CreditPolicy, publisher Publisher, log *zap.Logger) *CreditLedger {
	if log == nil {
		log = zap.NewNop()
	}
	return &CreditLedger{
		store:     store,
		policy:    policy,
		publisher: publisher,
		log:       log,
		cached:    make(map[string]int),
	}
}

func (l *CreditLedger) Cost(action Action) (int, error) {
	cost, ok := l.policy.Costs[action]
	if !ok || cost < 0 {
		return 0, &ValidationError{Fields: map[string]string{"action": fmt.Sprintf("no cost configured for %q", action)}}
	}
	return cost, nil
}

func (l *CreditLedger) ChargesOnCacheHit(action Action) bool {
	return l.policy.ChargeOnCacheHit[action]
}

// Cached returns the last balance seen for the user, if any.
func (l *CreditLedger) Cached(userID string) (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.cached[userID]
	return v, ok
}

func (l *CreditLedger) setCached(userID string, balance int) {
	l.mu.Lock()
	l.cached[userID] = balance
	l.mu.Unlock()
}

// Balance reads the authoritative balance and refreshes the cached copy.
func (l *CreditLedger) Balance(ctx context.Context, userID string) (int, error) {
	bal, err := l.store.Balance(ctx, userID)
	if err != nil {
		return 0, &TransientNetworkError{Op: "credits.balance", Err: err}
	}
	l.setCached(userID, bal.Credits)
	return bal.Credits, nil
}

// Reserve runs the optimistic pre-check and then the atomic deduction.
func (l *CreditLedger) Reserve(ctx context.Context, userID string, action Action) (Reservation, error) {
	if userID == "" {
		return Reservation{}, &UnauthorizedError{Message: "Sign in to use credits"}
	}
	cost, err := l.Cost(action)
	if err != nil {
		return Reservation{}, err
	}

	if cached, ok := l.Cached(userID); ok && cached < cost {
		return Reservation{}, &InsufficientCreditsError{Action: string(action), Needed: cost, Balance: cached}
	}

	res, err := l.store.Reserve(ctx, userID, cost, string(action))
	if err != nil {
		return Reservation{}, &TransientNetworkError{Op: "credits.reserve", Err: err}
	}
	l.setCached(userID, res.NewBalance)
	if !res.Success {
		return Reservation{}, &InsufficientCreditsError{Action: string(action), Needed: cost, Balance: res.NewBalance}
	}

	l.notify(ctx, userID, res.NewBalance, string(action))
	return Reservation{UserID: userID, Action: action, Cost: cost, NewBalance: res.NewBalance}, nil
}

// Refund returns a reservation through the same atomic path. When that call
// fails the cached balance is credited locally and the failure is reported.
func (l *CreditLedger) Refund(ctx context.Context, r Reservation) error {
	if r.Cost == 0 {
		return nil
	}
	label := refundPrefix + string(r.Action)

	res, err := l.store.Reserve(context.WithoutCancel(ctx), r.UserID, -r.Cost, label)
	if err == nil && res.Success {
		l.setCached(r.UserID, res.NewBalance)
		l.notify(ctx, r.UserID, res.NewBalance, label)
		return nil
	}
	if err == nil {
		err = errors.New(res.Message)
	}

	l.mu.Lock()
	if cur, ok := l.cached[r.UserID]; ok {
		l.cached[r.UserID] = cur + r.Cost
	}
	l.mu.Unlock()

	l.log.Error("credit refund failed, applied locally",
		zap.String("user_id", r.UserID),
		zap.String("action", string(r.Action)),
		zap.Int("cost", r.Cost),
		zap.Error(err),
	)
	return fmt.Errorf("refund of %d credits for %s failed: %w", r.Cost, r.Action, err)
}

// Run charges action, calls fn, and refunds if fn fails.
func (l *CreditLedger) Run(ctx context.Context, userID string, action Action, fn func(ctx context.Context) error) error {
	r, err := l.Reserve(ctx, userID, action)
	if err != nil {
		return err
	}

	if err := fn(ctx); err != nil {
		if refundErr := l.Refund(ctx, r); refundErr != nil {
			return errors.Join(err, refundErr)
		}
		return err
	}
	return nil
}

func (l *CreditLedger) notify(ctx context.Context, userID string, balance int, action string) {
	if l.publisher == nil {
		return
	}
	l.publisher.PublishUpdate(ctx, userID, models.WSMessage{
		Type:    models.EventCreditsChanged,
		Payload: models.CreditsEvent{Credits: balance, Action: action},
	})
}
