package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tubetrack-backend/internal/models"
)

const (
	DefaultBalanceSyncInterval = 5 * time.Minute
	balanceSyncTimeout         = 15 * time.Second
	balanceSyncLabel           = "sync"
)

// SessionSource reports the signed-in user, if any.
type SessionSource interface {
	Current() (models.User, bool)
}

// BalanceSync periodically re-reads the signed-in user's balance so grants
// and charges made on other devices reach the shell.
type BalanceSync struct {
	ledger   *CreditLedger
	session  SessionSource
	interval time.Duration
	log      *zap.Logger
	stopChan chan struct{}
	done     chan struct{}
}

func NewBalanceSync(ledger *CreditLedger, session SessionSource, interval time.Duration, log *zap.Logger) *BalanceSync {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultBalanceSyncInterval
	}
	return &BalanceSync{
		ledger:   ledger,
		session:  session,
		interval: interval,
		log:      log,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *BalanceSync) Start() {
	go s.loop()
	s.log.Info("balance sync started", zap.Duration("interval", s.interval))
}

// Stop is safe to call more than once.
func (s *BalanceSync) Stop() {
	select {
	case <-s.stopChan:
		return
	default:
		close(s.stopChan)
	}
	<-s.done
}

func (s *BalanceSync) loop() {
	defer close(s.done)

	// Run on startup as well as by interval.
	s.runOnce()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.runOnce()
		}
	}
}

func (s *BalanceSync) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), balanceSyncTimeout)
	defer cancel()
	s.Sync(ctx)
}

// Sync reads the current user's balance once and announces it when it
// differs from the last balance this process saw.
func (s *BalanceSync) Sync(ctx context.Context) {
	user, ok := s.session.Current()
	if !ok {
		return
	}

	prev, seen := s.ledger.Cached(user.ID)
	balance, err := s.ledger.Balance(ctx, user.ID)
	if err != nil {
		s.log.Warn("balance sync failed", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	if balanceChanged(prev, seen, balance) {
		s.ledger.notify(ctx, user.ID, balance, balanceSyncLabel)
	}
}

func balanceChanged(prev int, seen bool, current int) bool {
	return !seen || prev != current
}
