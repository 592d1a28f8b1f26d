package service

import (
	"context"
	"time"

	"github.com/otpbay/otpbay/internal/models"
	"github.com/otpbay/otpbay/internal/repository"

	"github.com/sirupsen/logrus"
)

// LedgerService owns per-user balances and referral state. All mutations go
// through the repository's conditional updates, which serialize concurrent
// writers per account.
//
// Approved deposits accumulate in deposit_total only; they do not mint
// spendable points. Points enter via referral bonuses and admin grants.
type LedgerService struct {
	accounts repository.AccountRepository
	metrics  *MetricsCollector
	events   EventPublisher
	logger   *logrus.Logger
}

func NewLedgerService(
	accounts repository.AccountRepository,
	metrics *MetricsCollector,
	events EventPublisher,
	logger *logrus.Logger,
) *LedgerService {
	return &LedgerService{
		accounts: accounts,
		metrics:  metrics,
		events:   events,
		logger:   logger,
	}
}

func (s *LedgerService) GetOrCreate(ctx context.Context, userID string) (*models.Account, error) {
	return s.accounts.GetOrCreate(ctx, userID)
}

func (s *LedgerService) DebitPoints(ctx context.Context, userID string, amount int64) (*models.Account, error) {
	if amount <= 0 {
		return nil, models.ErrInvalidAmount
	}

	account, err := s.accounts.DebitPoints(ctx, userID, amount)
	if err != nil {
		return nil, err
	}

	s.logger.Infof("Debited %d points from user %s, balance %d", amount, userID, account.Points)
	return account, nil
}

func (s *LedgerService) CreditPoints(ctx context.Context, userID string, amount int64) error {
	if amount <= 0 {
		return models.ErrInvalidAmount
	}

	if err := s.accounts.CreditPoints(ctx, userID, amount); err != nil {
		return err
	}

	s.logger.Infof("Credited %d points to user %s", amount, userID)
	return nil
}

func (s *LedgerService) SetPendingDeposit(ctx context.Context, userID string, amount int64) error {
	if amount <= 0 {
		return models.ErrInvalidAmount
	}

	return s.accounts.SetPendingDeposit(ctx, userID, amount)
}

// ResolveDeposit settles the outstanding claim. Approval moves the pending
// amount into deposit_total; rejection just clears it. Returns the amount
// that was resolved.
func (s *LedgerService) ResolveDeposit(ctx context.Context, userID string, approved bool) (int64, error) {
	amount, err := s.accounts.ResolveDeposit(ctx, userID, approved)
	if err != nil {
		return 0, err
	}

	s.metrics.IncrementDepositResolved(approved)
	s.logger.Infof("Resolved deposit of %d for user %s, approved=%v", amount, userID, approved)
	return amount, nil
}

// AssignReferrer records who referred the user and credits the referrer one
// point, at most once. Self-referrals, unknown referrers and repeat calls
// are silent no-ops, so retries are safe.
func (s *LedgerService) AssignReferrer(ctx context.Context, userID, referrerID string) error {
	if referrerID == "" || referrerID == userID {
		return nil
	}

	if _, err := s.accounts.Get(ctx, referrerID); err != nil {
		if err == models.ErrAccountNotFound {
			return nil
		}
		return err
	}

	assigned, err := s.accounts.SetReferrer(ctx, userID, referrerID)
	if err != nil {
		return err
	}
	if !assigned {
		return nil
	}

	// The bonus rides on the set-once above: a repeat call never reaches
	// this credit.
	if err := s.accounts.CreditPoints(ctx, referrerID, 1); err != nil {
		return err
	}

	s.metrics.IncrementReferralCredited()
	s.events.Publish(models.EventReferralCredit, models.ReferralEvent{
		UserID:     userID,
		ReferrerID: referrerID,
		Timestamp:  time.Now(),
	})
	s.logger.Infof("User %s referred by %s, bonus credited", userID, referrerID)

	return nil
}

func (s *LedgerService) SetActiveNumber(ctx context.Context, userID, number string) error {
	return s.accounts.SetActiveNumber(ctx, userID, number)
}
