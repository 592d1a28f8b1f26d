package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// ReferralService handles the /start deep-link bonus: a new user arriving
// through another user's link credits the referrer exactly one point, once.
type ReferralService struct {
	ledger *LedgerService
	logger *logrus.Logger
}

func NewReferralService(ledger *LedgerService, logger *logrus.Logger) *ReferralService {
	return &ReferralService{
		ledger: ledger,
		logger: logger,
	}
}

// HandleStart parses the /start payload and assigns the referrer. Safe to
// call on every /start: the underlying assignment is idempotent.
func (s *ReferralService) HandleStart(ctx context.Context, userID, payload string) error {
	referrerID := strings.TrimSpace(payload)
	if referrerID == "" {
		return nil
	}

	return s.ledger.AssignReferrer(ctx, userID, referrerID)
}

// Link renders the user's personal referral link.
func (s *ReferralService) Link(botUsername, userID string) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", botUsername, userID)
}
