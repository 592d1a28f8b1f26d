package service

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/otpbay/otpbay/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DepositNotifier delivers deposit-flow messages through the messaging
// transport: the review request to the admin and decision notices to the
// user.
type DepositNotifier interface {
	ForwardDepositReview(ctx context.Context, claim *models.DepositClaim) error
	NotifyUser(ctx context.Context, userID, text string) error
}

// DepositService drives the per-user deposit claim state machine:
//
//	None -> AwaitingAmount -> AwaitingProof -> PendingApproval -> None
//
// The ledger's pending_deposit is claimed when the amount is accepted and
// resolved by the admin decision; the in-memory claim only tracks the
// conversational phase.
type DepositService struct {
	ledger     *LedgerService
	notifier   DepositNotifier
	events     EventPublisher
	logger     *logrus.Logger
	adminID    string
	minDeposit int64

	mu     sync.Mutex
	claims map[string]*models.DepositClaim
}

func NewDepositService(
	ledger *LedgerService,
	notifier DepositNotifier,
	events EventPublisher,
	adminID string,
	minDeposit int64,
	logger *logrus.Logger,
) *DepositService {
	if minDeposit <= 0 {
		minDeposit = 10
	}

	return &DepositService{
		ledger:     ledger,
		notifier:   notifier,
		events:     events,
		logger:     logger,
		adminID:    adminID,
		minDeposit: minDeposit,
		claims:     make(map[string]*models.DepositClaim),
	}
}

// Request opens a new claim. Rejected while any earlier claim is still
// unresolved.
func (s *DepositService) Request(ctx context.Context, userID string) error {
	account, err := s.ledger.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}
	if account.PendingDeposit > 0 {
		return models.ErrClaimInProgress
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.claims[userID]; ok {
		return models.ErrClaimInProgress
	}

	s.claims[userID] = &models.DepositClaim{
		ClaimID:   uuid.New().String(),
		UserID:    userID,
		Status:    models.ClaimStatusAwaitingAmount,
		CreatedAt: time.Now(),
	}

	return nil
}

// SubmitAmount parses the user-entered amount and records the pending
// deposit on the ledger. Parse and floor failures leave the phase unchanged.
func (s *DepositService) SubmitAmount(ctx context.Context, userID, text string) (int64, error) {
	s.mu.Lock()
	claim, ok := s.claims[userID]
	if !ok || claim.Status != models.ClaimStatusAwaitingAmount {
		s.mu.Unlock()
		return 0, models.ErrNoPendingDeposit
	}
	s.mu.Unlock()

	amount, err := strconv.ParseInt(text, 10, 64)
	if err != nil || amount <= 0 {
		return 0, models.ErrInvalidAmount
	}
	if amount < s.minDeposit {
		return 0, models.ErrBelowMinimum
	}

	if err := s.ledger.SetPendingDeposit(ctx, userID, amount); err != nil {
		return 0, err
	}

	s.mu.Lock()
	claim.Amount = amount
	claim.Status = models.ClaimStatusAwaitingProof
	claimID := claim.ClaimID
	s.mu.Unlock()

	s.events.Publish(models.EventDepositRequest, models.DepositEvent{
		ClaimID:   claimID,
		UserID:    userID,
		Amount:    amount,
		Timestamp: time.Now(),
	})

	return amount, nil
}

// SubmitProof attaches the payment evidence and forwards the claim to the
// admin for review.
func (s *DepositService) SubmitProof(ctx context.Context, userID, proofFileID string) error {
	s.mu.Lock()
	claim, ok := s.claims[userID]
	if !ok || claim.Status != models.ClaimStatusAwaitingProof {
		s.mu.Unlock()
		return models.ErrNoPendingDeposit
	}
	claim.ProofFileID = proofFileID
	claim.Status = models.ClaimStatusPendingApproval
	snapshot := *claim
	s.mu.Unlock()

	if err := s.notifier.ForwardDepositReview(ctx, &snapshot); err != nil {
		// Roll the phase back so the user can resubmit.
		s.mu.Lock()
		claim.Status = models.ClaimStatusAwaitingProof
		s.mu.Unlock()
		return err
	}

	s.logger.Infof("Deposit claim %s for user %s forwarded for review", snapshot.ClaimID, userID)
	return nil
}

// Decide settles a claim. Only the designated approver may decide. Returns
// the resolved amount.
func (s *DepositService) Decide(ctx context.Context, issuerID, targetUserID string, approved bool) (int64, error) {
	if issuerID != s.adminID {
		return 0, models.ErrUnauthorized
	}

	amount, err := s.ledger.ResolveDeposit(ctx, targetUserID, approved)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	claim, ok := s.claims[targetUserID]
	var claimID string
	if ok {
		claimID = claim.ClaimID
	}
	delete(s.claims, targetUserID)
	s.mu.Unlock()

	s.events.Publish(models.EventDepositResolved, models.DepositEvent{
		ClaimID:   claimID,
		UserID:    targetUserID,
		Amount:    amount,
		Approved:  approved,
		Timestamp: time.Now(),
	})

	text := "❌ Deposit rejected"
	if approved {
		text = "✅ Deposit approved\n₹" + strconv.FormatInt(amount, 10)
	}
	if err := s.notifier.NotifyUser(ctx, targetUserID, text); err != nil {
		s.logger.Warnf("Failed to notify user %s about deposit decision: %v", targetUserID, err)
	}

	return amount, nil
}

// Abort discards a claim that has not yet reached the admin and clears any
// pending ledger amount it recorded.
func (s *DepositService) Abort(ctx context.Context, userID string) error {
	s.mu.Lock()
	claim, ok := s.claims[userID]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	if claim.Status == models.ClaimStatusPendingApproval {
		s.mu.Unlock()
		return models.ErrClaimInProgress
	}
	status := claim.Status
	delete(s.claims, userID)
	s.mu.Unlock()

	if status == models.ClaimStatusAwaitingProof {
		if _, err := s.ledger.ResolveDeposit(ctx, userID, false); err != nil && err != models.ErrNoPendingDeposit {
			return err
		}
	}

	return nil
}

// Phase reports the user's current claim phase, used by the transport to
// route free-form text and photo messages.
func (s *DepositService) Phase(userID string) (models.ClaimStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	claim, ok := s.claims[userID]
	if !ok {
		return "", false
	}
	return claim.Status, true
}
