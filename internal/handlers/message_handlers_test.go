package handlers

import (
	"context"
	"sync"
	"testing"

	"github.com/otpbay/otpbay/internal/models"
	"github.com/otpbay/otpbay/internal/service"

	"github.com/go-telegram/bot"
	botmodels "github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
)

// Shared collector: prometheus collectors register globally, so the test
// binary creates them once.
var testMetrics = service.NewMetricsCollector()

// memAccounts is a minimal in-memory account store for handler tests.
type memAccounts struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
}

func (r *memAccounts) GetOrCreate(ctx context.Context, userID string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[userID]
	if !ok {
		account = &models.Account{UserID: userID}
		r.accounts[userID] = account
	}
	snapshot := *account
	return &snapshot, nil
}

func (r *memAccounts) Get(ctx context.Context, userID string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[userID]
	if !ok {
		return nil, models.ErrAccountNotFound
	}
	snapshot := *account
	return &snapshot, nil
}

func (r *memAccounts) DebitPoints(ctx context.Context, userID string, amount int64) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[userID]
	if !ok || account.Points < amount {
		return nil, models.ErrInsufficientFunds
	}
	account.Points -= amount
	snapshot := *account
	return &snapshot, nil
}

func (r *memAccounts) CreditPoints(ctx context.Context, userID string, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[userID]
	if !ok {
		return models.ErrAccountNotFound
	}
	account.Points += amount
	return nil
}

func (r *memAccounts) SetPendingDeposit(ctx context.Context, userID string, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[userID]
	if !ok {
		return models.ErrAccountNotFound
	}
	if account.PendingDeposit != 0 {
		return models.ErrClaimAlreadyPending
	}
	account.PendingDeposit = amount
	return nil
}

func (r *memAccounts) ResolveDeposit(ctx context.Context, userID string, approved bool) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[userID]
	if !ok || account.PendingDeposit == 0 {
		return 0, models.ErrNoPendingDeposit
	}
	amount := account.PendingDeposit
	if approved {
		account.DepositTotal += amount
	}
	account.PendingDeposit = 0
	return amount, nil
}

func (r *memAccounts) SetReferrer(ctx context.Context, userID, referrerID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[userID]
	if !ok || account.ReferredBy != "" {
		return false, nil
	}
	account.ReferredBy = referrerID
	return true, nil
}

func (r *memAccounts) SetActiveNumber(ctx context.Context, userID, number string) error {
	return nil
}

func (r *memAccounts) CreateIndexes(ctx context.Context) error { return nil }

// fakeBot records outgoing messages instead of talking to Telegram.
type fakeBot struct {
	mu      sync.Mutex
	sent    []string
	reviews []*models.DepositClaim
}

func (f *fakeBot) Start(ctx context.Context) {}

func (f *fakeBot) SendMessage(ctx context.Context, chatID int64, text string, markup botmodels.ReplyMarkup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeBot) EditMessage(ctx context.Context, chatID int64, messageID int, text string, markup botmodels.ReplyMarkup) error {
	return f.SendMessage(ctx, chatID, text, markup)
}

func (f *fakeBot) GetBot() *bot.Bot { return nil }

func (f *fakeBot) ForwardDepositReview(ctx context.Context, claim *models.DepositClaim) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	snapshot := *claim
	f.reviews = append(f.reviews, &snapshot)
	return nil
}

func (f *fakeBot) NotifyUser(ctx context.Context, userID, text string) error {
	return f.SendMessage(ctx, 0, text, nil)
}

func (f *fakeBot) lastSent() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1]
}

type MessageHandlersTestSuite struct {
	suite.Suite
	botSvc   *fakeBot
	deposit  *service.DepositService
	handlers *MessageHandlers
}

func (s *MessageHandlersTestSuite) SetupTest() {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	accounts := &memAccounts{accounts: make(map[string]*models.Account)}
	s.botSvc = &fakeBot{}

	ledger := service.NewLedgerService(accounts, testMetrics, service.NopPublisher{}, logger)
	s.deposit = service.NewDepositService(ledger, s.botSvc, service.NopPublisher{}, "999", 10, logger)
	s.handlers = NewMessageHandlers(s.deposit, s.botSvc, "shop@upi", 10, logger)
}

func (s *MessageHandlersTestSuite) textUpdate(userID int64, text string) *botmodels.Update {
	return &botmodels.Update{
		Message: &botmodels.Message{
			From: &botmodels.User{ID: userID},
			Chat: botmodels.Chat{ID: userID},
			Text: text,
		},
	}
}

func (s *MessageHandlersTestSuite) photoUpdate(userID int64, fileID string) *botmodels.Update {
	return &botmodels.Update{
		Message: &botmodels.Message{
			From:  &botmodels.User{ID: userID},
			Chat:  botmodels.Chat{ID: userID},
			Photo: []botmodels.PhotoSize{{FileID: fileID}},
		},
	}
}

func (s *MessageHandlersTestSuite) TestDepositConversation() {
	ctx := context.Background()
	s.Require().NoError(s.deposit.Request(ctx, "111"))

	// A bad amount keeps the claim waiting.
	s.handlers.HandleMessage(ctx, nil, s.textUpdate(111, "abc"))
	s.Contains(s.botSvc.lastSent(), "valid number")

	s.handlers.HandleMessage(ctx, nil, s.textUpdate(111, "5"))
	s.Contains(s.botSvc.lastSent(), "Minimum deposit is ₹10")

	// A good amount moves to proof collection.
	s.handlers.HandleMessage(ctx, nil, s.textUpdate(111, "25"))
	s.Contains(s.botSvc.lastSent(), "shop@upi")
	s.Contains(s.botSvc.lastSent(), "₹25")

	// The proof photo goes to the admin for review.
	s.handlers.HandleMessage(ctx, nil, s.photoUpdate(111, "file-abc"))
	s.Contains(s.botSvc.lastSent(), "admin approval")
	s.Require().Len(s.botSvc.reviews, 1)
	s.Equal("file-abc", s.botSvc.reviews[0].ProofFileID)
	s.Equal(int64(25), s.botSvc.reviews[0].Amount)
}

func (s *MessageHandlersTestSuite) TestMessagesOutsideClaimIgnored() {
	ctx := context.Background()

	s.handlers.HandleMessage(ctx, nil, s.textUpdate(111, "hello"))
	s.Empty(s.botSvc.sent)
}

func (s *MessageHandlersTestSuite) TestCommandsSkippedWhileAwaitingAmount() {
	ctx := context.Background()
	s.Require().NoError(s.deposit.Request(ctx, "111"))

	s.handlers.HandleMessage(ctx, nil, s.textUpdate(111, "/start"))
	s.Empty(s.botSvc.sent)

	phase, ok := s.deposit.Phase("111")
	s.True(ok)
	s.Equal(models.ClaimStatusAwaitingAmount, phase)
}

func TestMessageHandlersTestSuite(t *testing.T) {
	suite.Run(t, new(MessageHandlersTestSuite))
}
