package service

import (
	"context"
	"testing"
	"time"

	"github.com/otpbay/otpbay/internal/models"

	"github.com/stretchr/testify/suite"
)

type PurchaseServiceTestSuite struct {
	suite.Suite
	accounts *fakeAccountRepo
	numbers  *fakeNumberRepo
	provider *fakeProvider
	events   *recordPublisher
	ledger   *LedgerService
	purchase *PurchaseService
}

func (s *PurchaseServiceTestSuite) SetupTest() {
	s.accounts = newFakeAccountRepo()
	s.numbers = newFakeNumberRepo()
	s.provider = &fakeProvider{order: ProviderOrder{OrderID: "prov-1", Number: "+911234567890"}}
	s.events = &recordPublisher{}

	logger := testLogger()
	s.ledger = NewLedgerService(s.accounts, testMetrics, s.events, logger)
	inventory := NewInventoryService(s.numbers, nil, logger)

	s.purchase = NewPurchaseService(s.ledger, inventory, s.provider, testMetrics, s.events, PurchaseConfig{
		PollInterval:  5 * time.Millisecond,
		MaxAttempts:   3,
		FinishTimeout: 100 * time.Millisecond,
	}, logger)
}

func (s *PurchaseServiceTestSuite) seedAccount(userID string, points int64) {
	ctx := context.Background()
	_, err := s.ledger.GetOrCreate(ctx, userID)
	s.Require().NoError(err)
	if points > 0 {
		s.Require().NoError(s.ledger.CreditPoints(ctx, userID, points))
	}
}

func (s *PurchaseServiceTestSuite) seedItem(itemID string, price int64, number string) {
	s.Require().NoError(s.numbers.Upsert(context.Background(), &models.NumberItem{
		ItemID:  itemID,
		Country: "IN",
		Service: "whatsapp",
		Price:   price,
		Number:  number,
	}))
}

func (s *PurchaseServiceTestSuite) points(userID string) int64 {
	account, err := s.accounts.Get(context.Background(), userID)
	s.Require().NoError(err)
	return account.Points
}

func (s *PurchaseServiceTestSuite) buyThrough(userID, itemID string) (*models.Order, error) {
	ctx := context.Background()
	if _, err := s.purchase.Select(ctx, userID, itemID); err != nil {
		return nil, err
	}
	if _, err := s.purchase.Confirm(ctx, userID); err != nil {
		return nil, err
	}
	return s.purchase.Buy(ctx, userID)
}

func (s *PurchaseServiceTestSuite) TestBuyProvisionsAndDebits() {
	s.seedAccount("user1", 20)
	s.seedItem("in-1", 12, "")

	order, err := s.buyThrough("user1", "in-1")
	s.NoError(err)
	s.Equal(models.OrderStatusAwaitingCode, order.Status)
	s.Equal("+911234567890", order.Number)
	s.Equal("prov-1", order.ProviderOrderID)
	s.Equal(int64(8), s.points("user1"))

	account, err := s.accounts.Get(context.Background(), "user1")
	s.NoError(err)
	s.Equal("+911234567890", account.ActiveNumber)
}

func (s *PurchaseServiceTestSuite) TestBuyStaticItemSkipsProvider() {
	s.seedAccount("user1", 20)
	s.seedItem("in-1", 12, "+911111111111")

	order, err := s.buyThrough("user1", "in-1")
	s.NoError(err)
	s.Equal("+911111111111", order.Number)
}

func (s *PurchaseServiceTestSuite) TestInsufficientFundsLeavesInventory() {
	s.seedAccount("user1", 5)
	s.seedItem("in-1", 12, "")

	_, err := s.buyThrough("user1", "in-1")
	s.ErrorIs(err, models.ErrInsufficientFunds)
	s.Equal(int64(5), s.points("user1"))

	// Item must still be purchasable.
	item, err := s.numbers.Get(context.Background(), "in-1")
	s.NoError(err)
	s.Equal("in-1", item.ItemID)

	// The user is back to Idle.
	_, ok := s.purchase.ActiveOrder("user1")
	s.False(ok)
}

func (s *PurchaseServiceTestSuite) TestAllocationLossRefunds() {
	s.seedAccount("user1", 20)
	s.seedItem("in-1", 12, "")

	ctx := context.Background()
	_, err := s.purchase.Select(ctx, "user1", "in-1")
	s.Require().NoError(err)
	_, err = s.purchase.Confirm(ctx, "user1")
	s.Require().NoError(err)

	// Another buyer snatches the item between confirm and buy.
	_, err = s.numbers.Allocate(ctx, "in-1")
	s.Require().NoError(err)

	_, err = s.purchase.Buy(ctx, "user1")
	s.ErrorIs(err, models.ErrItemUnavailable)
	s.Equal(int64(20), s.points("user1"))
}

func (s *PurchaseServiceTestSuite) TestProvisioningFailureRefundsAndRestores() {
	s.seedAccount("user1", 20)
	s.seedItem("in-1", 12, "")
	s.provider.acquireErr = models.ErrProviderUnavailable

	_, err := s.buyThrough("user1", "in-1")
	s.ErrorIs(err, models.ErrProviderUnavailable)
	s.Equal(int64(20), s.points("user1"))

	// The consumed item went back on sale.
	item, err := s.numbers.Get(context.Background(), "in-1")
	s.NoError(err)
	s.Equal("in-1", item.ItemID)

	_, ok := s.purchase.ActiveOrder("user1")
	s.False(ok)
}

func (s *PurchaseServiceTestSuite) TestSelectRejectedWhileBusy() {
	s.seedAccount("user1", 40)
	s.seedItem("in-1", 12, "")
	s.seedItem("in-2", 12, "")

	_, err := s.buyThrough("user1", "in-1")
	s.Require().NoError(err)

	_, err = s.purchase.Select(context.Background(), "user1", "in-2")
	s.ErrorIs(err, models.ErrOrderInProgress)
}

func (s *PurchaseServiceTestSuite) TestAwaitCodeDeliversAndFinishes() {
	s.seedAccount("user1", 20)
	s.seedItem("in-1", 12, "")
	s.provider.codes = []string{"", "482913"}

	_, err := s.buyThrough("user1", "in-1")
	s.Require().NoError(err)

	code, err := s.purchase.AwaitCode(context.Background(), "user1")
	s.NoError(err)
	s.Equal("482913", code)

	order, ok := s.purchase.ActiveOrder("user1")
	s.True(ok)
	s.Equal(models.OrderStatusDelivered, order.Status)
	s.Equal("482913", order.Code)

	// The provider reservation is released asynchronously.
	s.Eventually(func() bool {
		return s.provider.finished() == 1
	}, time.Second, 5*time.Millisecond)

	s.Contains(s.events.keys(), models.EventOrderDelivered)
}

func (s *PurchaseServiceTestSuite) TestAwaitCodeTimeoutKeepsPointsAndNumber() {
	s.seedAccount("user1", 20)
	s.seedItem("in-1", 12, "")

	_, err := s.buyThrough("user1", "in-1")
	s.Require().NoError(err)

	_, err = s.purchase.AwaitCode(context.Background(), "user1")
	s.ErrorIs(err, models.ErrOtpTimeout)

	// No refund on timeout: the debit and the delivered number both stand.
	s.Equal(int64(8), s.points("user1"))
	account, err := s.accounts.Get(context.Background(), "user1")
	s.NoError(err)
	s.Equal("+911234567890", account.ActiveNumber)

	// The user is back to Idle and may start over.
	_, ok := s.purchase.ActiveOrder("user1")
	s.False(ok)

	s.seedItem("in-2", 12, "")
	_, err = s.purchase.Select(context.Background(), "user1", "in-2")
	s.NoError(err)

	s.Contains(s.events.keys(), models.EventOrderFailed)
}

func (s *PurchaseServiceTestSuite) TestAwaitCodeWithoutOrder() {
	_, err := s.purchase.AwaitCode(context.Background(), "user1")
	s.ErrorIs(err, models.ErrNoActiveOrder)
}

func (s *PurchaseServiceTestSuite) TestAbort() {
	s.seedAccount("user1", 20)
	s.seedItem("in-1", 12, "")

	ctx := context.Background()
	_, err := s.purchase.Select(ctx, "user1", "in-1")
	s.Require().NoError(err)

	s.NoError(s.purchase.Abort("user1"))
	_, ok := s.purchase.ActiveOrder("user1")
	s.False(ok)

	// A committed order holds resources and cannot be aborted.
	_, err = s.buyThrough("user1", "in-1")
	s.Require().NoError(err)
	s.ErrorIs(s.purchase.Abort("user1"), models.ErrOrderInProgress)
}

func TestPurchaseServiceTestSuite(t *testing.T) {
	suite.Run(t, new(PurchaseServiceTestSuite))
}
