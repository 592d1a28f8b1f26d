package service

import (
	"context"
	"sync"
	"time"

	"github.com/otpbay/otpbay/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PurchaseConfig bounds the OTP polling protocol.
type PurchaseConfig struct {
	PollInterval  time.Duration
	MaxAttempts   int
	FinishTimeout time.Duration
}

// PurchaseService drives the per-user purchase state machine:
//
//	Idle -> Selecting -> Confirming -> Allocating -> AwaitingOTP -> Delivered
//
// with failures returning the user to Idle. The buy step orders its side
// effects debit -> allocate -> provision and compensates a successful debit
// whenever a later step fails. An exhausted OTP poll does NOT refund: the
// provider reservation is non-refundable once a number is handed out.
type PurchaseService struct {
	ledger    *LedgerService
	inventory *InventoryService
	provider  ProviderClient
	metrics   *MetricsCollector
	events    EventPublisher
	logger    *logrus.Logger
	cfg       PurchaseConfig

	mu      sync.Mutex
	orders  map[string]*models.Order
	polling map[string]struct{}
}

func NewPurchaseService(
	ledger *LedgerService,
	inventory *InventoryService,
	provider ProviderClient,
	metrics *MetricsCollector,
	events EventPublisher,
	cfg PurchaseConfig,
	logger *logrus.Logger,
) *PurchaseService {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 30
	}
	if cfg.FinishTimeout <= 0 {
		cfg.FinishTimeout = 20 * time.Second
	}

	return &PurchaseService{
		ledger:    ledger,
		inventory: inventory,
		provider:  provider,
		metrics:   metrics,
		events:    events,
		logger:    logger,
		cfg:       cfg,
		orders:    make(map[string]*models.Order),
		polling:   make(map[string]struct{}),
	}
}

// Select starts a new order for the user. Rejected while a previous order
// still holds resources.
func (s *PurchaseService) Select(ctx context.Context, userID, itemID string) (*models.NumberItem, error) {
	s.mu.Lock()
	if existing, ok := s.orders[userID]; ok && existing.Busy() {
		s.mu.Unlock()
		return nil, models.ErrOrderInProgress
	}
	s.mu.Unlock()

	item, err := s.inventory.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.orders[userID] = &models.Order{
		OrderID:   uuid.New().String(),
		UserID:    userID,
		ItemID:    item.ItemID,
		Country:   item.Country,
		Price:     item.Price,
		Status:    models.OrderStatusSelecting,
		CreatedAt: time.Now(),
	}
	s.mu.Unlock()

	return item, nil
}

// Confirm presents the price. The price is re-read at buy time as well; this
// read is for display only.
func (s *PurchaseService) Confirm(ctx context.Context, userID string) (*models.NumberItem, error) {
	s.mu.Lock()
	order, ok := s.orders[userID]
	if !ok || order.Status != models.OrderStatusSelecting {
		s.mu.Unlock()
		return nil, models.ErrNoActiveOrder
	}
	itemID := order.ItemID
	s.mu.Unlock()

	item, err := s.inventory.Get(ctx, itemID)
	if err != nil {
		s.clearOrder(userID)
		return nil, err
	}

	s.mu.Lock()
	if order, ok := s.orders[userID]; ok {
		order.Status = models.OrderStatusConfirming
		order.Price = item.Price
	}
	s.mu.Unlock()

	return item, nil
}

// Buy executes the purchase: re-read price, debit, allocate, provision.
// A failed allocation or provisioning refunds the debit; a failed
// provisioning additionally returns the consumed item to the catalog.
func (s *PurchaseService) Buy(ctx context.Context, userID string) (*models.Order, error) {
	s.mu.Lock()
	order, ok := s.orders[userID]
	if !ok || order.Status != models.OrderStatusConfirming {
		s.mu.Unlock()
		return nil, models.ErrNoActiveOrder
	}
	order.Status = models.OrderStatusAllocating
	itemID := order.ItemID
	s.mu.Unlock()

	item, err := s.inventory.Get(ctx, itemID)
	if err != nil {
		s.clearOrder(userID)
		return nil, err
	}

	if _, err := s.ledger.DebitPoints(ctx, userID, item.Price); err != nil {
		s.clearOrder(userID)
		s.metrics.IncrementPurchaseFailed(item.Country, "insufficient_funds")
		return nil, err
	}

	allocated, err := s.inventory.Allocate(ctx, itemID, userID)
	if err != nil {
		s.refund(ctx, userID, item.Price)
		s.clearOrder(userID)
		s.metrics.IncrementPurchaseFailed(item.Country, "item_unavailable")
		return nil, models.ErrItemUnavailable
	}

	number := allocated.Number
	providerOrderID := allocated.ProviderOrderID

	if !allocated.Provisioned() {
		providerOrder, err := s.provider.AcquireNumber(ctx, allocated.Country, allocated.Operator, allocated.Service)
		if err != nil {
			s.refund(ctx, userID, item.Price)
			if err := s.inventory.AddOrUpdate(ctx, allocated); err != nil {
				s.logger.Errorf("Failed to restore item %s after provisioning failure: %v", allocated.ItemID, err)
			}
			s.clearOrder(userID)
			s.metrics.IncrementPurchaseFailed(item.Country, "provider_unavailable")
			return nil, models.ErrProviderUnavailable
		}
		number = providerOrder.Number
		providerOrderID = providerOrder.OrderID
	}

	if err := s.ledger.SetActiveNumber(ctx, userID, number); err != nil {
		s.logger.Errorf("Failed to set active number for user %s: %v", userID, err)
	}

	deadline := time.Now().Add(time.Duration(s.cfg.MaxAttempts)*s.cfg.PollInterval + s.cfg.PollInterval)

	s.mu.Lock()
	order = s.orders[userID]
	order.Status = models.OrderStatusAwaitingCode
	order.Number = number
	order.ProviderOrderID = providerOrderID
	order.Price = item.Price
	order.Deadline = deadline
	snapshot := *order
	s.mu.Unlock()

	s.metrics.IncrementPurchaseSuccess(item.Country)
	s.metrics.RecordPurchasePrice(item.Country, item.Price)
	s.logger.Infof("User %s purchased number %s (order %s)", userID, number, snapshot.OrderID)

	return &snapshot, nil
}

// AwaitCode polls the provider until a code arrives or the attempt budget is
// exhausted. It blocks the calling goroutine but holds no lock while
// waiting, so other users' sessions are unaffected. On timeout the order is
// discarded and the user returns to Idle with points and number kept.
func (s *PurchaseService) AwaitCode(ctx context.Context, userID string) (string, error) {
	s.mu.Lock()
	order, ok := s.orders[userID]
	if !ok || order.Status != models.OrderStatusAwaitingCode {
		s.mu.Unlock()
		return "", models.ErrNoActiveOrder
	}
	if _, busy := s.polling[userID]; busy {
		s.mu.Unlock()
		return "", models.ErrOrderInProgress
	}
	s.polling[userID] = struct{}{}
	providerOrderID := order.ProviderOrderID
	country := order.Country
	deadline := order.Deadline
	started := order.CreatedAt
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.polling, userID)
		s.mu.Unlock()
	}()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		code, err := s.provider.CheckMessages(ctx, providerOrderID)
		if err == nil && code != "" {
			s.finishOrder(userID, country, code, started)
			return code, nil
		}
		if err != nil && err != models.ErrCodeNotReady && err != models.ErrProviderUnavailable {
			s.logger.Warnf("Unexpected provider error for user %s: %v", userID, err)
		}

		if time.Now().After(deadline) {
			break
		}

		select {
		case <-ctx.Done():
			return "", s.timeoutOrder(userID, country)
		case <-ticker.C:
		}
	}

	return "", s.timeoutOrder(userID, country)
}

func (s *PurchaseService) finishOrder(userID, country, code string, started time.Time) {
	s.mu.Lock()
	order, ok := s.orders[userID]
	if ok {
		order.Status = models.OrderStatusDelivered
		order.Code = code
	}
	var snapshot models.Order
	if ok {
		snapshot = *order
	}
	s.mu.Unlock()

	if !ok {
		return
	}

	// Release the provider-side reservation. Best-effort, but always
	// attempted: skipping it leaks the reservation.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.FinishTimeout)
		defer cancel()
		if err := s.provider.Finish(ctx, snapshot.ProviderOrderID); err != nil {
			s.logger.Warnf("Failed to finish provider order %s: %v", snapshot.ProviderOrderID, err)
		}
	}()

	s.metrics.IncrementOtpDelivered(country)
	s.metrics.RecordOtpWait(country, time.Since(started).Seconds())
	s.events.Publish(models.EventOrderDelivered, models.OrderEvent{
		OrderID:   snapshot.OrderID,
		UserID:    userID,
		ItemID:    snapshot.ItemID,
		Country:   country,
		Price:     snapshot.Price,
		Status:    string(models.OrderStatusDelivered),
		Timestamp: time.Now(),
	})
	s.logger.Infof("Delivered OTP to user %s (order %s)", userID, snapshot.OrderID)
}

func (s *PurchaseService) timeoutOrder(userID, country string) error {
	s.mu.Lock()
	order, ok := s.orders[userID]
	var snapshot models.Order
	if ok {
		order.Status = models.OrderStatusFailed
		snapshot = *order
		delete(s.orders, userID)
	}
	s.mu.Unlock()

	if ok {
		s.metrics.IncrementOtpTimeout(country)
		s.events.Publish(models.EventOrderFailed, models.OrderEvent{
			OrderID:   snapshot.OrderID,
			UserID:    userID,
			ItemID:    snapshot.ItemID,
			Country:   country,
			Price:     snapshot.Price,
			Status:    string(models.OrderStatusFailed),
			Reason:    "otp_timeout",
			Timestamp: time.Now(),
		})
		s.logger.Warnf("OTP poll for user %s timed out (order %s)", userID, snapshot.OrderID)
	}

	return models.ErrOtpTimeout
}

// Abort discards a not-yet-committed order (selecting, confirming or already
// delivered). An order holding resources cannot be aborted.
func (s *PurchaseService) Abort(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[userID]
	if !ok {
		return nil
	}
	if order.Busy() {
		return models.ErrOrderInProgress
	}

	delete(s.orders, userID)
	return nil
}

// ActiveOrder returns a copy of the user's current order, if any.
func (s *PurchaseService) ActiveOrder(userID string) (*models.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[userID]
	if !ok {
		return nil, false
	}
	snapshot := *order
	return &snapshot, true
}

func (s *PurchaseService) clearOrder(userID string) {
	s.mu.Lock()
	delete(s.orders, userID)
	s.mu.Unlock()
}

func (s *PurchaseService) refund(ctx context.Context, userID string, amount int64) {
	if err := s.ledger.CreditPoints(ctx, userID, amount); err != nil {
		s.logger.Errorf("CRITICAL: failed to refund %d points to user %s: %v", amount, userID, err)
		return
	}
	s.metrics.AddPointsRefunded(amount)
}
