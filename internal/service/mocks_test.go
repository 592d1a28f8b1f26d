package service

import (
	"context"
	"sync"

	"github.com/otpbay/otpbay/internal/models"

	"github.com/sirupsen/logrus"
)

// Shared collector: prometheus collectors register globally, so the test
// binary creates them once.
var testMetrics = NewMetricsCollector()

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

// fakeAccountRepo is an in-memory AccountRepository honoring the same
// conditional-update contract as the Mongo implementation: every mutation is
// atomic under one lock, a debit checks and decrements in the same step, and
// referred_by is set at most once.
type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{accounts: make(map[string]*models.Account)}
}

func (r *fakeAccountRepo) GetOrCreate(ctx context.Context, userID string) (*models.Account, error) {
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

func (r *fakeAccountRepo) Get(ctx context.Context, userID string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[userID]
	if !ok {
		return nil, models.ErrAccountNotFound
	}
	snapshot := *account
	return &snapshot, nil
}

func (r *fakeAccountRepo) DebitPoints(ctx context.Context, userID string, amount int64) (*models.Account, error) {
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

func (r *fakeAccountRepo) CreditPoints(ctx context.Context, userID string, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[userID]
	if !ok {
		return models.ErrAccountNotFound
	}
	account.Points += amount
	return nil
}

func (r *fakeAccountRepo) SetPendingDeposit(ctx context.Context, userID string, amount int64) error {
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

func (r *fakeAccountRepo) ResolveDeposit(ctx context.Context, userID string, approved bool) (int64, error) {
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

func (r *fakeAccountRepo) SetReferrer(ctx context.Context, userID, referrerID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[userID]
	if !ok || account.ReferredBy != "" {
		return false, nil
	}
	account.ReferredBy = referrerID
	return true, nil
}

func (r *fakeAccountRepo) SetActiveNumber(ctx context.Context, userID, number string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[userID]
	if !ok {
		return models.ErrAccountNotFound
	}
	account.ActiveNumber = number
	return nil
}

func (r *fakeAccountRepo) CreateIndexes(ctx context.Context) error { return nil }

// fakeNumberRepo is an in-memory NumberRepository with an atomic
// remove-if-present Allocate.
type fakeNumberRepo struct {
	mu    sync.Mutex
	items map[string]*models.NumberItem
}

func newFakeNumberRepo() *fakeNumberRepo {
	return &fakeNumberRepo{items: make(map[string]*models.NumberItem)}
}

func (r *fakeNumberRepo) List(ctx context.Context) ([]*models.NumberItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var items []*models.NumberItem
	for _, item := range r.items {
		snapshot := *item
		items = append(items, &snapshot)
	}
	return items, nil
}

func (r *fakeNumberRepo) Get(ctx context.Context, itemID string) (*models.NumberItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[itemID]
	if !ok {
		return nil, models.ErrItemUnavailable
	}
	snapshot := *item
	return &snapshot, nil
}

func (r *fakeNumberRepo) Allocate(ctx context.Context, itemID string) (*models.NumberItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[itemID]
	if !ok {
		return nil, models.ErrItemUnavailable
	}
	delete(r.items, itemID)
	snapshot := *item
	return &snapshot, nil
}

func (r *fakeNumberRepo) Upsert(ctx context.Context, item *models.NumberItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := *item
	r.items[item.ItemID] = &snapshot
	return nil
}

func (r *fakeNumberRepo) Remove(ctx context.Context, itemID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[itemID]; !ok {
		return models.ErrItemUnavailable
	}
	delete(r.items, itemID)
	return nil
}

func (r *fakeNumberRepo) CreateIndexes(ctx context.Context) error { return nil }

// fakeProvider scripts the provisioning protocol: CheckMessages walks the
// codes slice, empty entries meaning "not ready yet".
type fakeProvider struct {
	mu          sync.Mutex
	acquireErr  error
	order       ProviderOrder
	codes       []string
	checkCalls  int
	finishCalls int
}

func (p *fakeProvider) AcquireNumber(ctx context.Context, country, operator, service string) (*ProviderOrder, error) {
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	order := p.order
	return &order, nil
}

func (p *fakeProvider) CheckMessages(ctx context.Context, orderID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := p.checkCalls
	p.checkCalls++
	if idx < len(p.codes) && p.codes[idx] != "" {
		return p.codes[idx], nil
	}
	return "", models.ErrCodeNotReady
}

func (p *fakeProvider) Finish(ctx context.Context, orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.finishCalls++
	return nil
}

func (p *fakeProvider) GetBalance(ctx context.Context) (float64, string, error) {
	return 100, "RUB", nil
}

func (p *fakeProvider) finished() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finishCalls
}

// recordPublisher captures published events.
type recordPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	routingKey string
	event      interface{}
}

func (p *recordPublisher) Publish(routingKey string, event interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{routingKey: routingKey, event: event})
}

func (p *recordPublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var keys []string
	for _, e := range p.events {
		keys = append(keys, e.routingKey)
	}
	return keys
}

// fakeNotifier records deposit-flow notifications.
type fakeNotifier struct {
	mu         sync.Mutex
	reviews    []*models.DepositClaim
	notices    map[string][]string
	forwardErr error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{notices: make(map[string][]string)}
}

func (n *fakeNotifier) ForwardDepositReview(ctx context.Context, claim *models.DepositClaim) error {
	if n.forwardErr != nil {
		return n.forwardErr
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	snapshot := *claim
	n.reviews = append(n.reviews, &snapshot)
	return nil
}

func (n *fakeNotifier) NotifyUser(ctx context.Context, userID, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices[userID] = append(n.notices[userID], text)
	return nil
}
