package service

import (
	"context"
	"time"

	"github.com/otpbay/otpbay/internal/models"
	"github.com/otpbay/otpbay/internal/repository"

	"github.com/sirupsen/logrus"
)

const catalogCacheTTL = 30 * time.Second

// InventoryService owns the purchasable number catalog. Allocation is an
// atomic remove-if-present in the repository; this layer adds the redis
// snapshot cache and administrative mutation.
type InventoryService struct {
	numbers repository.NumberRepository
	cache   *CacheService
	logger  *logrus.Logger
}

func NewInventoryService(numbers repository.NumberRepository, cache *CacheService, logger *logrus.Logger) *InventoryService {
	return &InventoryService{
		numbers: numbers,
		cache:   cache,
		logger:  logger,
	}
}

func (s *InventoryService) List(ctx context.Context) ([]*models.NumberItem, error) {
	if s.cache != nil {
		items, err := s.cache.GetCatalog(ctx)
		if err != nil {
			s.logger.Warnf("Catalog cache read failed: %v", err)
		} else if items != nil {
			return items, nil
		}
	}

	items, err := s.numbers.List(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetCatalog(ctx, items, catalogCacheTTL); err != nil {
			s.logger.Warnf("Catalog cache write failed: %v", err)
		}
	}

	return items, nil
}

func (s *InventoryService) Get(ctx context.Context, itemID string) (*models.NumberItem, error) {
	return s.numbers.Get(ctx, itemID)
}

// Allocate removes the item from the catalog and hands it to the buyer.
// Exactly one concurrent caller per item id succeeds.
func (s *InventoryService) Allocate(ctx context.Context, itemID, buyerID string) (*models.NumberItem, error) {
	item, err := s.numbers.Allocate(ctx, itemID)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	s.logger.Infof("Allocated item %s (%s) to user %s", item.ItemID, item.Country, buyerID)
	return item, nil
}

func (s *InventoryService) AddOrUpdate(ctx context.Context, item *models.NumberItem) error {
	if err := s.numbers.Upsert(ctx, item); err != nil {
		return err
	}

	s.invalidate(ctx)
	return nil
}

func (s *InventoryService) Remove(ctx context.Context, itemID string) error {
	if err := s.numbers.Remove(ctx, itemID); err != nil {
		return err
	}

	s.invalidate(ctx)
	return nil
}

func (s *InventoryService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateCatalog(ctx); err != nil {
		s.logger.Warnf("Catalog cache invalidation failed: %v", err)
	}
}
