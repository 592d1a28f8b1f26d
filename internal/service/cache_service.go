package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/otpbay/otpbay/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const catalogCacheKey = "catalog:numbers"

type CacheService struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewCacheService(client *redis.Client, logger *logrus.Logger) *CacheService {
	return &CacheService{
		client: client,
		logger: logger,
	}
}

func (s *CacheService) SetCatalog(ctx context.Context, items []*models.NumberItem, ttl time.Duration) error {
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, catalogCacheKey, data, ttl).Err()
}

func (s *CacheService) GetCatalog(ctx context.Context) ([]*models.NumberItem, error) {
	data, err := s.client.Get(ctx, catalogCacheKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var items []*models.NumberItem
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		return nil, err
	}

	return items, nil
}

func (s *CacheService) InvalidateCatalog(ctx context.Context) error {
	return s.client.Del(ctx, catalogCacheKey).Err()
}

func (s *CacheService) SetProviderBalance(ctx context.Context, balance float64, currency string, ttl time.Duration) error {
	value := fmt.Sprintf("%.2f:%s", balance, currency)
	return s.client.Set(ctx, "provider:balance", value, ttl).Err()
}

func (s *CacheService) GetProviderBalance(ctx context.Context) (float64, string, error) {
	value, err := s.client.Get(ctx, "provider:balance").Result()
	if err != nil {
		return 0, "", err
	}

	var balance float64
	var currency string
	_, err = fmt.Sscanf(value, "%f:%s", &balance, &currency)
	if err != nil {
		return 0, "", err
	}

	return balance, currency, nil
}
