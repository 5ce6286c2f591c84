package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domain "github.com/Zhima-Mochi/minishop-storefront/internal/domain/discount"
	"github.com/redis/go-redis/v9"
)

type DiscountStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewDiscountStore(client redis.Cmdable, ttl time.Duration) *DiscountStore {
	return &DiscountStore{client: client, ttl: ttlOrDefault(ttl)}
}

// Load returns nil when no discount is active. An unreadable value is treated the same way.
func (s *DiscountStore) Load(ctx context.Context, sessionID string) (*domain.Active, error) {
	key := discountKey(sessionID)
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: get %s: %w", key, err)
	}
	_ = s.client.Expire(ctx, key, s.ttl).Err()

	var a domain.Active
	if err := json.Unmarshal(raw, &a); err != nil || a.Code == "" {
		return nil, nil
	}
	return &a, nil
}

func (s *DiscountStore) Save(ctx context.Context, sessionID string, a *domain.Active) error {
	key := discountKey(sessionID)
	if a == nil {
		if err := s.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("redisstore: del %s: %w", key, err)
		}
		return nil
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("redisstore: encode discount: %w", err)
	}
	if err := s.client.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redisstore: set %s: %w", key, err)
	}
	return nil
}
