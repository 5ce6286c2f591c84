package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/Zhima-Mochi/minishop-storefront/internal/domain/cart"
	"github.com/redis/go-redis/v9"
)

type CartStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewCartStore(client redis.Cmdable, ttl time.Duration) *CartStore {
	return &CartStore{client: client, ttl: ttlOrDefault(ttl)}
}

// Load returns an empty cart for a missing key. A value that does not decode is returned
// as an empty cart together with an error wrapping cart.ErrCorrupt.
func (s *CartStore) Load(ctx context.Context, sessionID string) (domain.Cart, error) {
	key := cartKey(sessionID)
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Cart{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: get %s: %w", key, err)
	}
	// sliding expiry; a failed refresh only shortens the session
	_ = s.client.Expire(ctx, key, s.ttl).Err()
	return domain.Decode(raw)
}

// Save replaces the whole cart. An empty cart deletes the key.
func (s *CartStore) Save(ctx context.Context, sessionID string, c domain.Cart) error {
	key := cartKey(sessionID)
	if len(c) == 0 {
		if err := s.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("redisstore: del %s: %w", key, err)
		}
		return nil
	}
	raw, err := domain.Encode(c)
	if err != nil {
		return fmt.Errorf("redisstore: encode cart: %w", err)
	}
	if err := s.client.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redisstore: set %s: %w", key, err)
	}
	return nil
}
