// Package redisstore keeps per-session cart and discount state in Redis. Values are JSON
// and every key carries a sliding TTL that is refreshed on read and on write.
package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cartKeyPrefix     = "cart:"
	discountKeyPrefix = "discount:"
	DefaultSessionTTL = 30 * time.Minute
)

type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewClient connects and pings, so a bad address fails at startup.
func NewClient(ctx context.Context, opts Options) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redisstore: ping %s: %w", opts.Addr, err)
	}
	return client, nil
}

func cartKey(sessionID string) string     { return cartKeyPrefix + sessionID }
func discountKey(sessionID string) string { return discountKeyPrefix + sessionID }

func ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultSessionTTL
	}
	return ttl
}
