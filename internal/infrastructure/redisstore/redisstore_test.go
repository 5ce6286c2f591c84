package redisstore

import (
	"context"
	"testing"
	"time"

	domcart "github.com/Zhima-Mochi/minishop-storefront/internal/domain/cart"
	domdiscount "github.com/Zhima-Mochi/minishop-storefront/internal/domain/discount"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewClient(context.Background(), Options{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCartStoreRoundTripWithTTL(t *testing.T) {
	mr, client := newRedis(t)
	s := NewCartStore(client, time.Minute)
	ctx := context.Background()

	in := domcart.Cart{{ID: 1, Title: "Backpack", UnitPrice: decimal.RequireFromString("109.95"), ImageRef: "a.jpg", Quantity: 3}}
	require.NoError(t, s.Save(ctx, "s1", in))
	require.True(t, mr.Exists("cart:s1"))
	require.Equal(t, time.Minute, mr.TTL("cart:s1"))

	mr.FastForward(30 * time.Second)
	got, err := s.Load(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 3, got[0].Quantity)
	require.Equal(t, "109.95", got[0].UnitPrice.StringFixed(2))
	// read refreshed the sliding expiry
	require.Equal(t, time.Minute, mr.TTL("cart:s1"))

	mr.FastForward(2 * time.Minute)
	got, err = s.Load(ctx, "s1")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestCartStoreEmptyDeletesKey(t *testing.T) {
	mr, client := newRedis(t)
	s := NewCartStore(client, 0)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "s1", domcart.Cart{{ID: 1, UnitPrice: decimal.NewFromInt(1), Quantity: 1}}))
	require.Equal(t, DefaultSessionTTL, mr.TTL("cart:s1"))
	require.NoError(t, s.Save(ctx, "s1", domcart.Cart{}))
	require.False(t, mr.Exists("cart:s1"))
}

func TestCartStoreCorruptValue(t *testing.T) {
	mr, client := newRedis(t)
	require.NoError(t, mr.Set("cart:s1", "not-json"))

	got, err := NewCartStore(client, time.Minute).Load(context.Background(), "s1")
	require.ErrorIs(t, err, domcart.ErrCorrupt)
	require.Empty(t, got)
}

func TestCartStoreSanitizesStoredLines(t *testing.T) {
	mr, client := newRedis(t)
	require.NoError(t, mr.Set("cart:s1", `[{"id":1,"title":"a","price":"10","quantity":9},{"id":2,"title":"b","price":"5","quantity":0}]`))

	got, err := NewCartStore(client, time.Minute).Load(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, domcart.MaxQuantity, got[0].Quantity)
}

func TestCartStoreConnectionError(t *testing.T) {
	mr, client := newRedis(t)
	mr.Close()

	_, err := NewCartStore(client, time.Minute).Load(context.Background(), "s1")
	require.Error(t, err)
	require.NotErrorIs(t, err, domcart.ErrCorrupt)
}

func TestDiscountStore(t *testing.T) {
	mr, client := newRedis(t)
	s := NewDiscountStore(client, time.Minute)
	ctx := context.Background()

	a, err := s.Load(ctx, "s1")
	require.NoError(t, err)
	require.Nil(t, a)

	require.NoError(t, s.Save(ctx, "s1", &domdiscount.Active{Code: "DHRUV", Percent: 10}))
	require.True(t, mr.Exists("discount:s1"))

	a, err = s.Load(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, &domdiscount.Active{Code: "DHRUV", Percent: 10}, a)

	require.NoError(t, s.Save(ctx, "s1", nil))
	require.False(t, mr.Exists("discount:s1"))

	require.NoError(t, mr.Set("discount:s1", "{"))
	a, err = s.Load(ctx, "s1")
	require.NoError(t, err)
	require.Nil(t, a)
}

func TestNewClientFailsOnBadAddress(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := NewClient(ctx, Options{Addr: "127.0.0.1:1"})
	require.Error(t, err)
}
