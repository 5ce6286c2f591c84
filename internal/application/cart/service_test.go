package cart

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Zhima-Mochi/minishop-storefront/internal/application/auth"
	domain "github.com/Zhima-Mochi/minishop-storefront/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/discount"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/pricing"
	"github.com/Zhima-Mochi/minishop-storefront/internal/infrastructure/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const sessionID = "sess-1"

var allow = auth.AuthorizerFunc(func(context.Context) bool { return true })

type fixture struct {
	svc       *Service
	carts     *memory.CartStore
	discounts *memory.DiscountStore
}

func newFixture(t *testing.T, mutate ...func(*Config)) fixture {
	t.Helper()
	f := fixture{
		carts:     memory.NewCartStore(),
		discounts: memory.NewDiscountStore(),
	}
	cfg := Config{
		Carts:      f.carts,
		Discounts:  f.discounts,
		Catalog:    memory.NewSeededCatalog(),
		Codes:      discount.DefaultTable(),
		Policy:     pricing.DefaultPolicy(),
		Authorizer: allow,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	f.svc = NewService(cfg, nil)
	return f
}

func TestAddAccumulatesAndPrices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Add(ctx, sessionID, 1)
	require.NoError(t, err)
	res, err := f.svc.Add(ctx, sessionID, 1)
	require.NoError(t, err)

	require.False(t, res.CapReached)
	require.Len(t, res.Lines, 1)
	require.Equal(t, 2, res.Lines[0].Quantity)
	require.Equal(t, 2, res.Count)
	require.Equal(t, "219.90", res.Pricing.Subtotal.StringFixed(2))
	require.Equal(t, "50.00", res.Pricing.DeliveryFee.StringFixed(2))
	require.Equal(t, "269.90", res.Pricing.GrandTotal.StringFixed(2))

	view, err := f.svc.Get(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	require.Equal(t, 2, view.Lines[0].Quantity)
	require.True(t, res.Pricing.GrandTotal.Equal(view.Pricing.GrandTotal))
}

func TestAddStopsAtCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < domain.MaxQuantity; i++ {
		res, err := f.svc.Add(ctx, sessionID, 2)
		require.NoError(t, err)
		require.False(t, res.CapReached)
	}
	res, err := f.svc.Add(ctx, sessionID, 2)
	require.NoError(t, err)
	require.True(t, res.CapReached)
	require.Equal(t, domain.CapReachedMessage, res.Message)
	require.Equal(t, domain.MaxQuantity, res.Lines[0].Quantity)
}

func TestAddAppliesPriceMultiplier(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.PriceMultiplier = decimal.NewFromInt(2) })

	res, err := f.svc.Add(context.Background(), sessionID, 1)
	require.NoError(t, err)
	require.Equal(t, "219.90", res.Lines[0].UnitPrice.StringFixed(2))
}

func TestAddUnknownProduct(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Add(context.Background(), sessionID, 4242)
	require.ErrorIs(t, err, ErrProductNotFound)
}

func TestQuantityOperations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Add(ctx, sessionID, 1)
	require.NoError(t, err)

	view, err := f.svc.SetQuantity(ctx, sessionID, 1, 9)
	require.NoError(t, err)
	require.Equal(t, domain.MaxQuantity, view.Lines[0].Quantity)

	view, err = f.svc.AdjustQuantity(ctx, sessionID, 1, -2)
	require.NoError(t, err)
	require.Equal(t, 3, view.Lines[0].Quantity)

	view, err = f.svc.AdjustQuantity(ctx, sessionID, 1, -3)
	require.NoError(t, err)
	require.Empty(t, view.Lines)
	require.True(t, view.Pricing.DeliveryFee.IsZero())

	_, err = f.svc.SetQuantity(ctx, sessionID, 1, 2)
	require.ErrorIs(t, err, ErrLineNotFound)
}

func TestRemoveLineAndClear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Add(ctx, sessionID, 1)
	require.NoError(t, err)
	_, err = f.svc.Add(ctx, sessionID, 2)
	require.NoError(t, err)

	view, err := f.svc.RemoveLine(ctx, sessionID, 1)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	require.Equal(t, int64(2), view.Lines[0].ID)

	view, err = f.svc.Clear(ctx, sessionID)
	require.NoError(t, err)
	require.Empty(t, view.Lines)
	_, ok := f.carts.Raw(sessionID)
	require.False(t, ok)
}

func TestUnauthorizedMutationTouchesNothing(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.Authorizer = auth.AuthorizerFunc(func(context.Context) bool { return false })
	})
	ctx := context.Background()

	_, err := f.svc.Add(ctx, sessionID, 1)
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = f.svc.ApplyDiscount(ctx, sessionID, "DEV")
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = f.svc.Clear(ctx, sessionID)
	require.ErrorIs(t, err, ErrUnauthorized)

	_, ok := f.carts.Raw(sessionID)
	require.False(t, ok)
	active, err := f.discounts.Load(ctx, sessionID)
	require.NoError(t, err)
	require.Nil(t, active)

	// reads are not gated
	view, err := f.svc.Get(ctx, sessionID)
	require.NoError(t, err)
	require.Empty(t, view.Lines)
}

func TestInvalidCodeClearsActiveDiscount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Add(ctx, sessionID, 1)
	require.NoError(t, err)

	view, err := f.svc.ApplyDiscount(ctx, sessionID, "DHRUV")
	require.NoError(t, err)
	require.Equal(t, 10, view.Pricing.DiscountPercent)
	require.Equal(t, "11.00", view.Pricing.DiscountAmount.StringFixed(2))

	_, err = f.svc.ApplyDiscount(ctx, sessionID, "dhruv")
	require.ErrorIs(t, err, ErrInvalidDiscountCode)

	view, err = f.svc.Get(ctx, sessionID)
	require.NoError(t, err)
	require.Nil(t, view.Discount)
	require.Equal(t, 0, view.Pricing.DiscountPercent)
	require.Equal(t, "159.95", view.Pricing.GrandTotal.StringFixed(2))
}

func TestRemoveDiscountIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.ApplyDiscount(ctx, sessionID, "NEWUSER")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		view, err := f.svc.RemoveDiscount(ctx, sessionID)
		require.NoError(t, err)
		require.Nil(t, view.Discount)
	}
}

func TestCorruptStoreReadsAsEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.carts.PutRaw(sessionID, []byte("{oops"))

	view, err := f.svc.Get(ctx, sessionID)
	require.NoError(t, err)
	require.Empty(t, view.Lines)

	res, err := f.svc.Add(ctx, sessionID, 2)
	require.NoError(t, err)
	require.Len(t, res.Lines, 1)
}

type brokenStore struct{}

func (brokenStore) Load(context.Context, string) (domain.Cart, error) {
	return nil, errors.New("connection refused")
}

func (brokenStore) Save(context.Context, string, domain.Cart) error {
	return errors.New("connection refused")
}

func TestStoreOutage(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.Carts = brokenStore{} })
	ctx := context.Background()

	view, err := f.svc.Get(ctx, sessionID)
	require.NoError(t, err)
	require.Empty(t, view.Lines)

	_, err = f.svc.Add(ctx, sessionID, 1)
	require.ErrorIs(t, err, ErrRepository)
}

func TestSessionRequired(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Get(context.Background(), "")
	require.ErrorIs(t, err, ErrSessionRequired)
	_, err = f.svc.Add(context.Background(), "", 1)
	require.ErrorIs(t, err, ErrSessionRequired)
}

func TestSessionsAreIsolated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Add(ctx, "a", 1)
	require.NoError(t, err)

	view, err := f.svc.Get(ctx, "b")
	require.NoError(t, err)
	require.Empty(t, view.Lines)
}

func TestConcurrentAddsOnOneSessionAreNotLost(t *testing.T) {
	const products = 8
	items := make([]catalog.Product, 0, products)
	for i := int64(1); i <= products; i++ {
		items = append(items, catalog.Product{ID: i, Title: "item", Price: decimal.NewFromInt(10)})
	}
	f := newFixture(t, func(c *Config) { c.Catalog = memory.NewCatalog(items...) })
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := int64(1); i <= products; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := f.svc.Add(ctx, sessionID, id)
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	view, err := f.svc.Get(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, view.Lines, products)
	require.Equal(t, "80.00", view.Pricing.Subtotal.StringFixed(2))
}
