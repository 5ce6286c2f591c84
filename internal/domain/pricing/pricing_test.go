package pricing

import (
	"testing"

	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/discount"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func requireAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, d(want).Equal(got), "want %s, got %s", want, got)
}

func TestComputeDiscountBeforeDelivery(t *testing.T) {
	c := cart.Cart{{ID: 1, UnitPrice: d("100"), Quantity: 2}}
	s := DefaultPolicy().Compute(c, &discount.Active{Code: "DEV", Percent: 5})

	requireAmount(t, "200.00", s.Subtotal)
	requireAmount(t, "10.00", s.DiscountAmount)
	requireAmount(t, "50", s.DeliveryFee)
	requireAmount(t, "240.00", s.GrandTotal)
	require.Equal(t, 5, s.DiscountPercent)
}

func TestComputeEmptyCartIsZeroWithAnyDiscount(t *testing.T) {
	s := DefaultPolicy().Compute(cart.Cart{}, &discount.Active{Code: "CARTIFYECOMMERCE", Percent: 15})

	requireAmount(t, "0", s.Subtotal)
	requireAmount(t, "0", s.DeliveryFee)
	requireAmount(t, "0", s.DiscountAmount)
	requireAmount(t, "0", s.GrandTotal)
}

func TestComputeFreeShippingAtThreshold(t *testing.T) {
	s := DefaultPolicy().Compute(cart.Cart{{ID: 1, UnitPrice: d("250"), Quantity: 2}}, nil)
	requireAmount(t, "500", s.Subtotal)
	requireAmount(t, "0", s.DeliveryFee)
	requireAmount(t, "500", s.GrandTotal)
}

func TestComputeDeliveryFeeRule(t *testing.T) {
	p := DefaultPolicy()
	for _, tc := range []struct {
		price   string
		qty     int
		wantFee string
	}{
		{"499.99", 1, "50"},
		{"0.01", 1, "50"},
		{"500.01", 1, "0"},
		{"120", 5, "0"},
	} {
		s := p.Compute(cart.Cart{{ID: 1, UnitPrice: d(tc.price), Quantity: tc.qty}}, nil)
		requireAmount(t, tc.wantFee, s.DeliveryFee)
	}
}

func TestComputeRoundsToTwoPlaces(t *testing.T) {
	c := cart.Cart{
		{ID: 1, UnitPrice: d("0.333"), Quantity: 3},
		{ID: 2, UnitPrice: d("10.005"), Quantity: 1},
	}
	s := DefaultPolicy().Compute(c, &discount.Active{Code: "X", Percent: 10})

	// 0.999 + 10.005 = 11.004 -> 11.00; 10% -> 1.10
	requireAmount(t, "11.00", s.Subtotal)
	requireAmount(t, "1.10", s.DiscountAmount)
	requireAmount(t, "59.90", s.GrandTotal)
}

func TestComputeIsDeterministic(t *testing.T) {
	c := cart.Cart{{ID: 1, UnitPrice: d("19.99"), Quantity: 3}, {ID: 2, UnitPrice: d("7.5"), Quantity: 2}}
	a := &discount.Active{Code: "NEWUSER", Percent: 10}
	p := DefaultPolicy()

	first := p.Compute(c, a)
	second := p.Compute(c, a)
	require.True(t, first.GrandTotal.Equal(second.GrandTotal))
	require.True(t, first.Subtotal.Equal(second.Subtotal))
	require.True(t, first.DiscountAmount.Equal(second.DiscountAmount))
	require.True(t, first.DeliveryFee.Equal(second.DeliveryFee))
}
