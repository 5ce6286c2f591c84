// Package pricing projects a cart and its active discount onto the amounts shown at checkout.
package pricing

import (
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/discount"
	"github.com/shopspring/decimal"
)

const displayPlaces = 2

var hundred = decimal.NewFromInt(100)

// Policy holds the delivery rules. Both values come from configuration
// (pricing.free_shipping_threshold and pricing.delivery_fee).
type Policy struct {
	// FreeShippingThreshold is the subtotal at or above which delivery is free.
	FreeShippingThreshold decimal.Decimal
	// DeliveryFee is the flat fee charged below the threshold on a non-empty cart.
	DeliveryFee decimal.Decimal
}

func DefaultPolicy() Policy {
	return Policy{
		FreeShippingThreshold: decimal.NewFromInt(500),
		DeliveryFee:           decimal.NewFromInt(50),
	}
}

// Snapshot is derived on every read and never stored on its own.
type Snapshot struct {
	Subtotal        decimal.Decimal
	DeliveryFee     decimal.Decimal
	DiscountPercent int
	DiscountAmount  decimal.Decimal
	GrandTotal      decimal.Decimal
}

// Compute is a pure function of its inputs. The discount applies to the subtotal only;
// the delivery fee is never discounted.
func (p Policy) Compute(c cart.Cart, active *discount.Active) Snapshot {
	subtotal := decimal.Zero
	for _, l := range c {
		subtotal = subtotal.Add(l.Total())
	}
	subtotal = subtotal.Round(displayPlaces)

	fee := decimal.Zero
	if !c.Empty() && subtotal.LessThan(p.FreeShippingThreshold) {
		fee = p.DeliveryFee.Round(displayPlaces)
	}

	pct := discount.PercentOf(active)
	discountAmount := subtotal.Mul(decimal.NewFromInt(int64(pct))).Div(hundred).Round(displayPlaces)

	return Snapshot{
		Subtotal:        subtotal,
		DeliveryFee:     fee,
		DiscountPercent: pct,
		DiscountAmount:  discountAmount,
		GrandTotal:      subtotal.Add(fee).Sub(discountAmount),
	}
}
