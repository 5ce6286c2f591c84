package cart

import (
	"github.com/Zhima-Mochi/minishop-storefront/internal/application/auth"
	"github.com/Zhima-Mochi/minishop-storefront/internal/application/session"
	domain "github.com/Zhima-Mochi/minishop-storefront/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/discount"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/pricing"
	"github.com/shopspring/decimal"
)

// Config wires the collaborators of the cart service.
type Config struct {
	Carts      domain.Store
	Discounts  discount.Store
	Catalog    catalog.Catalog
	Codes      discount.Table
	Policy     pricing.Policy
	Authorizer auth.Authorizer
	// Locks serializes writes per session. Share one instance with checkout; nil makes a
	// private one.
	Locks *session.Locks
	// PriceMultiplier converts catalog prices into the stored unit price when a line is
	// created. Zero means 1.
	PriceMultiplier decimal.Decimal
}
