package checkout

import (
	"time"

	"github.com/Zhima-Mochi/minishop-storefront/internal/application/auth"
	"github.com/Zhima-Mochi/minishop-storefront/internal/application/session"
	domcart "github.com/Zhima-Mochi/minishop-storefront/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/discount"
	domoutbox "github.com/Zhima-Mochi/minishop-storefront/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/pricing"
)

type Config struct {
	Carts      domcart.Store
	Discounts  discount.Store
	Gateway    payment.Gateway
	Policy     pricing.Policy
	Authorizer auth.Authorizer
	// Publisher receives checkout.completed and checkout.failed. Optional.
	Publisher       domoutbox.Publisher
	DefaultCurrency string
	// GatewayTimeout bounds one payment call. The caller's cancellation does not reach the
	// gateway, so this is the only deadline. Zero means 15s.
	GatewayTimeout time.Duration
	// Locks must be the instance the cart service uses.
	Locks *session.Locks
}
