package checkout

import (
	"time"

	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/pricing"
)

// CompletedEvent is emitted after the gateway confirms payment and the cart was cleared.
type CompletedEvent struct {
	SessionID  string
	PaymentID  string
	Currency   string
	Lines      cart.Cart
	Pricing    pricing.Snapshot
	OccurredAt time.Time
}

func (CompletedEvent) EventName() string { return "checkout.completed" }

func NewCompletedEvent(sessionID, paymentID, currency string, lines cart.Cart, snap pricing.Snapshot) CompletedEvent {
	return CompletedEvent{
		SessionID:  sessionID,
		PaymentID:  paymentID,
		Currency:   currency,
		Lines:      lines.Clone(),
		Pricing:    snap,
		OccurredAt: time.Now().UTC(),
	}
}

// FailedEvent is emitted when the gateway reports failure; the cart is untouched.
type FailedEvent struct {
	SessionID  string
	Currency   string
	Pricing    pricing.Snapshot
	Reason     string
	OccurredAt time.Time
}

func (FailedEvent) EventName() string { return "checkout.failed" }

func NewFailedEvent(sessionID, currency string, snap pricing.Snapshot, reason string) FailedEvent {
	return FailedEvent{
		SessionID:  sessionID,
		Currency:   currency,
		Pricing:    snap,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
}
