package order

import (
	"errors"
	"time"

	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/pricing"
)

var (
	ErrNotFound       = errors.New("order: not found")
	ErrConflict       = errors.New("order: conflict")
	ErrEmptyLines     = errors.New("order: at least one line is required")
	ErrMissingPayment = errors.New("order: payment id is required")
)

type Status string

const (
	StatusPaid Status = "paid"
)

// Order is the record of a paid checkout. PaymentID doubles as the idempotency key.
type Order struct {
	ID        string
	SessionID string
	PaymentID string
	Currency  string
	Lines     cart.Cart
	Pricing   pricing.Snapshot
	Status    Status
	CreatedAt time.Time
}

func New(id, sessionID, paymentID, currency string, lines cart.Cart, snap pricing.Snapshot) (*Order, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyLines
	}
	if paymentID == "" {
		return nil, ErrMissingPayment
	}
	return &Order{
		ID:        id,
		SessionID: sessionID,
		PaymentID: paymentID,
		Currency:  currency,
		Lines:     lines.Clone(),
		Pricing:   snap,
		Status:    StatusPaid,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Lines = o.Lines.Clone()
	return &clone
}
