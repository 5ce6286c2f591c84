package order

import (
	"context"

	domain "github.com/Zhima-Mochi/minishop-storefront/internal/domain/order"
)

// IDGenerator issues order ids. Ids must be unique across sessions.
type IDGenerator interface {
	NewID() string
}

// Lister is the read side used by GET /orders.
type Lister interface {
	Execute(ctx context.Context, sessionID string) ([]*domain.Order, error)
}

var _ Lister = (*ListOrdersUseCase)(nil)
