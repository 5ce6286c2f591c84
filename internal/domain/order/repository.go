package order

import "context"

type Repository interface {
	Insert(ctx context.Context, order *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	FindByPaymentID(ctx context.Context, paymentID string) (*Order, error)
	ListBySession(ctx context.Context, sessionID string) ([]*Order, error)
}
