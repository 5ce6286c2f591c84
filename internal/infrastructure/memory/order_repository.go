package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	domain "github.com/Zhima-Mochi/minishop-storefront/internal/domain/order"
)

type OrderRepository struct {
	mu        sync.RWMutex
	orders    map[string]*domain.Order
	byPayment map[string]string
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders:    make(map[string]*domain.Order),
		byPayment: make(map[string]string),
	}
}

// Insert stores a new order. An order whose id or payment id is already known is a conflict.
func (r *OrderRepository) Insert(ctx context.Context, order *domain.Order) error {
	_ = ctx
	if order == nil || order.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; exists {
		return domain.ErrConflict
	}
	if key := order.PaymentID; key != "" {
		if _, exists := r.byPayment[key]; exists {
			return domain.ErrConflict
		}
	}

	r.orders[order.ID] = order.Clone()
	if key := order.PaymentID; key != "" {
		r.byPayment[key] = order.ID
	}
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return order.Clone(), nil
}

func (r *OrderRepository) FindByPaymentID(ctx context.Context, paymentID string) (*domain.Order, error) {
	_ = ctx
	if paymentID == "" {
		return nil, domain.ErrNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	orderID, ok := r.byPayment[paymentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	order, found := r.orders[orderID]
	if !found {
		return nil, domain.ErrNotFound
	}
	return order.Clone(), nil
}

// ListBySession returns the session's orders, oldest first.
func (r *OrderRepository) ListBySession(ctx context.Context, sessionID string) ([]*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Order, 0)
	for _, o := range r.orders {
		if o.SessionID == sessionID {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
