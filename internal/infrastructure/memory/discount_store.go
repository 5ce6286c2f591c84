package memory

import (
	"context"
	"sync"

	domain "github.com/Zhima-Mochi/minishop-storefront/internal/domain/discount"
)

type DiscountStore struct {
	mu     sync.RWMutex
	active map[string]domain.Active
}

func NewDiscountStore() *DiscountStore {
	return &DiscountStore{
		active: make(map[string]domain.Active),
	}
}

func (s *DiscountStore) Load(ctx context.Context, sessionID string) (*domain.Active, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.active[sessionID]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *DiscountStore) Save(ctx context.Context, sessionID string, a *domain.Active) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	if a == nil {
		delete(s.active, sessionID)
		return nil
	}
	s.active[sessionID] = *a
	return nil
}
