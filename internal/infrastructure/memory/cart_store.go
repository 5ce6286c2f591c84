package memory

import (
	"context"
	"sync"

	domain "github.com/Zhima-Mochi/minishop-storefront/internal/domain/cart"
)

// CartStore keeps the encoded form of each session's cart, so reads go through the same
// decode path as the Redis store.
type CartStore struct {
	mu    sync.RWMutex
	carts map[string][]byte
}

func NewCartStore() *CartStore {
	return &CartStore{
		carts: make(map[string][]byte),
	}
}

func (s *CartStore) Load(ctx context.Context, sessionID string) (domain.Cart, error) {
	_ = ctx

	s.mu.RLock()
	raw, ok := s.carts[sessionID]
	s.mu.RUnlock()

	if !ok {
		return domain.Cart{}, nil
	}
	return domain.Decode(raw)
}

func (s *CartStore) Save(ctx context.Context, sessionID string, c domain.Cart) error {
	_ = ctx

	if len(c) == 0 {
		s.mu.Lock()
		delete(s.carts, sessionID)
		s.mu.Unlock()
		return nil
	}

	raw, err := domain.Encode(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[sessionID] = raw
	return nil
}

// PutRaw stores raw bytes for a session as-is.
func (s *CartStore) PutRaw(sessionID string, raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[sessionID] = append([]byte(nil), raw...)
}

// Raw returns the stored bytes for a session.
func (s *CartStore) Raw(sessionID string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.carts[sessionID]
	return append([]byte(nil), raw...), ok
}
