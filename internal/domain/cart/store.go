package cart

import "context"

// Store persists one cart per session. Load of an absent session returns an empty cart
// and no error; an unreadable value returns an empty cart wrapped with ErrCorrupt.
type Store interface {
	Load(ctx context.Context, sessionID string) (Cart, error)
	Save(ctx context.Context, sessionID string, c Cart) error
}
