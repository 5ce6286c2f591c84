package cart

import (
	"encoding/json"
	"fmt"
)

// Encode serializes the cart as a JSON array of lines. An empty cart encodes as [].
func Encode(c Cart) ([]byte, error) {
	if c == nil {
		c = Cart{}
	}
	return json.Marshal(c)
}

// Decode parses a stored cart. Empty input is an empty cart. Unreadable input yields an
// empty cart together with ErrCorrupt, so callers can fail open.
func Decode(data []byte) (Cart, error) {
	if len(data) == 0 {
		return Cart{}, nil
	}
	var c Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return Cart{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return Sanitize(c), nil
}
