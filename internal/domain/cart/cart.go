package cart

import (
	"errors"

	"github.com/shopspring/decimal"
)

// MaxQuantity is the per-line upper bound. The add path caps at this value and the
// quantity controls stop here, so every stored line satisfies 1 <= Quantity <= MaxQuantity.
const MaxQuantity = 5

// CapReachedMessage is surfaced when an add is refused because the line is already at MaxQuantity.
const CapReachedMessage = "Maximum quantity reached for this item."

var (
	ErrLineNotFound   = errors.New("cart: line not found")
	ErrInvalidProduct = errors.New("cart: product id must be positive")
	ErrCorrupt        = errors.New("cart: stored cart is unreadable")
)

// Line is one product in the cart. UnitPrice is final: any catalog conversion has
// already been applied when the line was created.
type Line struct {
	ID        int64           `json:"id"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"price"`
	ImageRef  string          `json:"image"`
	Quantity  int             `json:"quantity"`
}

// Total is UnitPrice * Quantity without rounding.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is an ordered sequence of lines, unique by ID. Operations never mutate the
// receiver; they return a replacement cart.
type Cart []Line

// Clamp applies delta to quantity and bounds the result to [0, MaxQuantity].
// A result of 0 means the line must be removed.
func Clamp(quantity, delta int) int {
	q := quantity + delta
	if q < 0 {
		return 0
	}
	if q > MaxQuantity {
		return MaxQuantity
	}
	return q
}

func (c Cart) index(id int64) int {
	for i, l := range c {
		if l.ID == id {
			return i
		}
	}
	return -1
}

// Line returns the line for id.
func (c Cart) Line(id int64) (Line, bool) {
	if i := c.index(id); i >= 0 {
		return c[i], true
	}
	return Line{}, false
}

// Count is the total number of units across all lines.
func (c Cart) Count() int {
	n := 0
	for _, l := range c {
		n += l.Quantity
	}
	return n
}

func (c Cart) Empty() bool { return len(c) == 0 }

func (c Cart) Clone() Cart {
	if c == nil {
		return nil
	}
	out := make(Cart, len(c))
	copy(out, c)
	return out
}

// SetQuantity returns a cart with line id set to quantity after clamping to [0, MaxQuantity].
// A clamped quantity of 0 removes the line.
func (c Cart) SetQuantity(id int64, quantity int) (Cart, error) {
	i := c.index(id)
	if i < 0 {
		return c, ErrLineNotFound
	}
	q := Clamp(quantity, 0)
	out := make(Cart, 0, len(c))
	for j, l := range c {
		if j == i {
			if q == 0 {
				continue
			}
			l.Quantity = q
		}
		out = append(out, l)
	}
	return out, nil
}

// Adjust applies delta to the quantity of line id.
func (c Cart) Adjust(id int64, delta int) (Cart, error) {
	l, ok := c.Line(id)
	if !ok {
		return c, ErrLineNotFound
	}
	return c.SetQuantity(id, Clamp(l.Quantity, delta))
}

// Add increments the existing line for l.ID by one, or appends l with quantity 1.
// capReached reports that the line was already at MaxQuantity and nothing changed.
func (c Cart) Add(l Line) (_ Cart, capReached bool, err error) {
	if l.ID <= 0 {
		return c, false, ErrInvalidProduct
	}
	out := c.Clone()
	if i := out.index(l.ID); i >= 0 {
		if out[i].Quantity >= MaxQuantity {
			return out, true, nil
		}
		out[i].Quantity++
		return out, false, nil
	}
	l.Quantity = 1
	return append(out, l), false, nil
}

// Sanitize restores the cart invariants on data from outside the process: lines with a
// non-positive quantity or id are dropped, quantities are capped, duplicate ids are merged
// into the first occurrence.
func Sanitize(c Cart) Cart {
	out := make(Cart, 0, len(c))
	for _, l := range c {
		if l.ID <= 0 || l.Quantity <= 0 {
			continue
		}
		if i := out.index(l.ID); i >= 0 {
			out[i].Quantity = Clamp(out[i].Quantity, l.Quantity)
			continue
		}
		l.Quantity = Clamp(l.Quantity, 0)
		out = append(out, l)
	}
	return out
}

// Without removes the quantities in paid from c. Lines whose quantity drops to 0 are
// removed; units added after paid was taken are kept.
func (c Cart) Without(paid Cart) Cart {
	out := make(Cart, 0, len(c))
	for _, l := range c {
		if p, ok := paid.Line(l.ID); ok {
			l.Quantity -= p.Quantity
		}
		if l.Quantity > 0 {
			out = append(out, l)
		}
	}
	return out
}
