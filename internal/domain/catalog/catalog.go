package catalog

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var ErrProductNotFound = errors.New("catalog: product not found")

type Rating struct {
	Rate  float64 `json:"rate"`
	Count int     `json:"count"`
}

// Product is the catalog record as served by the product API.
type Product struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Rating      Rating          `json:"rating"`
}

// Catalog resolves product records by id.
type Catalog interface {
	Product(ctx context.Context, id int64) (Product, error)
}
