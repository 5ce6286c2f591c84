package memory

import (
	"context"
	"sort"
	"sync"

	domain "github.com/Zhima-Mochi/minishop-storefront/internal/domain/catalog"
	"github.com/shopspring/decimal"
)

type Catalog struct {
	mu       sync.RWMutex
	products map[int64]domain.Product
}

func NewCatalog(products ...domain.Product) *Catalog {
	c := &Catalog{
		products: make(map[int64]domain.Product, len(products)),
	}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

// NewSeededCatalog returns a catalog preloaded with the demo product set.
func NewSeededCatalog() *Catalog {
	return NewCatalog(SeedProducts()...)
}

func (c *Catalog) Product(ctx context.Context, id int64) (domain.Product, error) {
	_ = ctx

	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

// List returns every product ordered by id.
func (c *Catalog) List(ctx context.Context) []domain.Product {
	_ = ctx

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Product, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func SeedProducts() []domain.Product {
	return []domain.Product{
		{
			ID:       1,
			Title:    "Fjallraven Foldsack No. 1 Backpack",
			Price:    decimal.RequireFromString("109.95"),
			Image:    "https://fakestoreapi.com/img/81fPKd-2AYL._AC_SL1500_.jpg",
			Category: "men's clothing",
			Rating:   domain.Rating{Rate: 3.9, Count: 120},
		},
		{
			ID:       2,
			Title:    "Mens Casual Premium Slim Fit T-Shirts",
			Price:    decimal.RequireFromString("22.3"),
			Image:    "https://fakestoreapi.com/img/71-3HjGNDUL._AC_SY879._SX._UX._SY._UY_.jpg",
			Category: "men's clothing",
			Rating:   domain.Rating{Rate: 4.1, Count: 259},
		},
		{
			ID:       3,
			Title:    "Mens Cotton Jacket",
			Price:    decimal.RequireFromString("55.99"),
			Image:    "https://fakestoreapi.com/img/71li-ujtlUL._AC_UX679_.jpg",
			Category: "men's clothing",
			Rating:   domain.Rating{Rate: 4.7, Count: 500},
		},
		{
			ID:       5,
			Title:    "John Hardy Women's Legends Naga Bracelet",
			Price:    decimal.RequireFromString("695"),
			Image:    "https://fakestoreapi.com/img/71pWzhdJNwL._AC_UL640_QL65_ML3_.jpg",
			Category: "jewelery",
			Rating:   domain.Rating{Rate: 4.6, Count: 400},
		},
		{
			ID:       9,
			Title:    "WD 2TB Elements Portable External Hard Drive",
			Price:    decimal.RequireFromString("64"),
			Image:    "https://fakestoreapi.com/img/61IBBVJvSDL._AC_SY879_.jpg",
			Category: "electronics",
			Rating:   domain.Rating{Rate: 3.3, Count: 203},
		},
		{
			ID:       18,
			Title:    "MBJ Women's Solid Short Sleeve Boat Neck V",
			Price:    decimal.RequireFromString("9.85"),
			Image:    "https://fakestoreapi.com/img/71z3kpMAYsL._AC_UY879_.jpg",
			Category: "women's clothing",
			Rating:   domain.Rating{Rate: 4.7, Count: 130},
		},
	}
}
