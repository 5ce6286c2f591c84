// Package catalog resolves products against the remote product API.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	domain "github.com/Zhima-Mochi/minishop-storefront/internal/domain/catalog"
	httpclient "github.com/Zhima-Mochi/minishop-storefront/internal/infrastructure/http"
)

const productEndpoint = "GET /api/products/{id}"

type HTTPCatalog struct {
	client *httpclient.Client
}

func NewHTTPCatalog(client *httpclient.Client) *HTTPCatalog {
	return &HTTPCatalog{client: client}
}

func (c *HTTPCatalog) Product(ctx context.Context, id int64) (domain.Product, error) {
	if id <= 0 {
		return domain.Product{}, domain.ErrProductNotFound
	}

	var p domain.Product
	err := c.client.GetJSON(ctx, productEndpoint, "/api/products/"+strconv.FormatInt(id, 10), &p)
	if err != nil {
		var se *httpclient.StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("catalog: product %d: %w", id, err)
	}
	// the upstream API answers unknown ids with 200 and an empty body
	if p.ID == 0 {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}
