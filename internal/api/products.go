package api

import (
	"context"
	"fmt"
)

// GetProducts fetches the venue's product catalog.
func (c *Client) GetProducts(ctx context.Context) ([]Product, error) {
	var products []Product
	if err := c.get(ctx, "/products", nil, &products); err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	return products, nil
}
