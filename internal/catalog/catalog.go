// Package catalog resolves shops and products referenced by cart lines.
package catalog

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when the requested shop or product does not exist.
var ErrNotFound = errors.New("catalog: not found")

// Shop identifies a storefront by its unique name.
type Shop struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Product carries the pricing attributes the discount engine needs.
type Product struct {
	ID                     int64           `json:"id"`
	Price                  decimal.Decimal `json:"price"`
	MaximumDiscountPercent decimal.Decimal `json:"maximum_discount_percent"`
}

// Lookup is the read-only catalog collaborator consumed by pricing.
type Lookup interface {
	FindShopByName(ctx context.Context, name string) (Shop, error)
	FindProductByID(ctx context.Context, id int64) (Product, error)
}
