package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/toko-pricing/internal/catalog"
	"github.com/noah-isme/toko-pricing/internal/db"
	"github.com/noah-isme/toko-pricing/internal/resilience"
)

// CatalogQuerier defines the queries used by CatalogRepo.
type CatalogQuerier interface {
	GetShopByName(ctx context.Context, name string) (db.Shop, error)
	GetProductByID(ctx context.Context, id int64) (db.Product, error)
}

// CatalogRepo implements catalog.Lookup over PostgreSQL.
// A non-nil Breaker short-circuits queries while the database is failing.
type CatalogRepo struct {
	Q       CatalogQuerier
	Breaker *resilience.Breaker
}

// FindShopByName implements catalog.Lookup.
func (r CatalogRepo) FindShopByName(ctx context.Context, name string) (catalog.Shop, error) {
	var row db.Shop
	err := resilience.Guard(ctx, r.Breaker, func(ctx context.Context) error {
		var err error
		row, err = r.Q.GetShopByName(ctx, name)
		return err
	}, pgx.ErrNoRows)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.Shop{}, catalog.ErrNotFound
		}
		return catalog.Shop{}, fmt.Errorf("get shop %q: %w", name, err)
	}
	return catalog.Shop{ID: row.ID, Name: row.Name}, nil
}

// FindProductByID implements catalog.Lookup.
func (r CatalogRepo) FindProductByID(ctx context.Context, id int64) (catalog.Product, error) {
	var row db.Product
	err := resilience.Guard(ctx, r.Breaker, func(ctx context.Context) error {
		var err error
		row, err = r.Q.GetProductByID(ctx, id)
		return err
	}, pgx.ErrNoRows)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.Product{}, catalog.ErrNotFound
		}
		return catalog.Product{}, fmt.Errorf("get product %d: %w", id, err)
	}
	price, err := ToDecimal(row.Price)
	if err != nil {
		return catalog.Product{}, fmt.Errorf("product %d price: %w", id, err)
	}
	maxDiscount, err := ToDecimal(row.MaximumDiscount)
	if err != nil {
		return catalog.Product{}, fmt.Errorf("product %d maximum discount: %w", id, err)
	}
	return catalog.Product{ID: row.ID, Price: price, MaximumDiscountPercent: maxDiscount}, nil
}
