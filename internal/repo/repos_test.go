package repo_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pricing/internal/catalog"
	"github.com/noah-isme/toko-pricing/internal/db"
	"github.com/noah-isme/toko-pricing/internal/repo"
	"github.com/noah-isme/toko-pricing/internal/resilience"
	"github.com/noah-isme/toko-pricing/internal/voucher"
)

func numeric(t *testing.T, v string) pgtype.Numeric {
	t.Helper()
	n, err := repo.FromDecimal(decimal.RequireFromString(v))
	if err != nil {
		t.Fatalf("numeric %s: %v", v, err)
	}
	return n
}

type catalogStub struct {
	shops    map[string]db.Shop
	products map[int64]db.Product
	err      error
}

func (c catalogStub) GetShopByName(_ context.Context, name string) (db.Shop, error) {
	if c.err != nil {
		return db.Shop{}, c.err
	}
	s, ok := c.shops[name]
	if !ok {
		return db.Shop{}, pgx.ErrNoRows
	}
	return s, nil
}

func (c catalogStub) GetProductByID(_ context.Context, id int64) (db.Product, error) {
	if c.err != nil {
		return db.Product{}, c.err
	}
	p, ok := c.products[id]
	if !ok {
		return db.Product{}, pgx.ErrNoRows
	}
	return p, nil
}

func TestCatalogRepoMapsRows(t *testing.T) {
	stub := catalogStub{
		shops:    map[string]db.Shop{"Acme": {ID: 7, Name: "Acme"}},
		products: map[int64]db.Product{1: {ID: 1, ShopID: 7, Price: numeric(t, "10.50"), MaximumDiscount: numeric(t, "50")}},
	}
	r := repo.CatalogRepo{Q: stub}

	shop, err := r.FindShopByName(context.Background(), "Acme")
	if err != nil || shop.ID != 7 {
		t.Fatalf("unexpected shop %+v err %v", shop, err)
	}
	product, err := r.FindProductByID(context.Background(), 1)
	if err != nil {
		t.Fatalf("find product: %v", err)
	}
	if !product.Price.Equal(decimal.RequireFromString("10.5")) {
		t.Fatalf("unexpected price %s", product.Price)
	}
	if !product.MaximumDiscountPercent.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("unexpected max discount %s", product.MaximumDiscountPercent)
	}
}

func TestCatalogRepoNotFound(t *testing.T) {
	r := repo.CatalogRepo{Q: catalogStub{}}
	if _, err := r.FindShopByName(context.Background(), "Nope"); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected catalog.ErrNotFound, got %v", err)
	}
	if _, err := r.FindProductByID(context.Background(), 99); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected catalog.ErrNotFound, got %v", err)
	}
}

func TestCatalogRepoWrapsDriverErrors(t *testing.T) {
	boom := errors.New("connection reset")
	r := repo.CatalogRepo{Q: catalogStub{err: boom}}
	_, err := r.FindShopByName(context.Background(), "Acme")
	if !errors.Is(err, boom) || errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected wrapped driver error, got %v", err)
	}
}

type discountStub struct {
	product  *db.ProductDiscount
	shop     *db.ShopDiscount
	lastArgs db.GetDiscountByCodeParams
	err      error
}

func (d *discountStub) GetProductDiscountByCode(_ context.Context, arg db.GetDiscountByCodeParams) (db.ProductDiscount, error) {
	d.lastArgs = arg
	if d.err != nil {
		return db.ProductDiscount{}, d.err
	}
	if d.product == nil {
		return db.ProductDiscount{}, pgx.ErrNoRows
	}
	return *d.product, nil
}

func (d *discountStub) GetShopDiscountByCode(_ context.Context, arg db.GetDiscountByCodeParams) (db.ShopDiscount, error) {
	if d.shop == nil {
		return db.ShopDiscount{}, pgx.ErrNoRows
	}
	return *d.shop, nil
}

func TestDiscountRepoCombinesScopes(t *testing.T) {
	expires := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	stub := &discountStub{
		product: &db.ProductDiscount{DiscountCode: "SAVE20", ProductID: 1, Discount: numeric(t, "20"), MinimumAmount: 2, ExpirationDate: pgtype.Date{Time: expires, Valid: true}},
		shop:    &db.ShopDiscount{DiscountCode: "SAVE20", ShopID: 7, Discount: numeric(t, "5"), MinimumAmount: 1, ExpirationDate: pgtype.Date{Time: expires, Valid: true}},
	}
	r := repo.DiscountRepo{Q: stub}
	asOf := time.Date(2026, 10, 14, 18, 30, 0, 0, time.UTC)
	match, err := r.FindDiscountByCode(context.Background(), "SAVE20", asOf)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if match.Product == nil || match.Product.Scope != voucher.ScopeProduct || match.Product.MinimumAmount != 2 {
		t.Fatalf("unexpected product record %+v", match.Product)
	}
	if match.Shop == nil || match.Shop.TargetID != 7 {
		t.Fatalf("unexpected shop record %+v", match.Shop)
	}
	if want := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC); !stub.lastArgs.AsOf.Time.Equal(want) {
		t.Fatalf("expected as-of date truncated to day, got %v", stub.lastArgs.AsOf.Time)
	}
}

func TestDiscountRepoNotFound(t *testing.T) {
	r := repo.DiscountRepo{Q: &discountStub{}}
	if _, err := r.FindDiscountByCode(context.Background(), "GONE", time.Now()); !errors.Is(err, voucher.ErrNotFound) {
		t.Fatalf("expected voucher.ErrNotFound, got %v", err)
	}
}

func TestDiscountRepoPropagatesErrors(t *testing.T) {
	boom := errors.New("deadline exceeded")
	r := repo.DiscountRepo{Q: &discountStub{err: boom}}
	_, err := r.FindDiscountByCode(context.Background(), "X", time.Now())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestCatalogRepoBreakerOpensOnDriverErrors(t *testing.T) {
	boom := errors.New("connection refused")
	stub := catalogStub{err: boom}
	breaker := resilience.NewBreaker(2, 0.5, time.Minute)
	r := repo.CatalogRepo{Q: stub, Breaker: breaker}

	for i := 0; i < 2; i++ {
		if _, err := r.FindShopByName(context.Background(), "Acme"); !errors.Is(err, boom) {
			t.Fatalf("attempt %d: expected driver error, got %v", i, err)
		}
	}
	if _, err := r.FindProductByID(context.Background(), 1); !errors.Is(err, resilience.ErrOpenCircuit) {
		t.Fatalf("expected open circuit, got %v", err)
	}
}

func TestCatalogRepoBreakerIgnoresMissingRows(t *testing.T) {
	breaker := resilience.NewBreaker(1, 0.5, time.Minute)
	r := repo.CatalogRepo{Q: catalogStub{}, Breaker: breaker}
	for i := 0; i < 3; i++ {
		if _, err := r.FindShopByName(context.Background(), "Nope"); !errors.Is(err, catalog.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	}
	if breaker.State() != resilience.Closed {
		t.Fatalf("expected closed breaker, got %s", breaker.State())
	}
}
