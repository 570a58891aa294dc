package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/toko-pricing/internal/db"
	"github.com/noah-isme/toko-pricing/internal/resilience"
	"github.com/noah-isme/toko-pricing/internal/voucher"
)

// DiscountQuerier defines the queries used by DiscountRepo.
type DiscountQuerier interface {
	GetProductDiscountByCode(ctx context.Context, arg db.GetDiscountByCodeParams) (db.ProductDiscount, error)
	GetShopDiscountByCode(ctx context.Context, arg db.GetDiscountByCodeParams) (db.ShopDiscount, error)
}

// DiscountRepo implements voucher.Registry over PostgreSQL.
type DiscountRepo struct {
	Q       DiscountQuerier
	Breaker *resilience.Breaker
}

// FindDiscountByCode implements voucher.Registry.
func (r DiscountRepo) FindDiscountByCode(ctx context.Context, code string, asOf time.Time) (voucher.Match, error) {
	params := db.GetDiscountByCodeParams{
		DiscountCode: code,
		AsOf:         pgtype.Date{Time: voucher.Day(asOf), Valid: true},
	}
	match := voucher.Match{Code: code}

	var pd db.ProductDiscount
	err := resilience.Guard(ctx, r.Breaker, func(ctx context.Context) error {
		var err error
		pd, err = r.Q.GetProductDiscountByCode(ctx, params)
		return err
	}, pgx.ErrNoRows)
	switch {
	case err == nil:
		rec, convErr := productRecord(pd)
		if convErr != nil {
			return voucher.Match{}, convErr
		}
		match.Product = &rec
	case !errors.Is(err, pgx.ErrNoRows):
		return voucher.Match{}, fmt.Errorf("get product discount %q: %w", code, err)
	}

	var sd db.ShopDiscount
	err = resilience.Guard(ctx, r.Breaker, func(ctx context.Context) error {
		var err error
		sd, err = r.Q.GetShopDiscountByCode(ctx, params)
		return err
	}, pgx.ErrNoRows)
	switch {
	case err == nil:
		rec, convErr := shopRecord(sd)
		if convErr != nil {
			return voucher.Match{}, convErr
		}
		match.Shop = &rec
	case !errors.Is(err, pgx.ErrNoRows):
		return voucher.Match{}, fmt.Errorf("get shop discount %q: %w", code, err)
	}

	if match.Empty() {
		return voucher.Match{}, voucher.ErrNotFound
	}
	return match, nil
}

func productRecord(d db.ProductDiscount) (voucher.Record, error) {
	pct, err := ToDecimal(d.Discount)
	if err != nil {
		return voucher.Record{}, fmt.Errorf("product discount %q: %w", d.DiscountCode, err)
	}
	return voucher.Record{
		Code:            d.DiscountCode,
		Scope:           voucher.ScopeProduct,
		TargetID:        d.ProductID,
		DiscountPercent: pct,
		MinimumAmount:   int(d.MinimumAmount),
		ExpirationDate:  d.ExpirationDate.Time,
	}, nil
}

func shopRecord(d db.ShopDiscount) (voucher.Record, error) {
	pct, err := ToDecimal(d.Discount)
	if err != nil {
		return voucher.Record{}, fmt.Errorf("shop discount %q: %w", d.DiscountCode, err)
	}
	return voucher.Record{
		Code:            d.DiscountCode,
		Scope:           voucher.ScopeShop,
		TargetID:        d.ShopID,
		DiscountPercent: pct,
		MinimumAmount:   int(d.MinimumAmount),
		ExpirationDate:  d.ExpirationDate.Time,
	}, nil
}
