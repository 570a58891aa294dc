package voucher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestActiveOnIsInclusive(t *testing.T) {
	rec := Record{ExpirationDate: date(2026, 10, 14)}
	lateEvening := time.Date(2026, 10, 14, 23, 59, 0, 0, time.FixedZone("WIB", 7*3600))
	if !rec.ActiveOn(lateEvening) {
		t.Fatal("expected record to be active on its expiration day")
	}
	if rec.ActiveOn(date(2026, 10, 15)) {
		t.Fatal("expected record to be expired the day after")
	}
}

func TestMultiplierCapsAtMaximum(t *testing.T) {
	rec := Record{DiscountPercent: decimal.NewFromInt(80)}
	got := rec.Multiplier(decimal.NewFromInt(50))
	if !got.Equal(decimal.New(5, -1)) {
		t.Fatalf("expected 0.5 multiplier, got %s", got)
	}
	rec.DiscountPercent = decimal.NewFromInt(20)
	got = rec.Multiplier(decimal.NewFromInt(50))
	if !got.Equal(decimal.New(8, -1)) {
		t.Fatalf("expected 0.8 multiplier, got %s", got)
	}
}

func TestMultiplierClampsOutOfRange(t *testing.T) {
	rec := Record{DiscountPercent: decimal.NewFromInt(-5)}
	if got := rec.Multiplier(decimal.NewFromInt(100)); !got.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("negative percent must not raise the price, got %s", got)
	}
	rec.DiscountPercent = decimal.NewFromInt(150)
	if got := rec.Multiplier(decimal.NewFromInt(200)); !got.Equal(decimal.Zero) {
		t.Fatalf("expected zero multiplier, got %s", got)
	}
}

func TestStaticRegistry(t *testing.T) {
	today := date(2026, 10, 14)
	reg := NewStatic(
		Record{Code: "BOTH", Scope: ScopeProduct, TargetID: 1, DiscountPercent: decimal.NewFromInt(10), ExpirationDate: today},
		Record{Code: "BOTH", Scope: ScopeShop, TargetID: 7, DiscountPercent: decimal.NewFromInt(5), ExpirationDate: today.AddDate(0, 1, 0)},
		Record{Code: "OLD", Scope: ScopeShop, TargetID: 7, DiscountPercent: decimal.NewFromInt(5), ExpirationDate: today.AddDate(0, 0, -1)},
	)

	match, err := reg.FindDiscountByCode(context.Background(), "BOTH", today)
	if err != nil {
		t.Fatalf("find BOTH: %v", err)
	}
	if match.Product == nil || match.Shop == nil {
		t.Fatalf("expected both records, got %+v", match)
	}
	if !match.Product.Targets(ScopeProduct, 1) || match.Product.Targets(ScopeShop, 1) {
		t.Fatal("unexpected product targeting")
	}

	if _, err := reg.FindDiscountByCode(context.Background(), "OLD", today); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for expired code, got %v", err)
	}
	if _, err := reg.FindDiscountByCode(context.Background(), "MISSING", today); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown code, got %v", err)
	}

	match, err = reg.FindDiscountByCode(context.Background(), "BOTH", today.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("find BOTH tomorrow: %v", err)
	}
	if match.Product != nil || match.Shop == nil {
		t.Fatalf("expected only the shop record tomorrow, got %+v", match)
	}
}
