// Package voucher models discount codes and the registry that resolves them.
package voucher

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a code has neither a product nor a shop record
// that is still valid on the requested date.
var ErrNotFound = errors.New("voucher: code not found or expired")

var hundred = decimal.NewFromInt(100)

// Scope tells whether a record targets a product or a whole shop.
type Scope string

const (
	// ScopeProduct discounts a single product.
	ScopeProduct Scope = "product"
	// ScopeShop discounts every product sold by a shop.
	ScopeShop Scope = "shop"
)

// Record is a single discount definition attached to a code.
type Record struct {
	Code            string          `json:"code"`
	Scope           Scope           `json:"scope"`
	TargetID        int64           `json:"target_id"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	MinimumAmount   int             `json:"minimum_amount"`
	ExpirationDate  time.Time       `json:"expiration_date"`
}

// Match holds the records found for one code. At least one side is set.
type Match struct {
	Code    string
	Product *Record
	Shop    *Record
}

// Empty reports whether neither record was found.
func (m Match) Empty() bool { return m.Product == nil && m.Shop == nil }

// Registry is the read-only discount collaborator consumed by pricing.
// Implementations return ErrNotFound when no record is active on asOf.
type Registry interface {
	FindDiscountByCode(ctx context.Context, code string, asOf time.Time) (Match, error)
}

// ActiveOn reports whether the record is still valid on the calendar day of asOf.
// The expiration date is inclusive.
func (r Record) ActiveOn(asOf time.Time) bool {
	return !Day(r.ExpirationDate).Before(Day(asOf))
}

// Targets reports whether the record applies to the given id in its scope.
func (r Record) Targets(scope Scope, id int64) bool {
	return r.Scope == scope && r.TargetID == id
}

// MeetsMinimum reports whether qty satisfies the record's quantity threshold.
func (r Record) MeetsMinimum(qty int) bool {
	return qty >= r.MinimumAmount
}

// Multiplier returns the factor applied to a price, with the percentage capped
// at maxPercent and clamped to [0, 100].
func (r Record) Multiplier(maxPercent decimal.Decimal) decimal.Decimal {
	pct := decimal.Min(r.DiscountPercent, maxPercent)
	if pct.IsNegative() {
		pct = decimal.Zero
	}
	if pct.GreaterThan(hundred) {
		pct = hundred
	}
	return decimal.NewFromInt(1).Sub(pct.Div(hundred))
}

// Day returns the calendar date of t, read in t's location, as UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
