// Package pricing applies discount codes to a cart and computes its totals.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/toko-pricing/internal/catalog"
	"github.com/noah-isme/toko-pricing/internal/obs"
	"github.com/noah-isme/toko-pricing/internal/voucher"
)

const instrumentationName = "github.com/noah-isme/toko-pricing/internal/pricing"

var (
	tracer   = otel.Tracer(instrumentationName)
	savings  metric.Float64Counter
	validate = validator.New(validator.WithRequiredStructEnabled())
)

func init() {
	savings, _ = otel.Meter(instrumentationName).Float64Counter(
		"pricing.savings",
		metric.WithDescription("Sum of original minus discounted cart totals."),
	)
}

// CartItem is a cart line as sent by the client.
type CartItem struct {
	ProductID int64  `json:"product_id"`
	Shop      string `json:"shop" validate:"required"`
	Amount    int    `json:"amount" validate:"gt=0"`
	Name      string `json:"name"`
	Image     string `json:"image"`
}

// Request is the input of Apply. A nil UsedDiscountCodes means the field was
// absent, which is different from an empty list.
type Request struct {
	Cart              []CartItem
	UsedDiscountCodes []string
	NewDiscountCode   string
}

// ResolvedCartItem is a priced cart line. Prices are per unit.
type ResolvedCartItem struct {
	ProductID       int64
	ShopID          int64
	Name            string
	Image           string
	Amount          int
	OriginalPrice   decimal.Decimal
	DiscountedPrice decimal.Decimal
}

// Result is the itemised outcome of Apply.
type Result struct {
	CartItems            []ResolvedCartItem
	OriginalTotalPrice   decimal.Decimal
	DiscountedTotalPrice decimal.Decimal
	Codes                []string
}

// Engine prices carts against a catalog and a discount registry.
type Engine struct {
	Catalog   catalog.Lookup
	Discounts voucher.Registry
	// Now and Location decide the date discounts are checked against.
	Now      func() time.Time
	Location *time.Location
	// Parallelism bounds concurrent catalog lookups. Values below 2 resolve
	// items one by one and stop at the first failure.
	Parallelism int
}

type line struct {
	shop    catalog.Shop
	product catalog.Product
	err     error
}

// Apply validates the discount codes, resolves every cart item and returns
// the discounted totals. Any failure aborts the whole request.
func (e *Engine) Apply(ctx context.Context, req Request) (res Result, err error) {
	if e == nil || e.Catalog == nil || e.Discounts == nil {
		return Result{}, &InternalError{Op: "apply", Err: errors.New("engine not configured")}
	}
	ctx, span := tracer.Start(ctx, "pricing.Apply")
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = outcomeOf(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		obs.ObservePricingQuote(outcome)
		span.End()
	}()
	span.SetAttributes(attribute.Int("pricing.cart_items", len(req.Cart)))

	if len(req.Cart) == 0 || req.UsedDiscountCodes == nil {
		return Result{}, ErrMissingFields
	}
	allCodes, err := collectCodes(req.UsedDiscountCodes, req.NewDiscountCode)
	if err != nil {
		return Result{}, err
	}
	if err := validateCart(req.Cart); err != nil {
		return Result{}, err
	}
	span.SetAttributes(attribute.StringSlice("pricing.codes", allCodes))

	discounts, err := e.resolveDiscounts(ctx, allCodes)
	if err != nil {
		return Result{}, err
	}

	resolve := func(i int) line { return e.resolveLine(ctx, req.Cart[i]) }
	if p := e.Parallelism; p > 1 && len(req.Cart) > 1 {
		lines := e.prefetch(ctx, req.Cart, p)
		resolve = func(i int) line { return lines[i] }
	}

	items := make([]ResolvedCartItem, 0, len(req.Cart))
	originalTotal := decimal.Zero
	discountedTotal := decimal.Zero
	for i, item := range req.Cart {
		ln := resolve(i)
		if ln.err != nil {
			return Result{}, ln.err
		}
		qty := decimal.NewFromInt(int64(item.Amount))
		price := ln.product.Price
		originalTotal = originalTotal.Add(price.Mul(qty))

		discounted, err := applyDiscounts(discounts, item, ln)
		if err != nil {
			return Result{}, err
		}
		discountedTotal = discountedTotal.Add(discounted.Mul(qty))

		items = append(items, ResolvedCartItem{
			ProductID:       item.ProductID,
			ShopID:          ln.shop.ID,
			Name:            item.Name,
			Image:           item.Image,
			Amount:          item.Amount,
			OriginalPrice:   price,
			DiscountedPrice: discounted,
		})
	}

	if savings != nil {
		saved, _ := originalTotal.Sub(discountedTotal).Float64()
		savings.Add(ctx, saved)
	}
	return Result{
		CartItems:            items,
		OriginalTotalPrice:   originalTotal,
		DiscountedTotalPrice: discountedTotal,
		Codes:                allCodes,
	}, nil
}

// applyDiscounts compounds every matching discount onto the unit price in
// code order. Each step caps the percentage at the product maximum.
func applyDiscounts(discounts []voucher.Match, item CartItem, ln line) (decimal.Decimal, error) {
	discounted := ln.product.Price
	maxPercent := ln.product.MaximumDiscountPercent
	for _, d := range discounts {
		if d.Product != nil && d.Product.Targets(voucher.ScopeProduct, item.ProductID) {
			if !d.Product.MeetsMinimum(item.Amount) {
				return decimal.Zero, minimumNotMet(voucher.ScopeProduct, d.Code, d.Product.MinimumAmount)
			}
			discounted = discounted.Mul(d.Product.Multiplier(maxPercent))
			obs.ObserveDiscountApplied(string(voucher.ScopeProduct))
		}
		if d.Shop != nil && d.Shop.Targets(voucher.ScopeShop, ln.shop.ID) {
			if !d.Shop.MeetsMinimum(item.Amount) {
				return decimal.Zero, minimumNotMet(voucher.ScopeShop, d.Code, d.Shop.MinimumAmount)
			}
			discounted = discounted.Mul(d.Shop.Multiplier(maxPercent))
			obs.ObserveDiscountApplied(string(voucher.ScopeShop))
		}
	}
	return discounted, nil
}

func (e *Engine) resolveDiscounts(ctx context.Context, allCodes []string) ([]voucher.Match, error) {
	asOf := e.now().In(e.location())
	out := make([]voucher.Match, 0, len(allCodes))
	for _, code := range allCodes {
		match, err := e.Discounts.FindDiscountByCode(ctx, code, asOf)
		if err != nil {
			if errors.Is(err, voucher.ErrNotFound) {
				return nil, invalidOrExpired(code)
			}
			return nil, &InternalError{Op: fmt.Sprintf("find discount %q", code), Err: err}
		}
		if match.Empty() {
			return nil, invalidOrExpired(code)
		}
		match.Code = code
		out = append(out, match)
	}
	return out, nil
}

func (e *Engine) resolveLine(ctx context.Context, item CartItem) line {
	shop, err := e.Catalog.FindShopByName(ctx, item.Shop)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return line{err: shopNotFound(item.Shop)}
		}
		return line{err: &InternalError{Op: fmt.Sprintf("find shop %q", item.Shop), Err: err}}
	}
	product, err := e.Catalog.FindProductByID(ctx, item.ProductID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return line{err: productNotFound(item.ProductID)}
		}
		return line{err: &InternalError{Op: fmt.Sprintf("find product %d", item.ProductID), Err: err}}
	}
	return line{shop: shop, product: product}
}

// prefetch resolves every item concurrently. Failures are kept per index so
// the caller still reports the first failing item in cart order.
func (e *Engine) prefetch(ctx context.Context, cart []CartItem, limit int) []line {
	lines := make([]line, len(cart))
	var g errgroup.Group
	g.SetLimit(limit)
	for i := range cart {
		g.Go(func() error {
			lines[i] = e.resolveLine(ctx, cart[i])
			return nil
		})
	}
	_ = g.Wait()
	return lines
}

func validateCart(cart []CartItem) error {
	for i, item := range cart {
		if err := validate.Struct(item); err != nil {
			var fieldErrs validator.ValidationErrors
			if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
				return invalidItem(i, describeField(fieldErrs[0]))
			}
			return invalidItem(i, err.Error())
		}
	}
	return nil
}

func describeField(fe validator.FieldError) string {
	switch fe.Field() {
	case "Shop":
		return "shop is required"
	case "Amount":
		return "amount must be greater than zero"
	default:
		return fe.Error()
	}
}

func outcomeOf(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return string(ve.Reason)
	}
	return "INTERNAL"
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) location() *time.Location {
	if e.Location != nil {
		return e.Location
	}
	return time.Local
}
