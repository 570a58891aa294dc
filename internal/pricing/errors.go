package pricing

import (
	"fmt"

	"github.com/noah-isme/toko-pricing/internal/voucher"
)

// Reason discriminates the business rule a request violated.
type Reason string

const (
	ReasonMissingFields            Reason = "MISSING_FIELDS"
	ReasonDuplicateDiscount        Reason = "DUPLICATE_DISCOUNT"
	ReasonInvalidOrExpiredDiscount Reason = "INVALID_OR_EXPIRED_DISCOUNT"
	ReasonShopNotFound             Reason = "SHOP_NOT_FOUND"
	ReasonProductNotFound          Reason = "PRODUCT_NOT_FOUND"
	ReasonMinimumQuantityNotMet    Reason = "MINIMUM_QUANTITY_NOT_MET"
	ReasonInvalidCartItem          Reason = "INVALID_CART_ITEM"
)

// ValidationError reports a request the engine refuses to price. The fields
// besides Reason and Message are set when they are relevant to the reason.
type ValidationError struct {
	Reason    Reason
	Message   string
	Code      string
	Scope     voucher.Scope
	Shop      string
	ProductID int64
	Minimum   int
	Index     int
}

// Error implements the error interface.
func (e *ValidationError) Error() string { return e.Message }

// Is matches any ValidationError with the same Reason, so callers can write
// errors.Is(err, pricing.ErrDuplicateDiscount).
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	return ok && t.Reason == e.Reason
}

// Sentinels for errors.Is comparisons.
var (
	ErrMissingFields = &ValidationError{
		Reason:  ReasonMissingFields,
		Message: "Cart, used discounts, or new discount code missing",
	}
	ErrDuplicateDiscount = &ValidationError{
		Reason:  ReasonDuplicateDiscount,
		Message: "Cannot use the same discount code more than once",
	}
	ErrInvalidOrExpiredDiscount = &ValidationError{Reason: ReasonInvalidOrExpiredDiscount}
	ErrShopNotFound             = &ValidationError{Reason: ReasonShopNotFound}
	ErrProductNotFound          = &ValidationError{Reason: ReasonProductNotFound}
	ErrMinimumQuantityNotMet    = &ValidationError{Reason: ReasonMinimumQuantityNotMet}
	ErrInvalidCartItem          = &ValidationError{Reason: ReasonInvalidCartItem}
)

func invalidOrExpired(code string) error {
	return &ValidationError{
		Reason:  ReasonInvalidOrExpiredDiscount,
		Message: fmt.Sprintf("Discount code '%s' is not valid or has expired", code),
		Code:    code,
	}
}

func shopNotFound(name string) error {
	return &ValidationError{
		Reason:  ReasonShopNotFound,
		Message: fmt.Sprintf("Shop with name '%s' not found", name),
		Shop:    name,
	}
}

func productNotFound(id int64) error {
	return &ValidationError{
		Reason:    ReasonProductNotFound,
		Message:   fmt.Sprintf("Product with ID %d not found", id),
		ProductID: id,
	}
}

func minimumNotMet(scope voucher.Scope, code string, minimum int) error {
	label := "Product"
	if scope == voucher.ScopeShop {
		label = "Shop"
	}
	return &ValidationError{
		Reason:  ReasonMinimumQuantityNotMet,
		Message: fmt.Sprintf("%s discount '%s' requires a minimum quantity of %d", label, code, minimum),
		Code:    code,
		Scope:   scope,
		Minimum: minimum,
	}
}

func invalidItem(index int, detail string) error {
	return &ValidationError{
		Reason:  ReasonInvalidCartItem,
		Message: fmt.Sprintf("Cart item %d is invalid: %s", index, detail),
		Index:   index,
	}
}

// InternalError wraps an unexpected collaborator failure. Its message is for
// logs only and must not be sent to clients.
type InternalError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *InternalError) Error() string {
	return "pricing: " + e.Op + ": " + e.Err.Error()
}

// Unwrap exposes the underlying failure.
func (e *InternalError) Unwrap() error { return e.Err }
