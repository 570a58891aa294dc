package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pricing/internal/audit"
	"github.com/noah-isme/toko-pricing/internal/common"
)

// Quoter prices a cart. *Engine satisfies it.
type Quoter interface {
	Apply(ctx context.Context, req Request) (Result, error)
}

// QuotePublisher receives a summary of every successful quote.
type QuotePublisher interface {
	PublishQuote(ctx context.Context, payload audit.QuotedPayload) error
}

// Handler exposes the engine over HTTP.
type Handler struct {
	Engine Quoter
	Audit  QuotePublisher
	Logger zerolog.Logger
	Now    func() time.Time
}

type applyRequest struct {
	Cart            []CartItem `json:"cart"`
	UsedDiscounts   []string   `json:"used_discounts"`
	NewDiscountCode *string    `json:"new_discount_code"`
}

type cartItemResponse struct {
	ProductID       int64   `json:"product_id"`
	ShopID          int64   `json:"shop_id"`
	Name            string  `json:"name"`
	Image           string  `json:"image"`
	Amount          int     `json:"amount"`
	DiscountedPrice float64 `json:"discountedPrice"`
	OriginalPrice   float64 `json:"originalPrice"`
}

type applyResponse struct {
	CartItems            []cartItemResponse `json:"cartItems"`
	OriginalTotalPrice   float64            `json:"originalTotalPrice"`
	DiscountedTotalPrice float64            `json:"discountedTotalPrice"`
}

// ApplyDiscounts handles POST /apply-discounts.
func (h *Handler) ApplyDiscounts(w http.ResponseWriter, r *http.Request) {
	if h.Engine == nil {
		h.Logger.Error().Msg("pricing engine not configured")
		common.InternalError(w)
		return
	}
	payload, err := decodeRequest(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	req := Request{Cart: payload.Cart, UsedDiscountCodes: payload.UsedDiscounts}
	if payload.NewDiscountCode != nil {
		req.NewDiscountCode = *payload.NewDiscountCode
	}

	res, err := h.Engine.Apply(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.publish(r, res)
	common.JSON(w, http.StatusOK, toResponse(res))
}

func decodeRequest(r *http.Request) (applyRequest, error) {
	var payload applyRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return payload, common.NewAppError("PAYLOAD_TOO_LARGE", "request body too large", http.StatusRequestEntityTooLarge, err)
		}
		return payload, common.NewAppError("BAD_REQUEST", "invalid JSON body", http.StatusBadRequest, err)
	}
	return payload, nil
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if common.WriteAppError(w, err) {
		return
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		common.JSONError(w, http.StatusBadRequest, string(ve.Reason), ve.Message)
		return
	}
	h.Logger.Error().
		Err(err).
		Str("request_id", middleware.GetReqID(r.Context())).
		Msg("apply discounts failed")
	common.InternalError(w)
}

func (h *Handler) publish(r *http.Request, res Result) {
	if h.Audit == nil {
		return
	}
	subject, _ := common.Subject(r.Context())
	payload := audit.QuotedPayload{
		RequestID:       middleware.GetReqID(r.Context()),
		UserID:          subject,
		ClientIP:        common.ClientIP(r),
		Codes:           res.Codes,
		ItemCount:       len(res.CartItems),
		OriginalTotal:   res.OriginalTotalPrice.String(),
		DiscountedTotal: res.DiscountedTotalPrice.String(),
		QuotedAt:        h.now().UTC(),
	}
	if err := h.Audit.PublishQuote(r.Context(), payload); err != nil {
		h.Logger.Warn().Err(err).Str("request_id", payload.RequestID).Msg("publish quote audit")
	}
}

func toResponse(res Result) applyResponse {
	items := make([]cartItemResponse, 0, len(res.CartItems))
	for _, item := range res.CartItems {
		items = append(items, cartItemResponse{
			ProductID:       item.ProductID,
			ShopID:          item.ShopID,
			Name:            item.Name,
			Image:           item.Image,
			Amount:          item.Amount,
			DiscountedPrice: toFloat(item.DiscountedPrice),
			OriginalPrice:   toFloat(item.OriginalPrice),
		})
	}
	return applyResponse{
		CartItems:            items,
		OriginalTotalPrice:   toFloat(res.OriginalTotalPrice),
		DiscountedTotalPrice: toFloat(res.DiscountedTotalPrice),
	}
}

func toFloat(d decimal.Decimal) float64 { return d.InexactFloat64() }

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}
