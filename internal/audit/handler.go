package audit

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pricing/internal/obs"
)

// Handler consumes TypeQuoted tasks and writes them to the audit log.
type Handler struct {
	Logger zerolog.Logger
}

// ProcessTask implements asynq.Handler. Undecodable payloads are not retried.
func (h Handler) ProcessTask(_ context.Context, task *asynq.Task) error {
	payload, err := ParseQuotedPayload(task)
	if err != nil {
		obs.ObserveAuditEvent("invalid")
		return fmt.Errorf("decode %s payload: %v: %w", task.Type(), err, asynq.SkipRetry)
	}
	h.Logger.Info().
		Str("task", task.Type()).
		Str("request_id", payload.RequestID).
		Str("user_id", payload.UserID).
		Str("client_ip", payload.ClientIP).
		Strs("codes", payload.Codes).
		Int("item_count", payload.ItemCount).
		Str("original_total", payload.OriginalTotal).
		Str("discounted_total", payload.DiscountedTotal).
		Time("quoted_at", payload.QuotedAt).
		Msg("pricing_quote")
	obs.ObserveAuditEvent("processed")
	return nil
}
