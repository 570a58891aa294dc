// Package audit publishes and consumes pricing quote audit tasks.
package audit

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

// TypeQuoted is the asynq task type emitted after a successful quote.
const TypeQuoted = "pricing:quoted"

// QuotedPayload summarises one priced cart. Totals are decimal strings.
type QuotedPayload struct {
	RequestID       string    `json:"request_id,omitempty"`
	UserID          string    `json:"user_id,omitempty"`
	ClientIP        string    `json:"client_ip,omitempty"`
	Codes           []string  `json:"codes"`
	ItemCount       int       `json:"item_count"`
	OriginalTotal   string    `json:"original_total"`
	DiscountedTotal string    `json:"discounted_total"`
	QuotedAt        time.Time `json:"quoted_at"`
}

// NewQuotedTask encodes payload as a TypeQuoted task.
func NewQuotedTask(payload QuotedPayload) (*asynq.Task, error) {
	if payload.Codes == nil {
		payload.Codes = []string{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeQuoted, data), nil
}

// ParseQuotedPayload decodes the payload of a TypeQuoted task.
func ParseQuotedPayload(task *asynq.Task) (QuotedPayload, error) {
	var payload QuotedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return QuotedPayload{}, err
	}
	return payload, nil
}
