package audit

import (
	"context"
	"errors"
	"math/rand"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/toko-pricing/internal/obs"
)

// Enqueuer is the subset of *asynq.Client used by Publisher.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Publisher enqueues quote audit tasks.
type Publisher struct {
	Client       Enqueuer
	Queue        string
	Enabled      bool
	SamplingRate float64
	MaxRetry     int
}

// PublishQuote enqueues a TypeQuoted task when auditing is enabled and the
// request is sampled in.
func (p Publisher) PublishQuote(ctx context.Context, payload QuotedPayload) error {
	if !p.Enabled {
		return nil
	}
	if p.SamplingRate > 0 && p.SamplingRate < 1 {
		if rand.Float64() > p.SamplingRate {
			obs.ObserveAuditPublish("sampled_out")
			return nil
		}
	}
	if p.Client == nil {
		return errors.New("audit: task client not configured")
	}
	task, err := NewQuotedTask(payload)
	if err != nil {
		obs.ObserveAuditPublish("error")
		return err
	}
	opts := []asynq.Option{asynq.Queue(p.queue())}
	if p.MaxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(p.MaxRetry))
	}
	if _, err := p.Client.EnqueueContext(ctx, task, opts...); err != nil {
		obs.ObserveAuditPublish("error")
		return err
	}
	obs.ObserveAuditPublish("enqueued")
	return nil
}

func (p Publisher) queue() string {
	if p.Queue == "" {
		return "default"
	}
	return p.Queue
}
