package audit_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pricing/internal/audit"
)

type recordingEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (r *recordingEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.tasks = append(r.tasks, task)
	r.opts = append(r.opts, opts)
	return &asynq.TaskInfo{ID: "1", Type: task.Type()}, nil
}

func samplePayload() audit.QuotedPayload {
	return audit.QuotedPayload{
		RequestID:       "req-1",
		UserID:          "user-7",
		Codes:           []string{"SAVE20"},
		ItemCount:       1,
		OriginalTotal:   "30",
		DiscountedTotal: "24",
		QuotedAt:        time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestPublisherEnqueuesQuotedTask(t *testing.T) {
	client := &recordingEnqueuer{}
	pub := audit.Publisher{Client: client, Queue: "audit", Enabled: true}

	require.NoError(t, pub.PublishQuote(context.Background(), samplePayload()))
	require.Len(t, client.tasks, 1)
	require.Equal(t, audit.TypeQuoted, client.tasks[0].Type())
	require.NotEmpty(t, client.opts[0])

	decoded, err := audit.ParseQuotedPayload(client.tasks[0])
	require.NoError(t, err)
	require.Equal(t, samplePayload(), decoded)
}

func TestPublisherDisabledIsNoop(t *testing.T) {
	client := &recordingEnqueuer{}
	pub := audit.Publisher{Client: client}
	require.NoError(t, pub.PublishQuote(context.Background(), samplePayload()))
	require.Empty(t, client.tasks)
}

func TestPublisherSurfacesEnqueueErrors(t *testing.T) {
	boom := errors.New("redis down")
	pub := audit.Publisher{Client: &recordingEnqueuer{err: boom}, Enabled: true}
	require.ErrorIs(t, pub.PublishQuote(context.Background(), samplePayload()), boom)

	pub = audit.Publisher{Enabled: true}
	require.Error(t, pub.PublishQuote(context.Background(), samplePayload()))
}

func TestNewQuotedTaskEncodesEmptyCodes(t *testing.T) {
	task, err := audit.NewQuotedTask(audit.QuotedPayload{ItemCount: 2})
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(task.Payload(), &raw))
	require.Equal(t, []any{}, raw["codes"])
}

func TestHandlerLogsQuote(t *testing.T) {
	var buf bytes.Buffer
	h := audit.Handler{Logger: zerolog.New(&buf)}
	task, err := audit.NewQuotedTask(samplePayload())
	require.NoError(t, err)

	require.NoError(t, h.ProcessTask(context.Background(), task))
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "pricing_quote", entry["message"])
	require.Equal(t, "req-1", entry["request_id"])
	require.Equal(t, "24", entry["discounted_total"])
}

func TestHandlerSkipsRetryOnBadPayload(t *testing.T) {
	h := audit.Handler{Logger: zerolog.Nop()}
	err := h.ProcessTask(context.Background(), asynq.NewTask(audit.TypeQuoted, []byte("{not json")))
	require.Error(t, err)
	require.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestRedisClientOpt(t *testing.T) {
	opt, err := audit.RedisClientOpt("redis://:secret@localhost:6380/2")
	require.NoError(t, err)
	require.Equal(t, "localhost:6380", opt.Addr)
	require.Equal(t, "secret", opt.Password)
	require.Equal(t, 2, opt.DB)

	_, err = audit.RedisClientOpt("::bad")
	require.Error(t, err)
}
