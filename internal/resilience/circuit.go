// Package resilience guards calls to the catalog store with a circuit breaker.
package resilience

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// ErrOpenCircuit is returned when the breaker refuses a call.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// State is the breaker state.
type State int

// Breaker states. Closed admits everything, Open rejects until the cool-off
// expires and HalfOpen admits the single probe that decides recovery.
const (
	Closed State = iota
	Open
	HalfOpen
)

var stateNames = map[State]string{Closed: "closed", Open: "open", HalfOpen: "half_open"}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// tally counts outcomes observed while closed.
type tally struct{ ok, failed int }

func (t *tally) add(success bool) {
	if success {
		t.ok++
	} else {
		t.failed++
	}
}

func (t tally) total() int { return t.ok + t.failed }

func (t tally) failureRatio() float64 {
	if t.total() == 0 {
		return 0
	}
	return float64(t.failed) / float64(t.total())
}

// decay halves both counters, rounding up, so old outcomes fade.
func (t *tally) decay() {
	t.ok = (t.ok + 1) / 2
	t.failed = (t.failed + 1) / 2
}

// Breaker is a failure-ratio circuit breaker. It opens once at least
// minRequests outcomes were counted and the failure ratio reaches threshold.
type Breaker struct {
	mu        sync.Mutex
	state     State
	counts    tally
	openUntil time.Time

	minRequests int
	threshold   float64
	coolOff     time.Duration
	target      string
	logger      zerolog.Logger
	now         func() time.Time
}

// NewBreaker constructs a closed breaker. Non-positive arguments fall back to
// one request, a 0.5 ratio and a 30s cool-off. Ratios above 1 are clamped.
func NewBreaker(minRequests int, failureRatio float64, openFor time.Duration) *Breaker {
	b := &Breaker{
		minRequests: max(minRequests, 1),
		threshold:   min(failureRatio, 1),
		coolOff:     openFor,
		target:      "default",
		logger:      zerolog.Nop(),
		now:         time.Now,
	}
	if b.threshold <= 0 {
		b.threshold = 0.5
	}
	if b.coolOff <= 0 {
		b.coolOff = 30 * time.Second
	}
	return b
}

// WithTarget names the guarded dependency for metrics and logs.
func (b *Breaker) WithTarget(target string) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t := strings.TrimSpace(target); t != "" {
		b.target = t
	}
	observeState(b.target, b.state)
	return b
}

// WithLogger sets the logger used for transition events.
func (b *Breaker) WithLogger(logger zerolog.Logger) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger = logger
	return b
}

// WithClock overrides the time source.
func (b *Breaker) WithClock(now func() time.Time) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if now != nil {
		b.now = now
	}
	return b
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether a call may proceed. Once the cool-off has elapsed an
// open breaker moves to half-open and admits exactly one probe; further calls
// are rejected until that probe is reported.
func (b *Breaker) Allow(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Closed {
		return true
	}
	if b.state == Open && !b.now().Before(b.openUntil) {
		b.moveTo(ctx, HalfOpen)
		return true
	}
	return false
}

// Report records the outcome of an admitted call. Reports that arrive while
// open belong to calls admitted before the trip and are ignored.
func (b *Breaker) Report(ctx context.Context, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case HalfOpen:
		if success {
			b.moveTo(ctx, Closed)
		} else {
			b.moveTo(ctx, Open)
		}
	case Closed:
		b.counts.add(success)
		switch total := b.counts.total(); {
		case total < b.minRequests:
		case b.counts.failureRatio() >= b.threshold:
			b.moveTo(ctx, Open)
		case total > 2*b.minRequests:
			b.counts.decay()
		}
	}
}

func (b *Breaker) moveTo(ctx context.Context, next State) {
	prev := b.state
	if prev == next {
		return
	}
	b.state = next
	b.counts = tally{}
	b.openUntil = time.Time{}
	if next == Open {
		b.openUntil = b.now().Add(b.coolOff)
	}
	observeState(b.target, next)
	observeTransition(b.target, prev, next)

	level := zerolog.InfoLevel
	if next == Open {
		level = zerolog.WarnLevel
	}
	evt := b.logger.WithLevel(level).
		Str("target", b.target).
		Str("from_state", prev.String()).
		Str("to_state", next.String())
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		evt = evt.Str("trace_id", sc.TraceID().String())
	}
	evt.Msg("breaker_transition")
}

// Guard runs fn when b admits it and reports the outcome. Errors matching one
// of expected count as successes, e.g. a not-found row, and so do cancelled
// calls. A nil breaker always admits.
func Guard(ctx context.Context, b *Breaker, fn func(context.Context) error, expected ...error) error {
	if b == nil {
		return fn(ctx)
	}
	if !b.Allow(ctx) {
		return ErrOpenCircuit
	}
	err := fn(ctx)
	b.Report(ctx, healthy(err, expected))
	return err
}

func healthy(err error, expected []error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	for _, target := range expected {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
