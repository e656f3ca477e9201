// Package resilience guards calls to flaky dependencies with a failure-ratio
// circuit breaker.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/storefront-api/internal/obs"
)

// ErrOpenCircuit is returned when the breaker refuses a call.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// State is a breaker state. Its numeric value is exported as a gauge.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	}
	return "unknown"
}

// Settings configures a Breaker. Zero fields take defaults.
type Settings struct {
	// Name labels metrics and logs.
	Name string
	// MinRequests is the sample size below which the breaker never opens.
	MinRequests int
	// FailureRatio in (0, 1] opens the breaker once reached.
	FailureRatio float64
	// OpenFor is the cool-off before a half-open probe.
	OpenFor time.Duration
	// Interval bounds how long closed-state outcomes count. Defaults to
	// twice OpenFor.
	Interval time.Duration
	Now      func() time.Time
	Log      zerolog.Logger
}

// Breaker counts outcomes in fixed intervals while closed, opens when the
// failure ratio of the current interval is reached, and after OpenFor lets a
// single probe decide between closing and reopening.
type Breaker struct {
	cfg Settings

	mu          sync.Mutex
	state       State
	failures    int
	total       int
	windowStart time.Time
	openedAt    time.Time
	probing     bool
}

// New builds a breaker from s.
func New(s Settings) *Breaker {
	if s.Name == "" {
		s.Name = "default"
	}
	s.MinRequests = max(s.MinRequests, 1)
	if s.FailureRatio <= 0 {
		s.FailureRatio = 0.5
	}
	s.FailureRatio = min(s.FailureRatio, 1)
	if s.OpenFor <= 0 {
		s.OpenFor = 30 * time.Second
	}
	if s.Interval <= 0 {
		s.Interval = 2 * s.OpenFor
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	b := &Breaker{cfg: s, windowStart: s.Now()}
	b.exportState()
	return b
}

// Allow reports whether a call may proceed. An open breaker turns half open
// once OpenFor elapsed and admits exactly one probe.
func (b *Breaker) Allow(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if b.cfg.Now().Sub(b.openedAt) < b.cfg.OpenFor {
			return false
		}
		b.transition(ctx, HalfOpen)
		b.probing = true
		return true
	case HalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
	return true
}

// Report records the outcome of a call Allow admitted.
func (b *Breaker) Report(ctx context.Context, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		return
	case HalfOpen:
		b.probing = false
		if success {
			b.transition(ctx, Closed)
		} else {
			b.transition(ctx, Open)
		}
		return
	}

	if now := b.cfg.Now(); now.Sub(b.windowStart) >= b.cfg.Interval {
		b.failures, b.total, b.windowStart = 0, 0, now
	}
	b.total++
	if !success {
		b.failures++
	}
	if b.total >= b.cfg.MinRequests && float64(b.failures)/float64(b.total) >= b.cfg.FailureRatio {
		b.transition(ctx, Open)
	}
}

// Do runs fn when the breaker admits it and reports the outcome. A caller
// cancelling ctx is not a dependency failure and is not counted.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if !b.Allow(ctx) {
		return ErrOpenCircuit
	}
	err := fn(ctx)
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		b.mu.Lock()
		b.probing = false
		b.mu.Unlock()
		return err
	}
	b.Report(ctx, err == nil)
	return err
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) transition(ctx context.Context, next State) {
	prev := b.state
	if prev == next {
		return
	}
	now := b.cfg.Now()
	b.state = next
	b.failures, b.total, b.windowStart = 0, 0, now
	if next == Open {
		b.openedAt = now
	}
	b.exportState()
	obs.Inc(obs.BreakerTransitions, b.cfg.Name, prev.String(), next.String())

	log := b.cfg.Log
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		log = *l
	}
	evt := log.Warn()
	if next == Closed {
		evt = log.Info()
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		evt = evt.Str("trace_id", sc.TraceID().String())
	}
	evt.Str("target", b.cfg.Name).Stringer("from", prev).Stringer("to", next).Msg("breaker transition")
}

func (b *Breaker) exportState() {
	if obs.BreakerState != nil {
		obs.BreakerState.WithLabelValues(b.cfg.Name).Set(float64(b.state))
	}
}
