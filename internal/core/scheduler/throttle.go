package scheduler

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultRenderInterval is one frame at 60Hz.
const DefaultRenderInterval = 16 * time.Millisecond

var ErrInvalidInterval = errors.New("interval must be positive")

type throttleState int

const (
	stateIdle throttleState = iota
	stateCooldown
	statePending
)

func (s throttleState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateCooldown:
		return "cooldown"
	case statePending:
		return "pending"
	}
	return "unknown"
}

type throttleOpts struct {
	clock   Clock
	onError func(error)
}

type ThrottleOpt func(*throttleOpts) error

func WithClock(c Clock) ThrottleOpt {
	return func(o *throttleOpts) error {
		if c == nil {
			return errors.New("nil clock")
		}
		o.clock = c
		return nil
	}
}

// WithErrorHandler sets the receiver of errors returned by trailing calls.
// Leading calls return their error to the caller.
func WithErrorHandler(fn func(error)) ThrottleOpt {
	return func(o *throttleOpts) error {
		if fn == nil {
			return errors.New("nil error handler")
		}
		o.onError = fn
		return nil
	}
}

// A Throttler runs a call immediately when idle and then at most once per
// interval. Calls made during the cooldown collapse into one trailing call
// that runs with the latest submitted function when the interval elapses.
type Throttler struct {
	interval time.Duration
	clock    Clock
	onError  func(error)

	mu      sync.Mutex
	state   throttleState
	pending func() error
	timer   Timer
	stopped bool
	runs    uint64
	dropped uint64

	// serializes runs so that a trailing call never overlaps a leading one
	runMu sync.Mutex
}

func NewThrottler(interval time.Duration, opts ...ThrottleOpt) (*Throttler, error) {
	const op = "NewThrottler"

	if interval <= 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidInterval)
	}

	options := throttleOpts{
		clock:   RealClock{},
		onError: logError,
	}
	for _, opt := range opts {
		if err := opt(&options); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	return &Throttler{
		interval: interval,
		clock:    options.clock,
		onError:  options.onError,
	}, nil
}

func logError(err error) {
	slog.Error("trailing call failed", "op", "Throttler.fire", "err", err)
}

// Do submits fn. When the throttler is idle fn runs before Do returns and its
// error is returned. Otherwise fn replaces any pending call and Do returns
// nil.
func (t *Throttler) Do(fn func() error) error {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return nil
	}

	switch t.state {
	case stateIdle:
		t.state = stateCooldown
		t.timer = t.clock.AfterFunc(t.interval, t.fire)
		t.runs++
		t.mu.Unlock()
		return t.run(fn)
	case statePending:
		t.dropped++
	}
	t.pending = fn
	t.state = statePending
	t.mu.Unlock()
	return nil
}

func (t *Throttler) fire() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	if t.state != statePending {
		t.state = stateIdle
		t.timer = nil
		t.mu.Unlock()
		return
	}

	fn := t.pending
	t.pending = nil
	t.state = stateCooldown
	t.timer = t.clock.AfterFunc(t.interval, t.fire)
	t.runs++
	t.mu.Unlock()

	if err := t.run(fn); err != nil {
		t.onError(err)
	}
}

func (t *Throttler) run(fn func() error) error {
	t.runMu.Lock()
	defer t.runMu.Unlock()
	return fn()
}

// Flush runs the pending call now, if any, and returns its error.
func (t *Throttler) Flush() error {
	t.mu.Lock()
	fn := t.pending
	t.pending = nil
	if t.state == statePending {
		t.state = stateCooldown
	}
	if fn != nil {
		t.runs++
	}
	t.mu.Unlock()

	if fn == nil {
		return nil
	}
	return t.run(fn)
}

// Stop cancels the pending call and the cooldown timer. Calls submitted after
// Stop are ignored.
func (t *Throttler) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	t.pending = nil
	t.state = stateIdle
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// ThrottleStats is a snapshot of the throttler counters.
type ThrottleStats struct {
	State   string `json:"state"`
	Runs    uint64 `json:"runs"`
	Dropped uint64 `json:"dropped"`
}

func (t *Throttler) Stats() ThrottleStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return ThrottleStats{
		State:   t.state.String(),
		Runs:    t.runs,
		Dropped: t.dropped,
	}
}
