package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/niksmo/gallery/internal/core/domain"
	"github.com/niksmo/gallery/internal/core/port"
)

var _ port.CatalogSource = (*Flaky)(nil)

const (
	DefaultFlakyDelay    = 300 * time.Millisecond
	DefaultFlakyFailRate = 0.1
)

var ErrSimulatedFailure = errors.New("simulated network failure")

type FlakyOpt func(*Flaky) error

func FlakyDelayOpt(d time.Duration) FlakyOpt {
	return func(f *Flaky) error {
		if d < 0 {
			return errors.New("negative delay")
		}
		f.delay = d
		return nil
	}
}

// FlakyFailRateOpt sets the probability in [0, 1] of a failed fetch.
func FlakyFailRateOpt(rate float64) FlakyOpt {
	return func(f *Flaky) error {
		if rate < 0 || rate > 1 {
			return fmt.Errorf("fail rate out of range: %v", rate)
		}
		f.failRate = rate
		return nil
	}
}

// FlakyRandOpt replaces the random source, which must return values in
// [0, 1).
func FlakyRandOpt(fn func() float64) FlakyOpt {
	return func(f *Flaky) error {
		if fn == nil {
			return errors.New("rand func is nil")
		}
		f.rand = fn
		return nil
	}
}

// A Flaky source wraps another source with simulated network latency and
// random failures.
type Flaky struct {
	src      port.CatalogSource
	delay    time.Duration
	failRate float64
	rand     func() float64
}

func NewFlaky(src port.CatalogSource, opts ...FlakyOpt) (*Flaky, error) {
	const op = "NewFlaky"

	if src == nil {
		panic(op + ": source is nil") // develop mistake
	}

	f := &Flaky{
		src:      src,
		delay:    DefaultFlakyDelay,
		failRate: DefaultFlakyFailRate,
		rand:     rand.Float64,
	}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	return f, nil
}

func (*Flaky) Name() string {
	return "mock"
}

func (f *Flaky) Fetch(ctx context.Context) (domain.Catalog, error) {
	const op = "Flaky.Fetch"
	log := slog.With("op", op)

	if f.delay > 0 {
		t := time.NewTimer(f.delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return domain.Catalog{}, fmt.Errorf("%s: %w", op, ctx.Err())
		case <-t.C:
		}
	}

	if f.rand() < f.failRate {
		return domain.Catalog{}, fmt.Errorf(
			"%s: %w: %w", op, domain.ErrSourceUnavailable, ErrSimulatedFailure,
		)
	}

	c, err := f.src.Fetch(ctx)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("%s: %w", op, err)
	}
	log.Debug("mock catalog served", "source", f.src.Name())
	return c, nil
}
