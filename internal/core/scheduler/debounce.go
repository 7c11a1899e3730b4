package scheduler

import (
	"sync"
	"time"
)

// A Debouncer delays a call until no new call has arrived for the wait
// duration. Only the last argument is delivered.
type Debouncer[T any] struct {
	clock Clock
	wait  time.Duration
	fn    func(T)

	mu      sync.Mutex
	seq     uint64
	timer   Timer
	stopped bool
}

func NewDebouncer[T any](clock Clock, wait time.Duration, fn func(T)) *Debouncer[T] {
	if clock == nil {
		clock = RealClock{}
	}
	return &Debouncer[T]{clock: clock, wait: wait, fn: fn}
}

// Debounce returns a function that forwards to fn through a [Debouncer].
func Debounce[T any](clock Clock, wait time.Duration, fn func(T)) func(T) {
	return NewDebouncer(clock, wait, fn).Call
}

// Call restarts the wait with arg as the pending argument.
func (d *Debouncer[T]) Call(arg T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.timer = d.clock.AfterFunc(d.wait, func() {
		d.fire(seq, arg)
	})
}

// A timer that already fired cannot be stopped, so the sequence number
// guards against delivering a superseded argument.
func (d *Debouncer[T]) fire(seq uint64, arg T) {
	d.mu.Lock()
	if d.stopped || seq != d.seq {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	d.fn(arg)
}

// Cancel drops the pending call. Later calls are still accepted.
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Stop drops the pending call and ignores every later one.
func (d *Debouncer[T]) Stop() {
	d.Cancel()
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
}
