// Package view defines the live view boundary of the acquisition loop and
// a few small views that compose with it.
package view

import (
	"errors"
	"sync"
	"time"

	"github.com/itohio/godaq/pkg/sample"
)

// Update is the newest state published once per acquisition cycle.
type Update struct {
	Cycle   int            // Index of the session log row
	Voltage sample.Reading // Latest voltage per channel (V)
	Current sample.Reading // Latest current per channel (A)
}

// View renders the newest reading. Render is called synchronously from the
// acquisition goroutine, so it must return quickly and must not retain the
// readings beyond the call without copying them.
type View interface {
	Render(u Update)
}

// Func adapts a plain function to View.
type Func func(u Update)

func (f Func) Render(u Update) { f(u) }

// Multi renders every update on each of its views, in order.
type Multi []View

func (m Multi) Render(u Update) {
	for _, v := range m {
		v.Render(u)
	}
}

// Closer is implemented by views holding external resources.
type Closer interface {
	Close() error
}

// Close closes every view that implements Closer.
func (m Multi) Close() error {
	var errs []error
	for _, v := range m {
		if c, ok := v.(Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

// Throttle forwards at most one update per interval to the wrapped view.
// Updates arriving sooner are dropped. The first update is always forwarded.
type Throttle struct {
	view     View
	interval time.Duration

	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// NewThrottle wraps v. A non-positive interval forwards every update.
func NewThrottle(v View, interval time.Duration) *Throttle {
	return &Throttle{view: v, interval: interval, now: time.Now}
}

func (t *Throttle) Render(u Update) {
	t.mu.Lock()
	now := t.now()
	if !t.last.IsZero() && now.Sub(t.last) < t.interval {
		t.mu.Unlock()
		return
	}
	t.last = now
	t.mu.Unlock()

	t.view.Render(u)
}

// Close closes the wrapped view if it implements Closer.
func (t *Throttle) Close() error {
	if c, ok := t.view.(Closer); ok {
		return c.Close()
	}
	return nil
}
