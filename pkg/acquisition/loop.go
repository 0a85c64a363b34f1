// Package acquisition drives the sampling session: read bursts, reduce them,
// log the readings, refresh the live views and persist the corrected log
// once the session stops.
package acquisition

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/itohio/godaq/pkg/baseline"
	"github.com/itohio/godaq/pkg/daq"
	"github.com/itohio/godaq/pkg/record"
	"github.com/itohio/godaq/pkg/sample"
	"github.com/itohio/godaq/pkg/session"
	"github.com/itohio/godaq/pkg/view"
)

var (
	// ErrAlreadyStarted is returned by Run when the loop has already run.
	ErrAlreadyStarted = errors.New("acquisition loop already started")
	// ErrNotStopped is returned by Persist while the loop is still acquiring.
	ErrNotStopped = errors.New("acquisition loop not stopped")
)

// State is the lifecycle state of a Loop.
type State int32

const (
	Idle State = iota
	Running
	Draining
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Acquirer reads one burst per call. *daq.Channel implements it.
type Acquirer interface {
	Read(mode daq.Mode) (daq.Burst, error)
	Channels() int
}

// Options tune the loop.
type Options struct {
	Label          string        // Session label, names the output
	CycleDelay     time.Duration // Pause between cycles
	BaselineWindow int           // Leading rows averaged into the baseline
	LogEvery       int           // Cycles between progress log lines (0 = never)
}

// Loop owns one acquisition session. It runs once: Idle → Running →
// Draining → Stopped.
type Loop struct {
	acq  Acquirer
	sink record.Sink
	opts Options

	log   *session.Log
	state atomic.Int32

	views  []view.View
	viewMu sync.RWMutex

	persistMu sync.Mutex
	frozen    *record.Session // Built once when draining starts
}

// New creates a loop reading from acq and persisting into sink.
func New(acq Acquirer, sink record.Sink, opts Options) *Loop {
	if opts.BaselineWindow <= 0 {
		opts.BaselineWindow = baseline.DefaultWindow
	}
	return &Loop{
		acq:  acq,
		sink: sink,
		opts: opts,
		log:  session.New(),
	}
}

// OnUpdate registers a view refreshed after every cycle. Views are called
// synchronously on the acquisition goroutine in registration order.
func (l *Loop) OnUpdate(v view.View) {
	l.viewMu.Lock()
	defer l.viewMu.Unlock()
	l.views = append(l.views, v)
}

// State returns the current lifecycle state.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Log returns the session log. It may be read while the loop runs.
func (l *Loop) Log() *session.Log {
	return l.log
}

// Run acquires until ctx is cancelled or an acquisition error occurs, then
// persists the baseline-corrected log. Cancellation is checked between
// cycles only, so a started cycle always completes. Cancellation is not an
// error; the result joins the acquisition error and the persist error.
func (l *Loop) Run(ctx context.Context) error {
	if !l.state.CompareAndSwap(int32(Idle), int32(Running)) {
		return ErrAlreadyStarted
	}
	log.Printf("Acquisition started: %d channel(s)", l.acq.Channels())

	acqErr := l.acquire(ctx)
	if acqErr != nil {
		log.Printf("Acquisition stopped after %d cycle(s): %v", l.log.Len(), acqErr)
	} else {
		log.Printf("Acquisition stopped after %d cycle(s)", l.log.Len())
	}

	l.state.Store(int32(Draining))
	persistErr := l.Persist()
	l.state.Store(int32(Stopped))

	return errors.Join(acqErr, persistErr)
}

// acquire runs cycles until ctx is done or a cycle fails.
func (l *Loop) acquire(ctx context.Context) error {
	channels := l.acq.Channels()

	var delay *time.Timer
	if l.opts.CycleDelay > 0 {
		delay = time.NewTimer(l.opts.CycleDelay)
		defer delay.Stop()
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		voltage, err := l.read(daq.Voltage, channels)
		if err != nil {
			return err
		}
		current, err := l.read(daq.Current, channels)
		if err != nil {
			return err
		}

		cycle := l.log.Append(voltage)
		l.notify(view.Update{Cycle: cycle, Voltage: voltage, Current: current})

		if l.opts.LogEvery > 0 && (cycle+1)%l.opts.LogEvery == 0 {
			log.Printf("Logged %d cycle(s), voltage %v", cycle+1, voltage)
		}

		if delay == nil {
			continue
		}
		delay.Reset(l.opts.CycleDelay)
		select {
		case <-ctx.Done():
			return nil
		case <-delay.C:
		}
	}
}

// read acquires one burst and reduces it.
func (l *Loop) read(mode daq.Mode, channels int) (sample.Reading, error) {
	burst, err := l.acq.Read(mode)
	if err != nil {
		return nil, fmt.Errorf("cycle %d %s read: %w", l.log.Len(), mode, err)
	}
	r, err := sample.Reduce(burst.Samples, channels)
	if err != nil {
		return nil, fmt.Errorf("cycle %d %s burst: %w", l.log.Len(), mode, err)
	}
	return r, nil
}

// notify renders u on every registered view without holding the lock.
func (l *Loop) notify(u view.Update) {
	l.viewMu.RLock()
	views := make([]view.View, len(l.views))
	copy(views, l.views)
	l.viewMu.RUnlock()

	for _, v := range views {
		v.Render(u)
	}
}

// Persist applies the baseline correction to the frozen log and writes it
// to the sink. Run calls it once; callers may call it again after a failed
// write. It never acquires.
func (l *Loop) Persist() error {
	if s := l.State(); s != Draining && s != Stopped {
		return ErrNotStopped
	}

	l.persistMu.Lock()
	defer l.persistMu.Unlock()

	if l.frozen == nil {
		raw := l.log.Snapshot()
		l.frozen = &record.Session{
			Label:     l.opts.Label,
			Channels:  l.acq.Channels(),
			Raw:       raw,
			Corrected: baseline.Correct(raw, l.opts.BaselineWindow),
		}
	}
	if l.sink == nil {
		return nil
	}
	if err := l.sink.Write(*l.frozen); err != nil {
		return fmt.Errorf("failed to persist session %q: %w", l.opts.Label, err)
	}
	log.Printf("Session %q persisted: %d row(s)", l.opts.Label, len(l.frozen.Corrected))
	return nil
}

// Session returns the frozen session, or false before draining.
func (l *Loop) Session() (record.Session, bool) {
	l.persistMu.Lock()
	defer l.persistMu.Unlock()
	if l.frozen == nil {
		return record.Session{}, false
	}
	return *l.frozen, true
}
