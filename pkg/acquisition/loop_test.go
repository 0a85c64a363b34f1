package acquisition

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/itohio/godaq/pkg/config"
	"github.com/itohio/godaq/pkg/daq"
	"github.com/itohio/godaq/pkg/record"
	"github.com/itohio/godaq/pkg/sample"
	"github.com/itohio/godaq/pkg/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockChannel(t *testing.T, spec string) (*daq.Mock, *daq.Channel) {
	t.Helper()
	mock := daq.NewMock(&config.MockConfig{
		Bias:       2.0,
		NoiseLevel: 0.01,
		Amplitude:  0.5,
		Period:     time.Second,
	})
	cs, err := daq.ParseChannelSpec(spec)
	require.NoError(t, err)
	ch, err := daq.NewChannel(mock, cs, daq.Settings{
		SamplingFrequency: 100000,
		SamplesPerChannel: 2,
		Timeout:           time.Second,
		VoltageMin:        -10,
		VoltageMax:        10,
		CurrentMin:        0,
		CurrentMax:        0.02,
		ShuntResistance:   249,
	})
	require.NoError(t, err)
	require.NoError(t, ch.Reset(0))
	return mock, ch
}

// memorySink keeps every written session.
type memorySink struct {
	mu       sync.Mutex
	sessions []record.Session
	states   []State
	loop     *Loop
	fail     int // Number of writes that fail before succeeding
}

func (m *memorySink) Write(s record.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loop != nil {
		m.states = append(m.states, m.loop.State())
	}
	if m.fail > 0 {
		m.fail--
		return &record.IOError{Op: "create", Path: "/nowhere/" + s.Label + ".csv", Err: errors.New("permission denied")}
	}
	m.sessions = append(m.sessions, s)
	return nil
}

// fakeAcquirer returns scripted bursts.
type fakeAcquirer struct {
	channels int
	bursts   []daq.Burst
	reads    int
}

func (f *fakeAcquirer) Channels() int { return f.channels }

func (f *fakeAcquirer) Read(mode daq.Mode) (daq.Burst, error) {
	if f.reads >= len(f.bursts) {
		return daq.Burst{}, errors.New("no more bursts")
	}
	b := f.bursts[f.reads]
	f.reads++
	return b, nil
}

func TestLoop_DeviceErrorOnFifthCycle(t *testing.T) {
	mock, ch := newMockChannel(t, "Dev1/ai0:3")
	// Cycle n reads voltage as call 2n-1 and current as call 2n
	mock.FailRead(9)

	dir := t.TempDir()
	sink := record.CSV{Dir: dir}
	loop := New(ch, sink, Options{Label: "Calib_test", BaselineWindow: 20})

	err := loop.Run(context.Background())
	require.Error(t, err)

	var devErr *daq.DeviceError
	require.True(t, errors.As(err, &devErr))
	assert.Equal(t, "ReadAnalog", devErr.Op)
	assert.Equal(t, daq.ErrSimulatedFault, devErr.Code)

	assert.Equal(t, Stopped, loop.State())
	assert.Equal(t, 4, loop.Log().Len())
	assert.Equal(t, 0, mock.Open(), "no task may be left open")

	rows, err := record.ReadCSV(filepath.Join(dir, "Calib_test.csv"))
	require.NoError(t, err)
	require.Len(t, rows, 4)
	for _, row := range rows {
		assert.Len(t, row, 4)
	}
}

func TestLoop_CancelMidCycleCompletesCycle(t *testing.T) {
	mock, ch := newMockChannel(t, "Dev1/ai0:2")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancel during the voltage read of the third cycle
	mock.OnRead(func(n int, mode daq.Mode) {
		if n == 5 {
			assert.Equal(t, daq.Voltage, mode)
			cancel()
		}
	})

	var updates []view.Update
	sink := &memorySink{}
	loop := New(ch, sink, Options{Label: "cancel"})
	loop.OnUpdate(view.Func(func(u view.Update) { updates = append(updates, u) }))

	err := loop.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 6, mock.Reads(), "the current read of the cancelled cycle still runs")
	assert.Equal(t, 3, loop.Log().Len())
	require.Len(t, updates, 3)
	for i, u := range updates {
		assert.Equal(t, i, u.Cycle)
		assert.Len(t, u.Voltage, 3)
		assert.Len(t, u.Current, 3)
	}

	require.Len(t, sink.sessions, 1)
	s := sink.sessions[0]
	assert.Equal(t, "cancel", s.Label)
	assert.Equal(t, 3, s.Channels)
	assert.Len(t, s.Raw, 3)
	assert.Len(t, s.Corrected, 3)
}

func TestLoop_CancelBeforeStartWritesEmptySession(t *testing.T) {
	mock, ch := newMockChannel(t, "Dev1/ai0")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &memorySink{}
	loop := New(ch, sink, Options{Label: "empty"})
	require.NoError(t, loop.Run(ctx))

	assert.Equal(t, 0, mock.Reads())
	require.Len(t, sink.sessions, 1)
	assert.Empty(t, sink.sessions[0].Corrected)
}

func TestLoop_CancelDuringCycleDelay(t *testing.T) {
	_, ch := newMockChannel(t, "Dev1/ai0:1")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loop := New(ch, &memorySink{}, Options{CycleDelay: time.Hour})
	loop.OnUpdate(view.Func(func(view.Update) { cancel() }))

	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation during the cycle delay")
	}
	assert.Equal(t, 1, loop.Log().Len())
}

func TestLoop_BaselineCorrection(t *testing.T) {
	bursts := make([]daq.Burst, 0, 50)
	for i := range 25 {
		v := 2.0
		if i >= 20 {
			v = 5.0
		}
		// Burst of two samples per channel; only the last one counts
		voltage := daq.Burst{Mode: daq.Voltage, Channels: 3, PerChannel: 2, Samples: []float64{-9, v, -9, v, -9, v}}
		current := daq.Burst{Mode: daq.Current, Channels: 3, PerChannel: 1, Samples: []float64{0.01, 0.01, 0.01}}
		bursts = append(bursts, voltage, current)
	}
	acq := &fakeAcquirer{channels: 3, bursts: bursts}
	sink := &memorySink{}
	loop := New(acq, sink, Options{Label: "step", BaselineWindow: 20})

	// The acquirer errors once it runs out of bursts
	err := loop.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no more bursts")

	require.Len(t, sink.sessions, 1)
	corrected := sink.sessions[0].Corrected
	require.Len(t, corrected, 25)
	for i, row := range corrected {
		want := 0.0
		if i >= 20 {
			want = 3.0
		}
		assert.InDeltaSlice(t, []float64{want, want, want}, []float64(row), 1e-12, "row %d", i)
	}
	assert.Equal(t, sample.Reading{2, 2, 2}, sink.sessions[0].Raw[0])
}

func TestLoop_MalformedBurstIsFatal(t *testing.T) {
	acq := &fakeAcquirer{channels: 2, bursts: []daq.Burst{
		{Mode: daq.Voltage, Channels: 2, PerChannel: 1, Samples: []float64{1, 2}},
		{Mode: daq.Current, Channels: 2, PerChannel: 1, Samples: []float64{0.1, 0.2}},
		{Mode: daq.Voltage, Channels: 2, PerChannel: 0, Samples: nil},
	}}
	sink := &memorySink{}
	loop := New(acq, sink, Options{})

	err := loop.Run(context.Background())
	var malformed *sample.MalformedBurstError
	require.True(t, errors.As(err, &malformed))

	assert.Equal(t, 1, loop.Log().Len())
	require.Len(t, sink.sessions, 1)
	assert.Len(t, sink.sessions[0].Corrected, 1)
}

func TestLoop_StatesSeenByViewsAndSink(t *testing.T) {
	_, ch := newMockChannel(t, "Dev1/ai0")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &memorySink{}
	loop := New(ch, sink, Options{})
	sink.loop = loop

	var viewStates []State
	loop.OnUpdate(view.Func(func(u view.Update) {
		viewStates = append(viewStates, loop.State())
		if u.Cycle == 1 {
			cancel()
		}
	}))

	assert.Equal(t, Idle, loop.State())
	require.NoError(t, loop.Run(ctx))

	assert.Equal(t, []State{Running, Running}, viewStates)
	assert.Equal(t, []State{Draining}, sink.states)
	assert.Equal(t, Stopped, loop.State())
}

func TestLoop_RunTwice(t *testing.T) {
	_, ch := newMockChannel(t, "Dev1/ai0")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loop := New(ch, nil, Options{})
	require.NoError(t, loop.Run(ctx))
	assert.ErrorIs(t, loop.Run(ctx), ErrAlreadyStarted)
}

func TestLoop_PersistBeforeStop(t *testing.T) {
	_, ch := newMockChannel(t, "Dev1/ai0")
	loop := New(ch, &memorySink{}, Options{})
	assert.ErrorIs(t, loop.Persist(), ErrNotStopped)

	_, ok := loop.Session()
	assert.False(t, ok)
}

func TestLoop_PersistRetryAfterIOError(t *testing.T) {
	mock, ch := newMockChannel(t, "Dev1/ai0:1")
	mock.FailRead(7)

	sink := &memorySink{fail: 1}
	loop := New(ch, sink, Options{Label: "retry"})

	err := loop.Run(context.Background())
	var ioErr *record.IOError
	require.True(t, errors.As(err, &ioErr))
	var devErr *daq.DeviceError
	require.True(t, errors.As(err, &devErr))
	assert.Empty(t, sink.sessions)

	reads := mock.Reads()
	require.NoError(t, loop.Persist())
	assert.Equal(t, reads, mock.Reads(), "persisting never acquires")

	require.Len(t, sink.sessions, 1)
	assert.Len(t, sink.sessions[0].Corrected, 3)

	s, ok := loop.Session()
	require.True(t, ok)
	assert.Equal(t, sink.sessions[0], s)
}

func TestLoop_LogReadableWhileRunning(t *testing.T) {
	mock, ch := newMockChannel(t, "Dev1/ai0:3")
	mock.FailRead(401)

	loop := New(ch, nil, Options{})

	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background()) }()

	// Readers never block the loop
	for loop.State() != Stopped {
		if r, ok := loop.Log().Latest(); ok {
			assert.Len(t, r, 4)
		}
		select {
		case err := <-done:
			var devErr *daq.DeviceError
			assert.True(t, errors.As(err, &devErr))
			assert.Equal(t, 200, loop.Log().Len())
			return
		default:
		}
	}
	err := <-done
	var devErr *daq.DeviceError
	assert.True(t, errors.As(err, &devErr))
	assert.Equal(t, 200, loop.Log().Len())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "draining", Draining.String())
	assert.Equal(t, "stopped", Stopped.String())
	assert.Equal(t, "unknown", State(42).String())
}
