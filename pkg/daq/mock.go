package daq

import (
	"math"
	"sync"
	"time"

	"github.com/itohio/godaq/pkg/config"
)

// Mock simulates a multi-channel DAQ device for testing and development.
// Every channel produces a phase-shifted sine with a little noise.
type Mock struct {
	taskTable

	cfg *config.MockConfig

	mu     sync.Mutex
	clock  float64 // Simulated acquisition time (s)
	reads  int     // Number of ReadAnalog calls
	failOn int     // ReadAnalog call that fails (0 = never)
	onRead func(n int, mode Mode)
}

// Ensure Mock implements Driver.
var _ Driver = (*Mock)(nil)

// NewMock creates a new mocked driver instance.
func NewMock(cfg *config.MockConfig) *Mock {
	if cfg == nil {
		cfg = &config.MockConfig{
			Bias:       0.5,
			NoiseLevel: 0.01,
			Amplitude:  2.0,
			Period:     5 * time.Second,
		}
	}

	return &Mock{
		cfg:    cfg,
		failOn: cfg.FailAfter,
	}
}

// FailRead makes the nth ReadAnalog call (1-based) fail with ErrSimulatedFault.
func (m *Mock) FailRead(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOn = n
}

// OnRead registers a hook invoked at the start of every ReadAnalog call with
// the 1-based call number and the task mode.
func (m *Mock) OnRead(hook func(n int, mode Mode)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onRead = hook
}

// Reads returns the number of ReadAnalog calls so far.
func (m *Mock) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// ResetDevice simulates a device reset; all tasks are dropped.
func (m *Mock) ResetDevice(device string) Status {
	if device == "" {
		return ErrDeviceNotFound
	}
	m.clearAll()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = 0
	return StatusOK
}

func (m *Mock) CreateTask(name string) (TaskHandle, Status) {
	return m.create(), StatusOK
}

func (m *Mock) CreateVoltageChannel(task TaskHandle, physical string, min, max float64) Status {
	return m.addChannel(task, physical, Voltage, min, max, 0)
}

func (m *Mock) CreateCurrentChannel(task TaskHandle, physical string, min, max, shunt float64) Status {
	return m.addChannel(task, physical, Current, min, max, shunt)
}

func (m *Mock) ConfigureClockTiming(task TaskHandle, rate float64, edge Edge, mode SampleMode, samplesPerChannel uint64) Status {
	return m.configureTiming(task, rate, mode, samplesPerChannel)
}

func (m *Mock) StartTask(task TaskHandle) Status {
	return m.start(task)
}

// ReadAnalog blocks for the simulated acquisition time and fills buf.
func (m *Mock) ReadAnalog(task TaskHandle, samplesPerChannel int, timeout time.Duration, layout Layout, buf []float64) (int, Status) {
	m.mu.Lock()
	m.reads++
	n := m.reads
	hook := m.onRead
	fail := m.failOn > 0 && n == m.failOn
	m.mu.Unlock()

	cfg, code := m.readableTask(task, samplesPerChannel, buf)
	if hook != nil {
		hook(n, cfg.mode)
	}
	if code != StatusOK {
		return 0, code
	}
	if fail {
		return 0, ErrSimulatedFault
	}

	duration := time.Duration(float64(samplesPerChannel) / cfg.rate * float64(time.Second))
	if timeout > 0 && duration > timeout {
		time.Sleep(timeout)
		return 0, ErrReadTimeout
	}
	time.Sleep(duration)

	m.mu.Lock()
	start := m.clock
	m.clock += float64(samplesPerChannel) / cfg.rate
	m.mu.Unlock()

	channels := cfg.spec.Count()
	for s := range samplesPerChannel {
		t := start + float64(s)/cfg.rate
		for c := range channels {
			v := m.generateSample(t, cfg.spec.First()+c)
			if cfg.mode == Current {
				v /= cfg.shunt
			}
			v = math.Max(cfg.min, math.Min(cfg.max, v))

			if layout == GroupByScan {
				buf[s*channels+c] = v
			} else {
				buf[c*samplesPerChannel+s] = v
			}
		}
	}

	return samplesPerChannel, StatusOK
}

func (m *Mock) StopTask(task TaskHandle) Status {
	return m.stop(task)
}

func (m *Mock) ClearTask(task TaskHandle) Status {
	return m.clear(task)
}

func (m *Mock) ErrorString(code Status) string {
	return describeStatus(code)
}

// generateSample returns the simulated input voltage of channel ch at time t.
func (m *Mock) generateSample(t float64, ch int) float64 {
	period := m.cfg.Period.Seconds()
	if period <= 0 {
		period = 1
	}
	phase := float64(ch) * math.Pi / 4

	// Deterministic pseudo-noise
	noise := (math.Sin(t*1000+float64(ch)) + math.Cos(t*1300)) * m.cfg.NoiseLevel * 0.5

	return m.cfg.Bias + m.cfg.Amplitude*math.Sin(2*math.Pi*t/period+phase) + noise
}
