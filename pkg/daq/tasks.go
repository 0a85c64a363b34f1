package daq

import "sync"

// taskConfig is the host-side state of one acquisition task.
type taskConfig struct {
	spec    ChannelSpec
	mode    Mode
	min     float64
	max     float64
	shunt   float64
	rate    float64
	samples uint64

	hasChannels bool
	timed       bool
	started     bool
}

// taskTable keeps the tasks of a driver. Drivers embed it to implement the
// task lifecycle part of the Driver contract.
type taskTable struct {
	mu    sync.Mutex
	next  TaskHandle
	tasks map[TaskHandle]*taskConfig
}

func (t *taskTable) create() TaskHandle {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.tasks == nil {
		t.tasks = make(map[TaskHandle]*taskConfig)
	}
	t.next++
	t.tasks[t.next] = &taskConfig{}
	return t.next
}

// snapshot returns a copy of the task configuration.
func (t *taskTable) snapshot(h TaskHandle) (taskConfig, Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.tasks[h]
	if !ok {
		return taskConfig{}, ErrInvalidTask
	}
	return *task, StatusOK
}

func (t *taskTable) addChannel(h TaskHandle, physical string, mode Mode, min, max, shunt float64) Status {
	spec, err := ParseChannelSpec(physical)
	if err != nil {
		return ErrInvalidChannel
	}
	if min >= max {
		return ErrInvalidChannel
	}
	if mode == Current && shunt <= 0 {
		return ErrInvalidChannel
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.tasks[h]
	if !ok {
		return ErrInvalidTask
	}
	task.spec = spec
	task.mode = mode
	task.min = min
	task.max = max
	task.shunt = shunt
	task.hasChannels = true
	return StatusOK
}

func (t *taskTable) configureTiming(h TaskHandle, rate float64, mode SampleMode, samples uint64) Status {
	if rate <= 0 || samples == 0 || mode != FiniteSamples {
		return ErrInvalidTiming
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.tasks[h]
	if !ok {
		return ErrInvalidTask
	}
	task.rate = rate
	task.samples = samples
	task.timed = true
	return StatusOK
}

func (t *taskTable) start(h TaskHandle) Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.tasks[h]
	if !ok {
		return ErrInvalidTask
	}
	if !task.hasChannels || !task.timed {
		return ErrInvalidTiming
	}
	task.started = true
	return StatusOK
}

func (t *taskTable) stop(h TaskHandle) Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.tasks[h]
	if !ok {
		return ErrInvalidTask
	}
	task.started = false
	return StatusOK
}

func (t *taskTable) clear(h TaskHandle) Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.tasks[h]; !ok {
		return ErrInvalidTask
	}
	delete(t.tasks, h)
	return StatusOK
}

// clearAll drops every task, as a device reset does.
func (t *taskTable) clearAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.tasks)
}

// Open returns the number of tasks that were created but not cleared yet.
func (t *taskTable) Open() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tasks)
}

// readableTask validates a read request against the task state.
func (t *taskTable) readableTask(h TaskHandle, samplesPerChannel int, buf []float64) (taskConfig, Status) {
	task, code := t.snapshot(h)
	if code != StatusOK {
		return taskConfig{}, code
	}
	if !task.started {
		return taskConfig{}, ErrTaskNotRunning
	}
	if samplesPerChannel <= 0 || uint64(samplesPerChannel) > task.samples {
		return taskConfig{}, ErrInvalidTiming
	}
	if len(buf) < samplesPerChannel*task.spec.Count() {
		return taskConfig{}, ErrBufferTooSmall
	}
	return task, StatusOK
}
