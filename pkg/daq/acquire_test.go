package daq

import (
	"errors"
	"testing"
	"time"

	"github.com/itohio/godaq/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedDriver wraps Mock and lets tests override individual results.
type scriptedDriver struct {
	*Mock

	readCode  Status
	readCount int // Overrides the samples read per channel when > 0
	stopCode  Status
	clearCode Status

	stops  int
	clears int
}

func (d *scriptedDriver) ReadAnalog(task TaskHandle, samplesPerChannel int, timeout time.Duration, layout Layout, buf []float64) (int, Status) {
	if d.readCode != StatusOK {
		return 0, d.readCode
	}
	n, code := d.Mock.ReadAnalog(task, samplesPerChannel, timeout, layout, buf)
	if d.readCount > 0 {
		n = d.readCount
	}
	return n, code
}

func (d *scriptedDriver) StopTask(task TaskHandle) Status {
	d.stops++
	if d.stopCode != StatusOK {
		d.Mock.StopTask(task)
		return d.stopCode
	}
	return d.Mock.StopTask(task)
}

func (d *scriptedDriver) ClearTask(task TaskHandle) Status {
	d.clears++
	code := d.Mock.ClearTask(task)
	if d.clearCode != StatusOK {
		return d.clearCode
	}
	return code
}

func testSettings() Settings {
	return Settings{
		SamplingFrequency: 10000,
		SamplesPerChannel: 4,
		Timeout:           time.Second,
		VoltageMin:        -10,
		VoltageMax:        10,
		CurrentMin:        0,
		CurrentMax:        0.02,
		ShuntResistance:   249,
	}
}

func newTestChannel(t *testing.T, drv Driver, spec string) *Channel {
	t.Helper()
	s, err := ParseChannelSpec(spec)
	require.NoError(t, err)
	ch, err := NewChannel(drv, s, testSettings())
	require.NoError(t, err)
	return ch
}

func TestNewChannel_InvalidSettings(t *testing.T) {
	spec, err := ParseChannelSpec("Dev1/ai0")
	require.NoError(t, err)

	s := testSettings()
	s.SamplesPerChannel = 0
	_, err = NewChannel(NewMock(nil), spec, s)
	assert.Error(t, err)

	s = testSettings()
	s.SamplingFrequency = 0
	_, err = NewChannel(NewMock(nil), spec, s)
	assert.Error(t, err)
}

func TestChannel_ReadVoltage(t *testing.T) {
	mock := NewMock(&config.MockConfig{Bias: 1.0, Period: time.Second})
	ch := newTestChannel(t, mock, "Dev1/ai0:2")

	require.NoError(t, ch.Reset(0))
	burst, err := ch.Read(Voltage)
	require.NoError(t, err)

	assert.Equal(t, Voltage, burst.Mode)
	assert.Equal(t, 3, burst.Channels)
	assert.Equal(t, 4, burst.PerChannel)
	assert.Len(t, burst.Samples, 12)
	for _, v := range burst.Samples {
		assert.GreaterOrEqual(t, v, -10.0)
		assert.LessOrEqual(t, v, 10.0)
	}
	assert.Equal(t, 0, mock.Open(), "task must be cleared after read")
}

func TestChannel_ReadCurrentWithinRange(t *testing.T) {
	mock := NewMock(&config.MockConfig{Bias: 3.0, Amplitude: 1.0, Period: time.Second})
	ch := newTestChannel(t, mock, "Dev1/ai0:1")

	burst, err := ch.Read(Current)
	require.NoError(t, err)

	assert.Equal(t, Current, burst.Mode)
	for _, v := range burst.Samples {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 0.02)
	}
	assert.Equal(t, 0, mock.Open())
}

func TestChannel_ReadErrorStillTearsDown(t *testing.T) {
	drv := &scriptedDriver{Mock: NewMock(nil), readCode: ErrReadTimeout}
	ch := newTestChannel(t, drv, "Dev1/ai0:3")

	_, err := ch.Read(Voltage)
	require.Error(t, err)

	var devErr *DeviceError
	require.True(t, errors.As(err, &devErr))
	assert.Equal(t, "ReadAnalog", devErr.Op)
	assert.Equal(t, ErrReadTimeout, devErr.Code)
	assert.Equal(t, describeStatus(ErrReadTimeout), devErr.Message)

	assert.Equal(t, 1, drv.stops)
	assert.Equal(t, 1, drv.clears)
	assert.Equal(t, 0, drv.Open())
}

func TestChannel_ReadErrorWinsOverTeardownError(t *testing.T) {
	drv := &scriptedDriver{Mock: NewMock(nil), readCode: ErrDeviceIO, stopCode: ErrTaskNotRunning}
	ch := newTestChannel(t, drv, "Dev1/ai0")

	_, err := ch.Read(Voltage)
	var devErr *DeviceError
	require.True(t, errors.As(err, &devErr))
	assert.Equal(t, ErrDeviceIO, devErr.Code)
	assert.Equal(t, 1, drv.clears, "clear must run even when stop fails")
}

func TestChannel_TeardownErrorAfterSuccessfulRead(t *testing.T) {
	drv := &scriptedDriver{Mock: NewMock(nil), clearCode: ErrInvalidTask}
	ch := newTestChannel(t, drv, "Dev1/ai0")

	burst, err := ch.Read(Voltage)
	assert.Empty(t, burst.Samples)

	var devErr *DeviceError
	require.True(t, errors.As(err, &devErr))
	assert.Equal(t, "ClearTask", devErr.Op)
}

func TestChannel_PartialReadIsTruncated(t *testing.T) {
	drv := &scriptedDriver{Mock: NewMock(nil), readCount: 3}
	ch := newTestChannel(t, drv, "Dev1/ai0:1")

	burst, err := ch.Read(Voltage)
	require.NoError(t, err)
	assert.Equal(t, 3, burst.PerChannel)
	assert.Len(t, burst.Samples, 6)
	assert.Len(t, burst.Segment(1), 3)
}

func TestChannel_InvalidChannelFailsConfigure(t *testing.T) {
	spec, err := ParseChannelSpec("Dev1/ai0")
	require.NoError(t, err)
	s := testSettings()
	s.VoltageMin, s.VoltageMax = 5, -5
	mock := NewMock(nil)
	ch, err := NewChannel(mock, spec, s)
	require.NoError(t, err)

	_, err = ch.Read(Voltage)
	var devErr *DeviceError
	require.True(t, errors.As(err, &devErr))
	assert.Equal(t, "CreateVoltageChannel", devErr.Op)
	assert.Equal(t, ErrInvalidChannel, devErr.Code)
	assert.Equal(t, 0, mock.Open())
}

func TestChannel_SequentialReadsNeverOverlap(t *testing.T) {
	mock := NewMock(nil)
	ch := newTestChannel(t, mock, "Dev1/ai0:3")

	maxOpen := 0
	mock.OnRead(func(n int, mode Mode) {
		maxOpen = max(maxOpen, mock.Open())
	})
	for range 5 {
		_, err := ch.Read(Voltage)
		require.NoError(t, err)
		_, err = ch.Read(Current)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, maxOpen)
	assert.Equal(t, 10, mock.Reads())
}
