package daq

import "time"

// Status is a driver status code. Zero means success, any other value is an
// error that can be described with Driver.ErrorString.
type Status int32

// StatusOK is returned by driver operations that succeeded.
const StatusOK Status = 0

// Driver error codes shared by the drivers in this package.
const (
	ErrInvalidTask     Status = -200088
	ErrInvalidChannel  Status = -200170
	ErrInvalidTiming   Status = -200077
	ErrTaskNotRunning  Status = -200473
	ErrReadTimeout     Status = -200474
	ErrBufferTooSmall  Status = -200229
	ErrDeviceIO        Status = -209802
	ErrDeviceNotFound  Status = -200220
	ErrSimulatedFault  Status = -209800
	ErrProtocolMessage Status = -209801
)

var statusMessages = map[Status]string{
	StatusOK:           "no error",
	ErrInvalidTask:     "task specified is invalid or does not exist",
	ErrInvalidChannel:  "physical channel specified does not exist on this device",
	ErrInvalidTiming:   "requested timing value is not supported",
	ErrTaskNotRunning:  "task is not running",
	ErrReadTimeout:     "wait until done did not indicate all samples were acquired",
	ErrBufferTooSmall:  "read buffer is too small for the requested samples",
	ErrDeviceIO:        "device input/output failed",
	ErrDeviceNotFound:  "device identifier is invalid",
	ErrSimulatedFault:  "simulated device fault",
	ErrProtocolMessage: "unexpected message from device",
}

// describeStatus returns the shared description for code.
func describeStatus(code Status) string {
	if msg, ok := statusMessages[code]; ok {
		return msg
	}
	return "unknown error"
}

// TaskHandle identifies an acquisition task created by a Driver.
type TaskHandle uint32

// Edge selects the sample clock edge.
type Edge int

const (
	Rising Edge = iota
	Falling
)

// SampleMode selects finite or continuous acquisition.
type SampleMode int

const (
	FiniteSamples SampleMode = iota
	ContinuousSamples
)

// Layout selects how multi-channel samples are arranged in a read buffer.
type Layout int

const (
	// GroupByChannel stores all samples of channel 0, then channel 1, ...
	GroupByChannel Layout = iota
	// GroupByScan interleaves channels: one sample of every channel per scan.
	GroupByScan
)

// Driver is the vendor driver contract. Every operation returns a Status;
// a nonzero status is an error condition.
type Driver interface {
	ResetDevice(device string) Status
	CreateTask(name string) (TaskHandle, Status)
	// CreateVoltageChannel adds voltage channels (physical may be a range like "Dev1/ai0:3").
	CreateVoltageChannel(task TaskHandle, physical string, min, max float64) Status
	// CreateCurrentChannel adds current channels measured across a shunt resistor.
	CreateCurrentChannel(task TaskHandle, physical string, min, max, shunt float64) Status
	ConfigureClockTiming(task TaskHandle, rate float64, edge Edge, mode SampleMode, samplesPerChannel uint64) Status
	StartTask(task TaskHandle) Status
	// ReadAnalog fills buf and reports the number of samples read per channel.
	// The driver writes into buf only for the duration of the call.
	ReadAnalog(task TaskHandle, samplesPerChannel int, timeout time.Duration, layout Layout, buf []float64) (int, Status)
	StopTask(task TaskHandle) Status
	ClearTask(task TaskHandle) Status
	ErrorString(code Status) string
}
