package daq

import "fmt"

// DeviceError is returned when a driver operation reports a nonzero status.
type DeviceError struct {
	Op      string // Driver operation, e.g. "ReadAnalog"
	Code    Status
	Message string // Driver description of Code
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s failed with error %d: %s", e.Op, e.Code, e.Message)
}

// check converts a driver status into a *DeviceError, or nil on success.
func check(drv Driver, op string, code Status) error {
	if code == StatusOK {
		return nil
	}
	return &DeviceError{Op: op, Code: code, Message: drv.ErrorString(code)}
}
