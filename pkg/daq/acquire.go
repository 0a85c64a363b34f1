package daq

import (
	"errors"
	"fmt"
	"log"
	"time"
)

// Settings describes how every burst is acquired.
type Settings struct {
	SamplingFrequency float64 // Hz
	SamplesPerChannel int
	Timeout           time.Duration
	VoltageMin        float64
	VoltageMax        float64
	CurrentMin        float64
	CurrentMax        float64
	ShuntResistance   float64 // Ohm
}

// Channel wraps one physical channel group and reads bursts from it.
// Each Read opens its own acquisition task and always stops and clears it
// before returning, so at most one task exists at a time.
type Channel struct {
	drv      Driver
	spec     ChannelSpec
	settings Settings
}

// NewChannel creates a Channel for spec using drv.
func NewChannel(drv Driver, spec ChannelSpec, settings Settings) (*Channel, error) {
	if settings.SamplesPerChannel < 1 {
		return nil, fmt.Errorf("samples per channel must be at least 1, got %d", settings.SamplesPerChannel)
	}
	if settings.SamplingFrequency <= 0 {
		return nil, fmt.Errorf("sampling frequency must be positive, got %g", settings.SamplingFrequency)
	}
	return &Channel{drv: drv, spec: spec, settings: settings}, nil
}

// Reset resets the device the channel belongs to and waits settle for it to
// come back.
func (c *Channel) Reset(settle time.Duration) error {
	if err := check(c.drv, "ResetDevice", c.drv.ResetDevice(c.spec.Device())); err != nil {
		return err
	}
	if settle > 0 {
		time.Sleep(settle)
	}
	return nil
}

// Spec returns the channel spec.
func (c *Channel) Spec() ChannelSpec { return c.spec }

// Channels returns the number of channels read per burst.
func (c *Channel) Channels() int { return c.spec.Count() }

// Read performs one finite, clock-timed acquisition and returns the burst.
// When the driver reports fewer samples than requested the burst is
// truncated to the recorded samples of each channel.
func (c *Channel) Read(mode Mode) (b Burst, err error) {
	task, code := c.drv.CreateTask("")
	if err := check(c.drv, "CreateTask", code); err != nil {
		return Burst{}, err
	}
	defer func() {
		// Teardown runs on every path. A read error takes precedence.
		stopErr := check(c.drv, "StopTask", c.drv.StopTask(task))
		clearErr := check(c.drv, "ClearTask", c.drv.ClearTask(task))
		teardownErr := errors.Join(stopErr, clearErr)
		if teardownErr == nil {
			return
		}
		if err != nil {
			log.Printf("Teardown after failed %s read: %v", mode, teardownErr)
			return
		}
		b, err = Burst{}, teardownErr
	}()

	if err := c.configure(task, mode); err != nil {
		return Burst{}, err
	}
	if err := check(c.drv, "StartTask", c.drv.StartTask(task)); err != nil {
		return Burst{}, err
	}

	n := c.Channels()
	perChannel := c.settings.SamplesPerChannel
	buf := make([]float64, perChannel*n)
	read, code := c.drv.ReadAnalog(task, perChannel, c.settings.Timeout, GroupByChannel, buf)
	if err := check(c.drv, "ReadAnalog", code); err != nil {
		return Burst{}, err
	}
	if read > perChannel {
		read = perChannel
	}

	return Burst{
		Mode:       mode,
		Channels:   n,
		PerChannel: max(read, 0),
		Samples:    truncate(buf, n, perChannel, read),
	}, nil
}

// configure adds the channels for mode and sets up the sample clock.
func (c *Channel) configure(task TaskHandle, mode Mode) error {
	s := c.settings
	switch mode {
	case Voltage:
		if err := check(c.drv, "CreateVoltageChannel",
			c.drv.CreateVoltageChannel(task, c.spec.String(), s.VoltageMin, s.VoltageMax)); err != nil {
			return err
		}
	case Current:
		if err := check(c.drv, "CreateCurrentChannel",
			c.drv.CreateCurrentChannel(task, c.spec.String(), s.CurrentMin, s.CurrentMax, s.ShuntResistance)); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported mode %d", mode)
	}

	return check(c.drv, "ConfigureClockTiming",
		c.drv.ConfigureClockTiming(task, s.SamplingFrequency, Rising, FiniteSamples, uint64(s.SamplesPerChannel)))
}
