package daq

import (
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

const (
	ads1115PointerConv   = 0x00
	ads1115PointerConfig = 0x01
	ads1115Channels      = 4
)

// ads1115FullScale lists the programmable gain full-scale ranges (V), indexed by PGA bits.
var ads1115FullScale = []float64{6.144, 4.096, 2.048, 1.024, 0.512, 0.256}

// ADS1115 drives a TI ADS1115 16-bit ADC over I²C. Bursts are clocked in
// software: every scan converts each channel in single-shot mode. Current
// channels measure the voltage across the shunt resistor.
type ADS1115 struct {
	taskTable

	busName  string
	addr     uint16
	dataRate int

	mu  sync.Mutex
	bus i2c.BusCloser
	dev *i2c.Dev
}

// Ensure ADS1115 implements Driver.
var _ Driver = (*ADS1115)(nil)

// NewADS1115 creates a driver for the ADC at addr on the named I²C bus.
// The bus is opened by ResetDevice.
func NewADS1115(bus string, addr uint16, dataRate int) *ADS1115 {
	return &ADS1115{busName: bus, addr: addr, dataRate: dataRate}
}

// attach uses an already opened bus.
func (d *ADS1115) attach(bus i2c.BusCloser) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bus = bus
	d.dev = &i2c.Dev{Addr: d.addr, Bus: bus}
}

// Close releases the I²C bus.
func (d *ADS1115) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.bus == nil {
		return nil
	}
	err := d.bus.Close()
	d.bus = nil
	d.dev = nil
	return err
}

// ResetDevice initializes the host drivers and opens the bus if needed.
func (d *ADS1115) ResetDevice(device string) Status {
	if device == "" {
		return ErrDeviceNotFound
	}
	d.clearAll()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.bus != nil {
		return StatusOK
	}
	if _, err := host.Init(); err != nil {
		log.Printf("host init: %v", err)
		return ErrDeviceNotFound
	}
	bus, err := i2creg.Open(d.busName)
	if err != nil {
		log.Printf("open i2c %s: %v", d.busName, err)
		return ErrDeviceNotFound
	}
	d.bus = bus
	d.dev = &i2c.Dev{Addr: d.addr, Bus: bus}
	return StatusOK
}

func (d *ADS1115) CreateTask(name string) (TaskHandle, Status) {
	return d.create(), StatusOK
}

func (d *ADS1115) CreateVoltageChannel(task TaskHandle, physical string, min, max float64) Status {
	if !ads1115ValidChannels(physical) {
		return ErrInvalidChannel
	}
	return d.addChannel(task, physical, Voltage, min, max, 0)
}

func (d *ADS1115) CreateCurrentChannel(task TaskHandle, physical string, min, max, shunt float64) Status {
	if !ads1115ValidChannels(physical) {
		return ErrInvalidChannel
	}
	return d.addChannel(task, physical, Current, min, max, shunt)
}

func (d *ADS1115) ConfigureClockTiming(task TaskHandle, rate float64, edge Edge, mode SampleMode, samplesPerChannel uint64) Status {
	return d.configureTiming(task, rate, mode, samplesPerChannel)
}

func (d *ADS1115) StartTask(task TaskHandle) Status {
	d.mu.Lock()
	connected := d.dev != nil
	d.mu.Unlock()
	if !connected {
		return ErrDeviceNotFound
	}
	return d.start(task)
}

// ReadAnalog converts samplesPerChannel scans. When the timeout expires
// after at least one scan, the scans done so far are returned.
func (d *ADS1115) ReadAnalog(task TaskHandle, samplesPerChannel int, timeout time.Duration, layout Layout, buf []float64) (int, Status) {
	cfg, code := d.readableTask(task, samplesPerChannel, buf)
	if code != StatusOK {
		return 0, code
	}

	fullScale := cfg.max
	if cfg.mode == Current {
		fullScale = cfg.max * cfg.shunt
	}
	pga := ads1115PGA(math.Max(math.Abs(cfg.min), math.Abs(fullScale)))
	conversion := d.conversionTime()
	channels := cfg.spec.Count()

	// The ADC cannot convert faster than its data rate
	period := time.Duration(float64(time.Second) / cfg.rate)
	if minPeriod := conversion * time.Duration(channels); period < minPeriod {
		period = minPeriod
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.dev == nil {
		return 0, ErrDeviceNotFound
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for s := range samplesPerChannel {
		if !deadline.IsZero() && time.Now().After(deadline) {
			if s == 0 {
				return 0, ErrReadTimeout
			}
			return s, StatusOK
		}

		scanStart := time.Now()
		for c := range channels {
			v, err := d.convert(cfg.spec.First()+c, pga, conversion)
			if err != nil {
				log.Printf("ads1115 channel %d: %v", cfg.spec.First()+c, err)
				return 0, ErrDeviceIO
			}
			if cfg.mode == Current {
				v /= cfg.shunt
			}
			if layout == GroupByScan {
				buf[s*channels+c] = v
			} else {
				buf[c*samplesPerChannel+s] = v
			}
		}
		if s < samplesPerChannel-1 {
			time.Sleep(period - time.Since(scanStart))
		}
	}

	return samplesPerChannel, StatusOK
}

func (d *ADS1115) StopTask(task TaskHandle) Status {
	return d.stop(task)
}

func (d *ADS1115) ClearTask(task TaskHandle) Status {
	return d.clear(task)
}

func (d *ADS1115) ErrorString(code Status) string {
	return describeStatus(code)
}

// convert runs one single-shot conversion and returns volts. Caller holds d.mu.
func (d *ADS1115) convert(channel int, pga byte, wait time.Duration) (float64, error) {
	msb, lsb, err := ads1115Config(channel, pga, d.dataRate)
	if err != nil {
		return 0, err
	}
	if err := d.dev.Tx([]byte{ads1115PointerConfig, msb, lsb}, nil); err != nil {
		return 0, fmt.Errorf("write config: %w", err)
	}

	time.Sleep(wait)

	readBuf := make([]byte, 2)
	if err := d.dev.Tx([]byte{ads1115PointerConv}, readBuf); err != nil {
		return 0, fmt.Errorf("read conv: %w", err)
	}
	raw := int16(readBuf[0])<<8 | int16(readBuf[1])
	return float64(raw) * ads1115FullScale[pga] / 32768.0, nil
}

// conversionTime returns the single-shot conversion time for the data rate.
func (d *ADS1115) conversionTime() time.Duration {
	rate := d.dataRate
	if rate <= 0 {
		rate = 128
	}
	return time.Second/time.Duration(rate) + 100*time.Microsecond
}

// ads1115ValidChannels reports whether physical only uses inputs AIN0..AIN3.
func ads1115ValidChannels(physical string) bool {
	spec, err := ParseChannelSpec(physical)
	if err != nil {
		return false
	}
	return spec.First() >= 0 && spec.First()+spec.Count() <= ads1115Channels
}

// ads1115PGA returns the PGA bits of the smallest range covering fullScale.
func ads1115PGA(fullScale float64) byte {
	pga := byte(0)
	for i, fs := range ads1115FullScale {
		if fs >= fullScale {
			pga = byte(i)
		}
	}
	return pga
}

// ads1115Config builds the single-shot config register for a single-ended input.
func ads1115Config(channel int, pga byte, dataRate int) (byte, byte, error) {
	if channel < 0 || channel >= ads1115Channels {
		return 0, 0, fmt.Errorf("invalid channel %d", channel)
	}
	mux := byte(0x4 + channel) // AINx vs GND

	var dr byte
	switch dataRate {
	case 8:
		dr = 0x0
	case 16:
		dr = 0x1
	case 32:
		dr = 0x2
	case 64:
		dr = 0x3
	case 128:
		dr = 0x4
	case 250:
		dr = 0x5
	case 475:
		dr = 0x6
	case 860:
		dr = 0x7
	default:
		dr = 0x4
	}

	var config uint16 = 0x8000 // OS = 1 (start single conversion)
	config |= uint16(mux) << 12
	config |= uint16(pga&0x7) << 9
	config |= 1 << 8 // single-shot mode
	config |= uint16(dr) << 5
	config |= 0x3 // comparator disabled
	return byte(config >> 8), byte(config & 0xFF), nil
}
