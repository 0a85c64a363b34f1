package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/itohio/godaq/pkg/acquisition"
	"github.com/itohio/godaq/pkg/config"
	"github.com/itohio/godaq/pkg/daq"
	"github.com/itohio/godaq/pkg/publish"
	"github.com/itohio/godaq/pkg/record"
	"github.com/itohio/godaq/pkg/view"
)

// device is an opened driver plus the channel group read from it.
type device struct {
	driver  daq.Driver
	channel *daq.Channel
	close   func() error
}

func (d *device) Close() error {
	if d.close == nil {
		return nil
	}
	return d.close()
}

// openDriver creates the driver selected by cfg.Device.Driver.
func openDriver(cfg *config.Config) (daq.Driver, func() error, error) {
	switch cfg.Device.Driver {
	case config.DriverMock:
		log.Printf("Using mocked device")
		return daq.NewMock(&cfg.Mock), nil, nil
	case config.DriverSerial:
		drv := daq.NewSerial(cfg.Serial.Port, cfg.Serial.BaudRate)
		if err := drv.Connect(); err != nil {
			return nil, nil, err
		}
		log.Printf("Connected to serial port: %s", cfg.Serial.Port)
		return drv, drv.Close, nil
	case config.DriverADS1115:
		drv := daq.NewADS1115(cfg.I2C.Bus, cfg.I2C.Address, cfg.I2C.DataRate)
		log.Printf("Using ADS1115 at 0x%02x on I2C bus %s", cfg.I2C.Address, cfg.I2C.Bus)
		return drv, drv.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown driver %q", cfg.Device.Driver)
	}
}

// settings converts the acquisition section into burst settings.
func settings(cfg *config.Config) daq.Settings {
	a := cfg.Acquisition
	return daq.Settings{
		SamplingFrequency: a.SamplingFrequency,
		SamplesPerChannel: a.MaxNumSamples,
		Timeout:           a.ReadTimeout,
		VoltageMin:        a.VoltageRange.Min,
		VoltageMax:        a.VoltageRange.Max,
		CurrentMin:        a.CurrentRange.Min,
		CurrentMax:        a.CurrentRange.Max,
		ShuntResistance:   a.ShuntResistance,
	}
}

// openDevice opens the driver, parses the channel spec and resets the device.
func openDevice(cfg *config.Config) (*device, error) {
	spec, err := daq.ParseChannelSpec(cfg.Device.Channels)
	if err != nil {
		return nil, err
	}

	drv, closeFn, err := openDriver(cfg)
	if err != nil {
		return nil, err
	}
	dev := &device{driver: drv, close: closeFn}

	ch, err := daq.NewChannel(drv, spec, settings(cfg))
	if err != nil {
		dev.Close()
		return nil, err
	}
	dev.channel = ch

	log.Printf("Using device %s and %d channel(s): %v", spec.Device(), spec.Count(), spec.Names())
	if err := ch.Reset(cfg.Device.ResetSettle); err != nil {
		dev.Close()
		return nil, fmt.Errorf("failed to reset %s: %w", spec.Device(), err)
	}
	return dev, nil
}

// sinks builds the persistence chain writing into dir.
func sinks(cfg *config.Config, dir string) record.Sink {
	out := record.Sinks{record.CSV{Dir: dir, WriteRaw: cfg.Output.WriteRaw}}
	if cfg.Output.Plot {
		out = append(out, record.NewPlot(dir))
	}
	return out
}

// views builds the non-GUI live views enabled in cfg.
func views(cfg *config.Config, names []string) view.Multi {
	var vs view.Multi
	if cfg.Live.Console {
		vs = append(vs, view.NewConsole(os.Stdout))
	}
	if cfg.Live.MQTT.Server != "" {
		m, err := publish.NewMQTT(cfg.Live.MQTT, names)
		if err != nil {
			log.Printf("MQTT live view disabled: %v", err)
		} else {
			vs = append(vs, m)
		}
	}
	return vs
}

// runSession runs one acquisition session on dev until ctx is cancelled or
// acquisition fails, then writes the output. When the configured output
// directory cannot be written, the session is written once more into the
// OS temp directory.
func runSession(ctx context.Context, cfg *config.Config, dev *device, extra ...view.View) error {
	loop := acquisition.New(dev.channel, sinks(cfg, cfg.Output.Dir), acquisition.Options{
		Label:          cfg.Output.Label,
		CycleDelay:     cfg.Acquisition.CycleDelay,
		BaselineWindow: cfg.Baseline.Window,
		LogEvery:       cfg.Acquisition.LogEvery,
	})

	vs := views(cfg, dev.channel.Spec().Names())
	defer vs.Close()
	for _, v := range extra {
		loop.OnUpdate(v)
	}
	if len(vs) > 0 {
		loop.OnUpdate(vs)
	}

	err := loop.Run(ctx)

	var ioErr *record.IOError
	if errors.As(err, &ioErr) {
		if s, ok := loop.Session(); ok {
			tmp := os.TempDir()
			log.Printf("Failed to write %s, retrying in %s", ioErr.Path, tmp)
			if retryErr := sinks(cfg, tmp).Write(s); retryErr != nil {
				return errors.Join(err, retryErr)
			}
			log.Printf("Session written to %s", record.CSV{Dir: tmp}.Path(s.Label))
			return acquisitionError(err)
		}
	}
	return err
}

// acquisitionError strips persistence errors from a loop result.
func acquisitionError(err error) error {
	var ioErr *record.IOError
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		if errors.As(err, &ioErr) {
			return nil
		}
		return err
	}
	var errs []error
	for _, e := range joined.Unwrap() {
		if !errors.As(e, &ioErr) {
			errs = append(errs, e)
		}
	}
	return errors.Join(errs...)
}
