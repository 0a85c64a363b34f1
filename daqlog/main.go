package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/godaq/pkg/config"
	"github.com/itohio/godaq/pkg/daq"
	"github.com/itohio/godaq/pkg/scope"
	"github.com/itohio/godaq/pkg/view"
)

func main() {
	var (
		configFlag   = flag.String("config", "config.yaml", "Configuration file path")
		driverFlag   = flag.String("driver", "", "Driver override (mock, serial, ads1115)")
		channelsFlag = flag.String("channels", "", "Channel range override (e.g., Dev1/ai0:3)")
		portFlag     = flag.String("port", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		labelFlag    = flag.String("label", "", "Output file label override")
		outFlag      = flag.String("out", "", "Output directory override")
		mqttFlag     = flag.String("mqtt", "", "MQTT broker URL for live readings (e.g., tcp://localhost:1883)")
		headlessFlag = flag.Bool("headless", false, "Run without the GUI until SIGINT")
	)
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *driverFlag != "" {
		cfg.Device.Driver = *driverFlag
	}
	if *channelsFlag != "" {
		cfg.Device.Channels = *channelsFlag
	}
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}
	if *labelFlag != "" {
		cfg.Output.Label = *labelFlag
	}
	if *outFlag != "" {
		cfg.Output.Dir = *outFlag
	}
	if *mqttFlag != "" {
		cfg.Live.MQTT.Server = *mqttFlag
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if *headlessFlag {
		cfg.Live.Console = true
		if err := runHeadless(cfg); err != nil {
			log.Fatalf("Session failed: %v", err)
		}
		return
	}

	runGUI(cfg, *configFlag)
}

// runHeadless acquires until SIGINT or SIGTERM and writes the session.
func runHeadless(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dev, err := openDevice(cfg)
	if err != nil {
		return err
	}
	defer dev.Close()

	log.Printf("Press Ctrl+C to stop")
	return runSession(ctx, cfg, dev)
}

// appState holds the GUI state.
type appState struct {
	cfg        *config.Config
	configPath string
	window     fyne.Window
	scope      *scope.ScopeWidget
	startBtn   *widget.Button
	stopBtn    *widget.Button

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{} // Closed when the running session has been written
}

func runGUI(cfg *config.Config, configPath string) {
	application := app.NewWithID("com.itohio.godaq")

	window := application.NewWindow("DAQ Logger")
	window.Resize(fyne.NewSize(1200, 800))
	window.CenterOnScreen()

	state := &appState{
		cfg:        cfg,
		configPath: configPath,
		window:     window,
	}
	state.scope = scope.New(&cfg.Live, channelNames(cfg))

	// SIGINT stops the session the same way the Stop button does
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-sigCtx.Done()
		state.stopSession()
		fyne.Do(application.Quit)
	}()

	window.SetCloseIntercept(func() {
		go func() {
			state.stopSession()
			fyne.Do(window.Close)
		}()
	})

	window.SetContent(container.NewBorder(
		createToolbar(state),
		nil,
		nil,
		nil,
		state.scope,
	))
	window.ShowAndRun()
}

func channelNames(cfg *config.Config) []string {
	spec, err := daq.ParseChannelSpec(cfg.Device.Channels)
	if err != nil {
		return nil
	}
	return spec.Names()
}

// createToolbar creates the application toolbar with Start, Stop, Clear and Settings buttons.
func createToolbar(state *appState) fyne.CanvasObject {
	state.startBtn = widget.NewButtonWithIcon("", theme.MediaPlayIcon(), func() {
		state.startSession()
	})
	state.stopBtn = widget.NewButtonWithIcon("", theme.MediaStopIcon(), func() {
		go state.stopSession()
	})
	state.stopBtn.Disable()

	clearBtn := widget.NewButtonWithIcon("", theme.DeleteIcon(), func() {
		state.scope.Clear()
	})
	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showSettingsDialog(state)
	})

	return container.NewBorder(
		nil,
		nil,
		container.NewHBox(state.startBtn, state.stopBtn, clearBtn),
		container.NewHBox(settingsBtn),
		nil,
	)
}

// startSession runs a session in the background. The device is opened and
// reset on the session goroutine, so the UI stays responsive while the
// port opens and the device settles. Must be called on the UI goroutine.
func (s *appState) startSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	if err := s.cfg.Validate(); err != nil {
		dialog.ShowError(err, s.window)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.startBtn.Disable()
	s.stopBtn.Enable()

	// The session runs with a copy, settings changes apply to the next one
	cfg := *s.cfg
	go func() {
		defer close(done)
		err := s.run(ctx, &cfg)
		cancel()

		s.mu.Lock()
		s.cancel = nil
		s.done = nil
		s.mu.Unlock()

		fyne.Do(func() {
			s.startBtn.Enable()
			s.stopBtn.Disable()
			if err != nil {
				dialog.ShowError(err, s.window)
				return
			}
			dialog.ShowInformation("Session saved",
				fmt.Sprintf("%s written to %s", cfg.Output.Label, cfg.Output.Dir), s.window)
		})
	}()
}

// run opens the device and acquires until ctx is cancelled.
func (s *appState) run(ctx context.Context, cfg *config.Config) error {
	dev, err := openDevice(cfg)
	if err != nil {
		return fmt.Errorf("failed to open %s device: %w", cfg.Device.Driver, err)
	}
	defer dev.Close()

	s.scope.SetChannels(dev.channel.Spec().Names())
	return runSession(ctx, cfg, dev, view.NewThrottle(s.scope, cfg.Live.RefreshInterval))
}

// stopSession requests the running session to stop and waits until it has
// been written. It must not be called on the UI goroutine while a session
// is running.
func (s *appState) stopSession() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
