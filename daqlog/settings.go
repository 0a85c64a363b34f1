package main

import (
	"fmt"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/godaq/pkg/config"
	"github.com/itohio/godaq/pkg/daq"
)

// showSettingsDialog displays a settings dialog with tabs for all configuration options.
// Changes apply to the next session.
func showSettingsDialog(state *appState) {
	tabs := container.NewAppTabs(
		createDeviceTab(state),
		createAcquisitionTab(state),
		createOutputTab(state),
		createLiveTab(state),
		createMockTab(state),
	)

	content := container.NewBorder(nil, nil, nil, nil, tabs)
	content.Resize(fyne.NewSize(600, 500))

	d := dialog.NewCustom("Settings", "Close", content, state.window)
	d.Resize(fyne.NewSize(600, 500))
	d.Show()
}

// save validates and writes the configuration, reporting failures in a dialog.
func (s *appState) save() {
	if err := s.cfg.Validate(); err != nil {
		dialog.ShowError(err, s.window)
		return
	}
	if err := s.cfg.Save(s.configPath); err != nil {
		dialog.ShowError(fmt.Errorf("failed to save config: %w", err), s.window)
	}
}

// portOptions lists the available serial ports, keeping current selectable
// even when it is not plugged in.
func portOptions(current string) ([]string, map[string]string, string) {
	var options []string
	names := make(map[string]string) // Display name to port name

	if ports, err := daq.Ports(); err == nil {
		for _, port := range ports {
			display := port.Name
			if port.Description != "" && port.Description != port.Name {
				display = fmt.Sprintf("%s (%s)", port.Name, port.Description)
			}
			options = append(options, display)
			names[display] = port.Name
		}
	}

	for _, opt := range options {
		if names[opt] == current {
			return options, names, opt
		}
	}
	if current != "" {
		options = append(options, current)
		names[current] = current
	}
	return options, names, current
}

// createDeviceTab creates the Device configuration tab.
func createDeviceTab(state *appState) *container.TabItem {
	driverSelect := widget.NewSelect([]string{config.DriverMock, config.DriverSerial, config.DriverADS1115}, nil)
	driverSelect.SetSelected(state.cfg.Device.Driver)

	channelsEntry := widget.NewEntry()
	channelsEntry.SetText(state.cfg.Device.Channels)

	options, names, current := portOptions(state.cfg.Serial.Port)
	portSelect := widget.NewSelect(options, nil)
	if current != "" {
		portSelect.SetSelected(current)
	}

	busEntry := widget.NewEntry()
	busEntry.SetText(state.cfg.I2C.Bus)

	addressEntry := widget.NewEntry()
	addressEntry.SetText(fmt.Sprintf("0x%02x", state.cfg.I2C.Address))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Driver", Widget: driverSelect},
			{Text: "Channels", Widget: channelsEntry, HintText: "e.g. Dev1/ai0:3"},
			{Text: "Serial Port", Widget: portSelect},
			{Text: "I2C Bus", Widget: busEntry},
			{Text: "I2C Address", Widget: addressEntry},
		},
		OnSubmit: func() {
			if _, err := daq.ParseChannelSpec(channelsEntry.Text); err != nil {
				dialog.ShowError(err, state.window)
				return
			}
			state.cfg.Device.Driver = driverSelect.Selected
			state.cfg.Device.Channels = channelsEntry.Text

			if portSelect.Selected != "" {
				port := names[portSelect.Selected]
				if port == "" {
					port = portSelect.Selected
				}
				state.cfg.Serial.Port = port
			}
			state.cfg.I2C.Bus = busEntry.Text
			if addr, err := strconv.ParseUint(addressEntry.Text, 0, 16); err == nil {
				state.cfg.I2C.Address = uint16(addr)
			}
			state.save()
		},
	}

	return container.NewTabItem("Device", form)
}

// createAcquisitionTab creates the Acquisition configuration tab.
func createAcquisitionTab(state *appState) *container.TabItem {
	a := &state.cfg.Acquisition

	rateEntry := widget.NewEntry()
	rateEntry.SetText(strconv.FormatFloat(a.SamplingFrequency, 'g', -1, 64))

	samplesEntry := widget.NewEntry()
	samplesEntry.SetText(strconv.Itoa(a.MaxNumSamples))

	timeoutEntry := widget.NewEntry()
	timeoutEntry.SetText(a.ReadTimeout.String())

	delayEntry := widget.NewEntry()
	delayEntry.SetText(a.CycleDelay.String())

	vMinEntry := widget.NewEntry()
	vMinEntry.SetText(fmt.Sprintf("%.3f", a.VoltageRange.Min))
	vMaxEntry := widget.NewEntry()
	vMaxEntry.SetText(fmt.Sprintf("%.3f", a.VoltageRange.Max))

	iMinEntry := widget.NewEntry()
	iMinEntry.SetText(fmt.Sprintf("%.4f", a.CurrentRange.Min))
	iMaxEntry := widget.NewEntry()
	iMaxEntry.SetText(fmt.Sprintf("%.4f", a.CurrentRange.Max))

	shuntEntry := widget.NewEntry()
	shuntEntry.SetText(fmt.Sprintf("%.1f", a.ShuntResistance))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Sampling Frequency (Hz)", Widget: rateEntry},
			{Text: "Samples per Channel", Widget: samplesEntry},
			{Text: "Read Timeout", Widget: timeoutEntry},
			{Text: "Cycle Delay", Widget: delayEntry},
			{Text: "Voltage Min (V)", Widget: vMinEntry},
			{Text: "Voltage Max (V)", Widget: vMaxEntry},
			{Text: "Current Min (A)", Widget: iMinEntry},
			{Text: "Current Max (A)", Widget: iMaxEntry},
			{Text: "Shunt (Ω)", Widget: shuntEntry},
		},
		OnSubmit: func() {
			if f, err := strconv.ParseFloat(rateEntry.Text, 64); err == nil {
				a.SamplingFrequency = f
			}
			if n, err := strconv.Atoi(samplesEntry.Text); err == nil {
				a.MaxNumSamples = n
			}
			if d, err := time.ParseDuration(timeoutEntry.Text); err == nil {
				a.ReadTimeout = d
			}
			if d, err := time.ParseDuration(delayEntry.Text); err == nil {
				a.CycleDelay = d
			}
			if v, err := strconv.ParseFloat(vMinEntry.Text, 64); err == nil {
				a.VoltageRange.Min = v
			}
			if v, err := strconv.ParseFloat(vMaxEntry.Text, 64); err == nil {
				a.VoltageRange.Max = v
			}
			if v, err := strconv.ParseFloat(iMinEntry.Text, 64); err == nil {
				a.CurrentRange.Min = v
			}
			if v, err := strconv.ParseFloat(iMaxEntry.Text, 64); err == nil {
				a.CurrentRange.Max = v
			}
			if r, err := strconv.ParseFloat(shuntEntry.Text, 64); err == nil {
				a.ShuntResistance = r
			}
			state.save()
		},
	}

	return container.NewTabItem("Acquisition", form)
}

// createOutputTab creates the Output and Baseline configuration tab.
func createOutputTab(state *appState) *container.TabItem {
	dirEntry := widget.NewEntry()
	dirEntry.SetText(state.cfg.Output.Dir)

	labelEntry := widget.NewEntry()
	labelEntry.SetText(state.cfg.Output.Label)

	windowEntry := widget.NewEntry()
	windowEntry.SetText(strconv.Itoa(state.cfg.Baseline.Window))

	rawCheck := widget.NewCheck("", nil)
	rawCheck.SetChecked(state.cfg.Output.WriteRaw)

	plotCheck := widget.NewCheck("", nil)
	plotCheck.SetChecked(state.cfg.Output.Plot)

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Directory", Widget: dirEntry},
			{Text: "Label", Widget: labelEntry},
			{Text: "Baseline Rows", Widget: windowEntry},
			{Text: "Write Raw CSV", Widget: rawCheck},
			{Text: "Write Plot", Widget: plotCheck},
		},
		OnSubmit: func() {
			state.cfg.Output.Dir = dirEntry.Text
			state.cfg.Output.Label = labelEntry.Text
			if n, err := strconv.Atoi(windowEntry.Text); err == nil {
				state.cfg.Baseline.Window = n
			}
			state.cfg.Output.WriteRaw = rawCheck.Checked
			state.cfg.Output.Plot = plotCheck.Checked
			state.save()
		},
	}

	return container.NewTabItem("Output", form)
}

// createLiveTab creates the live view configuration tab.
func createLiveTab(state *appState) *container.TabItem {
	l := &state.cfg.Live

	pointsEntry := widget.NewEntry()
	pointsEntry.SetText(strconv.Itoa(l.MaxDisplayPoints))

	refreshEntry := widget.NewEntry()
	refreshEntry.SetText(l.RefreshInterval.String())

	consoleCheck := widget.NewCheck("", nil)
	consoleCheck.SetChecked(l.Console)

	serverEntry := widget.NewEntry()
	serverEntry.SetText(l.MQTT.Server)
	serverEntry.SetPlaceHolder("tcp://localhost:1883")

	topicEntry := widget.NewEntry()
	topicEntry.SetText(l.MQTT.Topic)

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Max Display Points", Widget: pointsEntry},
			{Text: "Refresh Interval", Widget: refreshEntry},
			{Text: "Console", Widget: consoleCheck},
			{Text: "MQTT Server", Widget: serverEntry},
			{Text: "MQTT Topic", Widget: topicEntry},
		},
		OnSubmit: func() {
			if n, err := strconv.Atoi(pointsEntry.Text); err == nil {
				l.MaxDisplayPoints = n
			}
			if d, err := time.ParseDuration(refreshEntry.Text); err == nil {
				l.RefreshInterval = d
			}
			l.Console = consoleCheck.Checked
			l.MQTT.Server = serverEntry.Text
			if topicEntry.Text != "" {
				l.MQTT.Topic = topicEntry.Text
			}
			state.save()
		},
	}

	return container.NewTabItem("Live", form)
}

// createMockTab creates the Mock device configuration tab.
func createMockTab(state *appState) *container.TabItem {
	m := &state.cfg.Mock

	biasEntry := widget.NewEntry()
	biasEntry.SetText(fmt.Sprintf("%.3f", m.Bias))

	noiseLevelEntry := widget.NewEntry()
	noiseLevelEntry.SetText(fmt.Sprintf("%.6f", m.NoiseLevel))

	amplitudeEntry := widget.NewEntry()
	amplitudeEntry.SetText(fmt.Sprintf("%.3f", m.Amplitude))

	periodEntry := widget.NewEntry()
	periodEntry.SetText(m.Period.String())

	failAfterEntry := widget.NewEntry()
	failAfterEntry.SetText(strconv.Itoa(m.FailAfter))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Bias (V)", Widget: biasEntry},
			{Text: "Noise Level (V)", Widget: noiseLevelEntry},
			{Text: "Amplitude (V)", Widget: amplitudeEntry},
			{Text: "Period", Widget: periodEntry},
			{Text: "Fail After (0=never)", Widget: failAfterEntry},
		},
		OnSubmit: func() {
			if v, err := strconv.ParseFloat(biasEntry.Text, 64); err == nil {
				m.Bias = v
			}
			if v, err := strconv.ParseFloat(noiseLevelEntry.Text, 64); err == nil {
				m.NoiseLevel = v
			}
			if v, err := strconv.ParseFloat(amplitudeEntry.Text, 64); err == nil {
				m.Amplitude = v
			}
			if d, err := time.ParseDuration(periodEntry.Text); err == nil {
				m.Period = d
			}
			if n, err := strconv.Atoi(failAfterEntry.Text); err == nil {
				m.FailAfter = n
			}
			state.save()
		},
	}

	return container.NewTabItem("Mock", form)
}
