package main

import (
	"fmt"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/gotacho/pkg/meter"
	"github.com/itohio/gotacho/pkg/tacho"
)

// showSettingsDialog displays a settings dialog with tabs for all configuration options.
func showSettingsDialog(state *appState) {
	tabs := container.NewAppTabs(
		createSerialTab(state),
		createEncoderTab(state),
		createMeasurementTab(state),
		createMockTab(state),
		createGPIOTab(state),
	)

	content := container.NewBorder(nil, nil, nil, nil, tabs)
	content.Resize(fyne.NewSize(600, 500))

	d := dialog.NewCustom("Settings", "Close", content, state.window)
	d.Resize(fyne.NewSize(600, 500))
	d.Show()
}

// saveConfig validates and writes the configuration, reporting failures in a dialog.
func saveConfig(state *appState) bool {
	if err := state.cfg.Validate(); err != nil {
		dialog.ShowError(fmt.Errorf("invalid settings: %w", err), state.window)
		return false
	}
	if err := state.cfg.Save(state.configPath); err != nil {
		dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
		return false
	}
	return true
}

// reconnect restarts the measurement chain if it is running, so that new
// settings take effect.
func reconnect(state *appState) {
	if state.device == nil || !state.device.IsConnected() {
		return
	}
	handleConnect(state) // disconnect
	handleConnect(state)
}

// createSerialTab creates the Serial configuration tab.
func createSerialTab(state *appState) *container.TabItem {
	// Get available serial ports
	ports, err := tacho.Ports()
	portOptions := []string{}
	portMap := make(map[string]string) // Map display name to actual port name

	if err == nil {
		for _, port := range ports {
			displayName := port.Name
			if port.Description != "" && port.Description != port.Name {
				displayName = fmt.Sprintf("%s (%s)", port.Name, port.Description)
			}
			portOptions = append(portOptions, displayName)
			portMap[displayName] = port.Name
		}
	}

	// Add current port if not in list
	currentPort := state.cfg.Serial.Port
	currentDisplay := currentPort
	found := false
	for _, opt := range portOptions {
		if portMap[opt] == currentPort {
			currentDisplay = opt
			found = true
			break
		}
	}
	if !found && currentPort != "" {
		portOptions = append(portOptions, currentPort)
		portMap[currentPort] = currentPort
	}

	portSelect := widget.NewSelect(portOptions, func(selected string) {
		// Selection handler - will be called on submit
	})
	if currentDisplay != "" {
		portSelect.SetSelected(currentDisplay)
	}

	baudEntry := widget.NewEntry()
	baudEntry.SetText(strconv.Itoa(state.cfg.Serial.Baud))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Serial Port", Widget: portSelect},
			{Text: "Baud Rate", Widget: baudEntry},
		},
		OnSubmit: func() {
			changed := false
			if portSelect.Selected != "" {
				selectedPort := portMap[portSelect.Selected]
				if selectedPort == "" {
					selectedPort = portSelect.Selected // Fallback to selected text
				}
				changed = state.cfg.Serial.Port != selectedPort
				state.cfg.Serial.Port = selectedPort
			}
			if baud, err := strconv.Atoi(baudEntry.Text); err == nil && baud > 0 {
				changed = changed || state.cfg.Serial.Baud != baud
				state.cfg.Serial.Baud = baud
			}
			if !saveConfig(state) {
				return
			}
			if changed && state.backend == backendSerial {
				reconnect(state)
			}
		},
	}

	return container.NewTabItem("Serial", form)
}

// createEncoderTab shows the encoder resolution the firmware is built with.
func createEncoderTab(state *appState) *container.TabItem {
	enc := state.cfg.Encoder
	form := widget.NewForm(
		widget.NewFormItem("Pulses per Revolution", widget.NewLabel(strconv.Itoa(enc.PulsesPerRevolution))),
		widget.NewFormItem("Edges per Pulse", widget.NewLabel(strconv.Itoa(enc.EdgesPerPulse))),
		widget.NewFormItem("Edges per Revolution", widget.NewLabel(strconv.Itoa(enc.EdgesPerRevolution()))),
		widget.NewFormItem("Report Period", widget.NewLabel(enc.TickPeriod.String())),
	)
	return container.NewTabItem("Encoder", form)
}

// createMeasurementTab creates the Measurement configuration tab.
func createMeasurementTab(state *appState) *container.TabItem {
	windowSecondsEntry := widget.NewEntry()
	windowSecondsEntry.SetText(fmt.Sprintf("%.1f", state.cfg.Measurement.WindowSeconds))

	averageSamplesEntry := widget.NewEntry()
	averageSamplesEntry.SetText(strconv.Itoa(state.cfg.Measurement.AverageSamples))

	stallTimeoutEntry := widget.NewEntry()
	stallTimeoutEntry.SetText(state.cfg.Measurement.StallTimeout.String())

	hysteresisEntry := widget.NewEntry()
	hysteresisEntry.SetText(fmt.Sprintf("%.3f", state.cfg.Measurement.ReversalHysteresis))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Window (seconds)", Widget: windowSecondsEntry},
			{Text: "Average Reports (0=disabled)", Widget: averageSamplesEntry},
			{Text: "Stall Timeout", Widget: stallTimeoutEntry},
			{Text: "Reversal Hysteresis (rev/s)", Widget: hysteresisEntry},
		},
		OnSubmit: func() {
			if ws, err := strconv.ParseFloat(windowSecondsEntry.Text, 64); err == nil {
				state.cfg.Measurement.WindowSeconds = ws
			}
			if avg, err := strconv.Atoi(averageSamplesEntry.Text); err == nil {
				state.cfg.Measurement.AverageSamples = avg
			}
			if st, err := time.ParseDuration(stallTimeoutEntry.Text); err == nil {
				state.cfg.Measurement.StallTimeout = st
			}
			if h, err := strconv.ParseFloat(hysteresisEntry.Text, 64); err == nil {
				state.cfg.Measurement.ReversalHysteresis = h
			}
			if !saveConfig(state) {
				return
			}

			// Recreate speed meter with new config
			connected := state.device != nil && state.device.IsConnected()
			if connected {
				handleConnect(state) // disconnect
			}
			state.speedMeter = meter.New(state.cfg)
			attachScope(state)
			if connected {
				handleConnect(state)
			}
		},
	}

	return container.NewTabItem("Measurement", form)
}

// createMockTab creates the simulated motor configuration tab.
func createMockTab(state *appState) *container.TabItem {
	speedEntry := widget.NewEntry()
	speedEntry.SetText(fmt.Sprintf("%.2f", state.cfg.Mock.Speed))

	accelerationEntry := widget.NewEntry()
	accelerationEntry.SetText(fmt.Sprintf("%.2f", state.cfg.Mock.Acceleration))

	bounceRateEntry := widget.NewEntry()
	bounceRateEntry.SetText(fmt.Sprintf("%.4f", state.cfg.Mock.BounceRate))

	missRateEntry := widget.NewEntry()
	missRateEntry.SetText(fmt.Sprintf("%.4f", state.cfg.Mock.MissRate))

	tickPeriodEntry := widget.NewEntry()
	tickPeriodEntry.SetText(state.cfg.Mock.TickPeriod.String())

	seedEntry := widget.NewEntry()
	seedEntry.SetText(strconv.FormatInt(state.cfg.Mock.Seed, 10))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Peak Speed (rev/s)", Widget: speedEntry},
			{Text: "Acceleration (rev/s², 0=constant)", Widget: accelerationEntry},
			{Text: "Bounce Rate", Widget: bounceRateEntry},
			{Text: "Miss Rate", Widget: missRateEntry},
			{Text: "Tick Period", Widget: tickPeriodEntry},
			{Text: "Seed", Widget: seedEntry},
		},
		OnSubmit: func() {
			if v, err := strconv.ParseFloat(speedEntry.Text, 64); err == nil {
				state.cfg.Mock.Speed = v
			}
			if v, err := strconv.ParseFloat(accelerationEntry.Text, 64); err == nil {
				state.cfg.Mock.Acceleration = v
			}
			if v, err := strconv.ParseFloat(bounceRateEntry.Text, 64); err == nil {
				state.cfg.Mock.BounceRate = v
			}
			if v, err := strconv.ParseFloat(missRateEntry.Text, 64); err == nil {
				state.cfg.Mock.MissRate = v
			}
			if v, err := time.ParseDuration(tickPeriodEntry.Text); err == nil {
				state.cfg.Mock.TickPeriod = v
			}
			if v, err := strconv.ParseInt(seedEntry.Text, 10, 64); err == nil {
				state.cfg.Mock.Seed = v
			}
			if !saveConfig(state) {
				return
			}
			if state.backend == backendMock {
				reconnect(state)
			}
		},
	}

	return container.NewTabItem("Mock", form)
}

// createGPIOTab creates the host GPIO pin configuration tab.
func createGPIOTab(state *appState) *container.TabItem {
	pinAEntry := widget.NewEntry()
	pinAEntry.SetText(state.cfg.GPIO.PinA)

	pinBEntry := widget.NewEntry()
	pinBEntry.SetText(state.cfg.GPIO.PinB)

	ledEntry := widget.NewEntry()
	ledEntry.SetText(state.cfg.GPIO.LED)
	ledEntry.SetPlaceHolder("optional")

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Encoder A", Widget: pinAEntry},
			{Text: "Encoder B", Widget: pinBEntry},
			{Text: "LED", Widget: ledEntry},
		},
		OnSubmit: func() {
			state.cfg.GPIO.PinA = pinAEntry.Text
			state.cfg.GPIO.PinB = pinBEntry.Text
			state.cfg.GPIO.LED = ledEntry.Text
			if !saveConfig(state) {
				return
			}
			if state.backend == backendGPIO {
				reconnect(state)
			}
		},
	}

	return container.NewTabItem("GPIO", form)
}
