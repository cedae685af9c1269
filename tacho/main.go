package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/gotacho/pkg/config"
	"github.com/itohio/gotacho/pkg/meter"
	"github.com/itohio/gotacho/pkg/sample"
	"github.com/itohio/gotacho/pkg/scope"
	"github.com/itohio/gotacho/pkg/tacho"
)

// Backend selects where reports come from.
type backend int

const (
	backendSerial backend = iota
	backendMock
	backendGPIO
)

func (b backend) String() string {
	switch b {
	case backendMock:
		return "mocked device"
	case backendGPIO:
		return "GPIO encoder"
	default:
		return "serial port"
	}
}

func main() {
	var (
		portFlag           = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		configFlag         = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag           = flag.Bool("mock", false, "Use simulated board and motor instead of serial port")
		gpioFlag           = flag.Bool("gpio", false, "Read the encoder from host GPIO pins (Linux)")
		headlessFlag       = flag.Bool("headless", false, "Log samples to the console instead of opening a window")
		averageSamplesFlag = flag.Int("average-samples", -1, "Number of reports to average (0 = disabled, overrides config)")
	)
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Override serial port if provided via command line
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}

	// Override average samples if provided via command line
	if *averageSamplesFlag >= 0 {
		cfg.Measurement.AverageSamples = *averageSamplesFlag
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	state := &appState{
		cfg:        cfg,
		configPath: *configFlag,
		speedMeter: meter.New(cfg),
		backend:    backendSerial,
	}
	switch {
	case *mockFlag:
		state.backend = backendMock
	case *gpioFlag:
		state.backend = backendGPIO
	}

	if *headlessFlag {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if err := runHeadless(ctx, state); err != nil {
			log.Fatalf("Headless run failed: %v", err)
		}
		return
	}

	// Create Fyne application
	application := app.NewWithID("com.itohio.gotacho")

	// Create main window
	window := application.NewWindow("Quadrature Tachometer")
	window.Resize(fyne.NewSize(1200, 800))
	window.CenterOnScreen()
	state.window = window

	// Create toolbar
	toolbar := createToolbar(state)

	// Create scope widget for graph display
	state.scopeWidget = scope.New(cfg)
	attachScope(state)

	// Create border layout with toolbar at top and scope widget as content
	content := container.NewBorder(
		toolbar,
		nil,
		nil,
		nil,
		state.scopeWidget,
	)

	window.SetContent(content)
	window.SetOnClosed(func() {
		closeMeasurementChain(state.chain)
	})
	window.ShowAndRun()
}

// measurementChain tracks the components of the measurement chain for graceful shutdown.
type measurementChain struct {
	device          tacho.Device
	statusGoroutine chan struct{} // Closed when status goroutine exits
	samplesStream   <-chan sample.Sample
	meterGoroutine  chan struct{} // Closed when meter goroutine exits
}

// appState holds the application state.
type appState struct {
	cfg         *config.Config
	configPath  string
	backend     backend
	device      tacho.Device
	speedMeter  *meter.Meter
	scopeWidget *scope.ScopeWidget
	window      fyne.Window
	connectBtn  *widget.Button
	status      *statusBar
	chain       *measurementChain // Current measurement chain (nil if not connected)

	// Throttling for scope updates
	throttle throttle
}

// createToolbar creates the application toolbar with Connect and Settings
// buttons on the left and the direction/count status on the right.
func createToolbar(state *appState) fyne.CanvasObject {
	// Connect button with icon
	connectBtn := widget.NewButtonWithIcon("", theme.LoginIcon(), func() {
		handleConnect(state)
	})
	state.connectBtn = connectBtn

	// Settings button with icon
	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showSettingsDialog(state)
	})

	state.status = newStatusBar()

	return container.NewBorder(
		nil, // top
		nil, // bottom
		container.NewHBox(connectBtn, settingsBtn), // left
		state.status.container,                     // right
		nil, // center (spacer)
	)
}

// newDevice creates the report source for the selected backend.
func newDevice(state *appState) tacho.Device {
	switch state.backend {
	case backendMock:
		return tacho.NewMock(&state.cfg.Mock)
	case backendGPIO:
		return tacho.NewGPIO(state.cfg.GPIO)
	default:
		return tacho.NewSerial(state.cfg.Serial.Port, state.cfg.Serial.Baud, tacho.DefaultBufferSize)
	}
}

// startChain connects the device and wires reports through the converters
// into the speed meter. Reports are teed: one branch feeds the status bar,
// the other the converter chain.
func startChain(state *appState, onReport func(tacho.Report)) (*measurementChain, error) {
	device := newDevice(state)
	if err := device.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", state.backend, err)
	}

	// Reset meter shutdown flag for new chain
	state.speedMeter.ResetShutdown()

	reports, forConverter := teeChannel(device.Reports())

	statusDone := make(chan struct{})
	meterDone := make(chan struct{})

	go func() {
		defer close(statusDone)
		for report := range reports {
			if onReport != nil {
				onReport(report)
			}
		}
	}()

	// Averaging replaces the base converter when enabled
	var samplesStream <-chan sample.Sample
	if state.cfg.Measurement.AverageSamples > 0 {
		samplesStream = sample.NewAveragingConverter(state.cfg, state.cfg.Measurement.AverageSamples, 500)(forConverter)
	} else {
		samplesStream = sample.NewConverter(state.cfg, 500)(forConverter)
	}

	go func() {
		defer close(meterDone)
		state.speedMeter.ProcessSamples(samplesStream)
	}()

	return &measurementChain{
		device:          device,
		statusGoroutine: statusDone,
		samplesStream:   samplesStream,
		meterGoroutine:  meterDone,
	}, nil
}

// closeMeasurementChain gracefully closes the measurement chain.
// Waits for all goroutines to finish and channels to drain.
func closeMeasurementChain(chain *measurementChain) {
	if chain == nil {
		return
	}

	// Close device - this will close the reports channel
	if chain.device != nil {
		if err := chain.device.Close(); err != nil {
			log.Printf("Failed to close device: %v", err)
		}
	}

	if chain.statusGoroutine != nil {
		<-chain.statusGoroutine
	}

	// The meter goroutine exits when samplesStream closes, which happens
	// once the converters drain
	if chain.meterGoroutine != nil {
		<-chain.meterGoroutine
	}
}

// attachScope registers the callback that pushes meter updates to the scope
// widget. Updates are throttled to ~60 FPS to keep the UI smooth.
func attachScope(state *appState) {
	state.speedMeter.OnUpdate(func(samples []sample.Sample, accelerations []float64, events []meter.Event) {
		if !state.throttle.allow(time.Now()) {
			return
		}
		// Scope widget handles downsampling internally, so pass full data
		UpdateWidgetOnMainThread(func() {
			state.scopeWidget.UpdateData(samples, accelerations, events)
		})
	})
}

// handleConnect handles the connect/disconnect button click.
func handleConnect(state *appState) {
	if state.device != nil && state.device.IsConnected() {
		closeMeasurementChain(state.chain)
		state.chain = nil
		state.device = nil
		state.connectBtn.SetIcon(theme.LoginIcon())
		state.status.reset()
		log.Printf("Disconnected from %s", state.backend)
		return
	}

	chain, err := startChain(state, state.status.update)
	if err != nil {
		dialog.ShowError(err, state.window)
		return
	}
	state.chain = chain
	state.device = chain.device
	state.connectBtn.SetIcon(theme.LogoutIcon())
	log.Printf("Connected to %s", state.backend)
}

// teeChannel duplicates the input channel so two consumers can read it.
// Both outputs close when in closes.
func teeChannel(in <-chan tacho.Report) (<-chan tacho.Report, <-chan tacho.Report) {
	a := make(chan tacho.Report, 100)
	b := make(chan tacho.Report, 100)

	go func() {
		defer close(a)
		defer close(b)
		for report := range in {
			a <- report
			b <- report
		}
	}()

	return a, b
}
