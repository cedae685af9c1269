//go:build !tinygo

package tacho

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/itohio/gotacho/pkg/config"
	"github.com/itohio/gotacho/pkg/hal"
	"github.com/itohio/gotacho/pkg/sim"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"
)

// edgeTimeout bounds WaitForEdge so followers notice Close.
const edgeTimeout = 100 * time.Millisecond

// GPIODevice measures an encoder wired to the GPIO header of a Linux board.
// Edges seen by the kernel are mirrored onto the phase pins of a simulated
// MCU, so the same decoder and estimator as on the microcontroller produce
// the reports.
type GPIODevice struct {
	cfg config.GPIOConfig

	mu        sync.RWMutex
	reports   chan Report
	board     *board
	pins      []gpio.PinIO
	connected bool
}

// NewGPIO creates a GPIO device for the pins named in cfg.
func NewGPIO(cfg config.GPIOConfig) *GPIODevice {
	return &GPIODevice{
		cfg:     cfg,
		reports: make(chan Report, DefaultBufferSize),
	}
}

// Connect opens the pins and starts following their edges.
func (d *GPIODevice) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return ErrAlreadyConnected
	}

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize host drivers: %w", err)
	}

	a, err := openInput(d.cfg.PinA)
	if err != nil {
		return err
	}
	b, err := openInput(d.cfg.PinB)
	if err != nil {
		a.Halt()
		return err
	}
	var led gpio.PinIO
	if d.cfg.LED != "" {
		if led = gpioreg.ByName(d.cfg.LED); led == nil {
			a.Halt()
			b.Halt()
			return fmt.Errorf("invalid pin: %s", d.cfg.LED)
		}
		if err := led.Out(gpio.Low); err != nil {
			a.Halt()
			b.Halt()
			return fmt.Errorf("failed to configure %s: %w", d.cfg.LED, err)
		}
	}

	reports := make(chan Report, DefaultBufferSize)
	brd, err := startBoard(reports, func(mcu *sim.MCU) hal.GPIO {
		mcu.GPIO.Set(DefaultPins.A, a.Read() == gpio.High)
		mcu.GPIO.Set(DefaultPins.B, b.Read() == gpio.High)
		if led == nil {
			return mcu.GPIO
		}
		return &ledMirror{GPIO: mcu.GPIO, pin: DefaultPins.LED, led: led}
	})
	if err != nil {
		a.Halt()
		b.Halt()
		return err
	}

	brd.spawn(d.cfg.PinA, follow(a, DefaultPins.A, brd.mcu.GPIO))
	brd.spawn(d.cfg.PinB, follow(b, DefaultPins.B, brd.mcu.GPIO))
	brd.spawn("clock", brd.clock(time.Millisecond, nil))

	d.reports = reports
	d.board = brd
	d.pins = []gpio.PinIO{a, b}
	d.connected = true
	return nil
}

// Close stops following edges and releases the pins.
func (d *GPIODevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}

	d.board.stop()
	for _, p := range d.pins {
		p.Halt()
	}
	d.board = nil
	d.pins = nil
	d.connected = false
	return nil
}

// Reports returns the channel for reading reports.
func (d *GPIODevice) Reports() <-chan Report {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.reports
}

// IsConnected returns whether the device is currently connected.
func (d *GPIODevice) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

func openInput(name string) (gpio.PinIO, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("invalid pin: %s", name)
	}
	if err := pin.In(gpio.PullUp, gpio.BothEdges); err != nil {
		return nil, fmt.Errorf("failed to configure %s: %w", name, err)
	}
	return pin, nil
}

// follow mirrors the level of a host pin onto a simulated phase pin after
// every edge.
func follow(pin gpio.PinIO, phase hal.Pin, target *sim.GPIO) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		for ctx.Err() == nil {
			if !pin.WaitForEdge(edgeTimeout) {
				continue
			}
			if err := target.Drive(sim.Level{Pin: phase, High: pin.Read() == gpio.High}); err != nil {
				return err
			}
		}
		return ctx.Err()
	}
}

// ledMirror copies status LED writes to a host pin.
type ledMirror struct {
	hal.GPIO
	pin hal.Pin
	led gpio.PinIO
}

func (m *ledMirror) WritePin(pin hal.Pin, high bool) {
	m.GPIO.WritePin(pin, high)
	m.mirror(pin)
}

func (m *ledMirror) TogglePin(pin hal.Pin) {
	m.GPIO.TogglePin(pin)
	m.mirror(pin)
}

func (m *ledMirror) mirror(pin hal.Pin) {
	if pin != m.pin {
		return
	}
	_ = m.led.Out(gpio.Level(m.GPIO.ReadPin(pin)))
}
