//go:build !tinygo

package tacho

import (
	"math"
	"sync"
	"time"

	"github.com/itohio/gotacho/pkg/config"
	"github.com/itohio/gotacho/pkg/hal"
	"github.com/itohio/gotacho/pkg/sim"
	"github.com/itohio/gotacho/pkg/velocity"
)

// Mock simulates the board with a motor attached for testing and
// development. The real decoder and estimator run on a simulated MCU.
type Mock struct {
	cfg *config.MockConfig

	mu        sync.RWMutex
	reports   chan Report
	board     *board
	motor     *sim.Motor
	connected bool
}

// NewMock creates a new mocked device instance.
func NewMock(cfg *config.MockConfig) *Mock {
	if cfg == nil {
		def := config.Default().Mock
		cfg = &def
	}
	return &Mock{
		cfg:     cfg,
		reports: make(chan Report, DefaultBufferSize),
	}
}

// Connect powers up the simulated board and starts the motor.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return ErrAlreadyConnected
	}

	reports := make(chan Report, DefaultBufferSize)
	var motor *sim.Motor
	b, err := startBoard(reports, func(mcu *sim.MCU) hal.GPIO {
		motor = sim.NewMotor(mcu.GPIO, DefaultPins.A, DefaultPins.B, velocity.EdgesPerRevolution, m.cfg.Seed)
		motor.BounceRate = m.cfg.BounceRate
		motor.MissRate = m.cfg.MissRate
		return mcu.GPIO
	})
	if err != nil {
		return err
	}

	period := m.cfg.TickPeriod
	if period <= 0 {
		period = time.Millisecond
	}
	b.spawn("motor", b.clock(period, func(ms int) error {
		motor.SetSpeed(speedAt(m.cfg, time.Duration(ms)*time.Millisecond))
		return motor.Advance(time.Millisecond)
	}))

	m.reports = reports
	m.board = b
	m.motor = motor
	m.connected = true
	return nil
}

// Close stops the simulation. The reports channel is closed once the last
// buffered line has been parsed.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil
	}

	m.board.stop()
	m.board = nil
	m.connected = false
	return nil
}

// Reports returns the channel for reading reports.
func (m *Mock) Reports() <-chan Report {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reports
}

// IsConnected returns whether the device is currently connected.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// Steps returns the true edge count of the simulated shaft.
func (m *Mock) Steps() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.motor == nil {
		return 0
	}
	return m.motor.Steps()
}

// speedAt is the motor speed profile: constant at Speed without
// acceleration, otherwise a triangle starting at rest that ramps between
// +Speed and -Speed, reversing direction twice per period.
func speedAt(cfg *config.MockConfig, t time.Duration) float64 {
	if cfg.Acceleration <= 0 || cfg.Speed == 0 {
		return cfg.Speed
	}
	ramp := math.Abs(cfg.Speed) / cfg.Acceleration
	p := math.Mod(t.Seconds(), 4*ramp)
	a := math.Copysign(cfg.Acceleration, cfg.Speed)
	switch {
	case p < ramp:
		return a * p
	case p < 3*ramp:
		return cfg.Speed - a*(p-ramp)
	default:
		return -cfg.Speed + a*(p-3*ramp)
	}
}
