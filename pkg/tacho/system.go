// Package tacho wires the encoder decoder and the velocity estimator to the
// interrupt sources of the board and turns the resulting report lines back
// into measurements on the host.
package tacho

import (
	"context"
	"errors"
	"io"

	"github.com/itohio/gotacho/pkg/encoder"
	"github.com/itohio/gotacho/pkg/exti"
	"github.com/itohio/gotacho/pkg/hal"
	"github.com/itohio/gotacho/pkg/nvic"
	"github.com/itohio/gotacho/pkg/tim"
	"github.com/itohio/gotacho/pkg/velocity"
)

// Banner is printed once interrupts are live.
var Banner = []string{
	"Quadrature Encoder Speed Measurement",
	"Encoder A: PA0, Encoder B: PA1",
	"Ready for motor test (expected ~10 rev/s)",
	"",
}

// Pins assigns the encoder phases and the status LED.
type Pins struct {
	A   hal.Pin
	B   hal.Pin
	LED hal.Pin
}

// DefaultPins is the NUCLEO-L432KC wiring.
var DefaultPins = Pins{A: hal.PA(0), B: hal.PA(1), LED: hal.PB(3)}

// Peripherals are the controllers the system runs on.
type Peripherals struct {
	GPIO  hal.GPIO
	Lines *exti.Controller
	Tick  *tim.Timer // periodic estimator interrupt
	Idle  *tim.Timer // blocking delays of the main loop
	NVIC  nvic.Controller

	// EnableInterrupts turns on global interrupt delivery. It may be nil
	// when interrupts are already enabled, as they are under TinyGo.
	EnableInterrupts func() error
}

// System is the whole tachometer: one decoder shared by both edge handlers
// and one estimator run from the tick handler.
type System struct {
	Pins         Pins
	EdgePriority nvic.Priority
	TickPriority nvic.Priority

	Decoder    *encoder.Decoder
	Estimator  *velocity.Estimator
	Dispatcher nvic.Dispatcher

	p   Peripherals
	out io.Writer
}

// NewSystem creates a system. Report lines and the banner go to out.
func NewSystem(p Peripherals, pins Pins, out io.Writer) *System {
	dec := encoder.New(p.GPIO, pins.A, pins.B)
	return &System{
		Pins:         pins,
		EdgePriority: nvic.PriorityEdge,
		TickPriority: nvic.PriorityTick,
		Decoder:      dec,
		Estimator:    velocity.New(velocity.Atomic(dec), out, p.GPIO, pins.LED),
		p:            p,
		out:          out,
	}
}

// Start brings the system up in order: timers, handlers with their
// priorities, edge and tick sources, decoder baseline, global interrupts and
// the banner. Flags latched before the handlers could run are discarded.
func (s *System) Start(coreClockHz uint32) error {
	s.p.Tick.Init(coreClockHz)
	if s.p.Idle != nil && s.p.Idle != s.p.Tick {
		s.p.Idle.Init(coreClockHz)
	}

	for _, irq := range s.edgeVectors() {
		s.Dispatcher.Register(irq, s.EdgePriority, s.edgeHandler(irq))
	}
	s.Dispatcher.Register(s.p.Tick.IRQ, s.TickPriority, s.onTick)
	s.Dispatcher.Arm(s.p.NVIC)

	s.p.Lines.Enable(s.Pins.A, hal.Both)
	s.p.Lines.Enable(s.Pins.B, hal.Both)
	s.p.Tick.EnablePeriodicInterrupt(velocity.TickMillis)

	s.p.Lines.ClearPending(s.Pins.A)
	s.p.Lines.ClearPending(s.Pins.B)
	s.p.Tick.ClearFlag()
	s.Decoder.Sync()

	if s.p.EnableInterrupts != nil {
		if err := s.p.EnableInterrupts(); err != nil {
			return err
		}
	}

	if s.out != nil {
		for _, line := range Banner {
			if _, err := io.WriteString(s.out, line+"\n"); err != nil {
				return err
			}
		}
	}
	return nil
}

// Stop masks the edge lines and the tick and disables their vectors.
func (s *System) Stop() {
	s.p.Tick.DisablePeriodicInterrupt()
	s.p.Lines.Disable(s.Pins.A)
	s.p.Lines.Disable(s.Pins.B)
	s.Dispatcher.Disarm(s.p.NVIC)
}

// Idle is one pass of the main loop.
func (s *System) Idle() {
	s.p.Idle.DelayBlocking(velocity.TickMillis)
}

// Run is the main loop. All work happens in interrupt handlers; it only
// returns when ctx is done.
func (s *System) Run(ctx context.Context) error {
	if s.p.Idle == nil {
		return errors.New("no idle timer")
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		s.Idle()
	}
}

// edgeVectors returns the distinct vectors the phase pins are delivered on.
func (s *System) edgeVectors() []nvic.IRQ {
	a := exti.IRQ(s.Pins.A.Line())
	b := exti.IRQ(s.Pins.B.Line())
	if a == b {
		return []nvic.IRQ{a}
	}
	return []nvic.IRQ{a, b}
}

// edgeHandler serves a vector that may carry one or both phases. Each fired
// line is acknowledged before the pins are sampled, so an edge arriving
// during the update latches again instead of being lost.
func (s *System) edgeHandler(irq nvic.IRQ) nvic.Handler {
	var pins []hal.Pin
	for _, p := range []hal.Pin{s.Pins.A, s.Pins.B} {
		if exti.IRQ(p.Line()) == irq {
			pins = append(pins, p)
		}
	}
	return func() {
		fired := false
		for _, p := range pins {
			if s.p.Lines.IsPending(p) {
				s.p.Lines.ClearPending(p)
				fired = true
			}
		}
		if fired {
			s.Decoder.Update()
		}
	}
}

func (s *System) onTick() {
	if !s.p.Tick.IsFlagSet() {
		return
	}
	s.p.Tick.ClearFlag()
	s.Estimator.Tick()
}
