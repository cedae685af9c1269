package sim

import (
	"sync"

	"github.com/itohio/gotacho/pkg/exti"
	"github.com/itohio/gotacho/pkg/hal"
	"github.com/itohio/gotacho/pkg/reg"
)

// EXTI is the simulated SYSCFG multiplexer and EXTI line block.
type EXTI struct {
	EXTICR [4]reg.Sim
	RTSR   reg.Sim
	FTSR   reg.Sim
	IMR    reg.Sim
	PR     reg.W1C
}

// Registers exposes the block to exti.Controller.
func (e *EXTI) Registers() *exti.Registers {
	return &exti.Registers{
		EXTICR: [4]reg.Register{&e.EXTICR[0], &e.EXTICR[1], &e.EXTICR[2], &e.EXTICR[3]},
		RTSR:   &e.RTSR,
		FTSR:   &e.FTSR,
		IMR:    &e.IMR,
		PR:     &e.PR,
	}
}

// edge latches line's pending bit if the edge matches the line's
// configuration. It reports whether the line fired.
func (e *EXTI) edge(pin hal.Pin, rising bool) bool {
	line := pin.Line()
	bit := uint32(1) << line
	if !e.IMR.HasBits(bit) {
		return false
	}
	if hal.Port(e.EXTICR[line/4].Get()>>((line%4)*4)&0xF) != pin.Port {
		return false
	}
	if rising && !e.RTSR.HasBits(bit) || !rising && !e.FTSR.HasBits(bit) {
		return false
	}
	e.PR.Latch(bit)
	return true
}

// pending reports whether any of lines is latched and unmasked.
func (e *EXTI) pending(lines []uint8) bool {
	for _, line := range lines {
		bit := uint32(1) << line
		if e.PR.HasBits(bit) && e.IMR.HasBits(bit) {
			return true
		}
	}
	return false
}

// GPIO holds pin levels. The core reads and writes them through hal.GPIO;
// the outside world changes inputs with Drive.
type GPIO struct {
	mu     sync.Mutex
	levels map[hal.Pin]bool
	writes map[hal.Pin]int

	exti *EXTI
	nvic *NVIC
}

var _ hal.GPIO = (*GPIO)(nil)

func newGPIO(e *EXTI, n *NVIC) *GPIO {
	return &GPIO{
		levels: make(map[hal.Pin]bool),
		writes: make(map[hal.Pin]int),
		exti:   e,
		nvic:   n,
	}
}

func (g *GPIO) ReadPin(pin hal.Pin) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.levels[pin]
}

func (g *GPIO) WritePin(pin hal.Pin, high bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.levels[pin] = high
	g.writes[pin]++
}

func (g *GPIO) TogglePin(pin hal.Pin) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.levels[pin] = !g.levels[pin]
	g.writes[pin]++
}

// Writes returns how many times the core wrote pin.
func (g *GPIO) Writes(pin hal.Pin) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.writes[pin]
}

// Level is an externally driven pin level.
type Level struct {
	Pin  hal.Pin
	High bool
}

// Drive applies external levels at the same instant. All levels are visible
// before any resulting interrupt runs, so changing two phases together looks
// to the decoder like a skipped state.
func (g *GPIO) Drive(levels ...Level) error {
	var fired [exti.NumLines]bool
	var raised bool

	g.mu.Lock()
	for _, l := range levels {
		if g.levels[l.Pin] == l.High {
			continue
		}
		g.levels[l.Pin] = l.High
		if g.exti != nil && g.exti.edge(l.Pin, l.High) {
			fired[l.Pin.Line()] = true
			raised = true
		}
	}
	g.mu.Unlock()

	if !raised || g.nvic == nil {
		return nil
	}
	for line, ok := range fired {
		if !ok {
			continue
		}
		if err := g.nvic.Raise(exti.IRQ(uint8(line))); err != nil {
			return err
		}
	}
	return nil
}

// Set sets an input level without generating edges, as the level present at
// power up.
func (g *GPIO) Set(pin hal.Pin, high bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.levels[pin] = high
}
