// Package tim drives a general purpose timer as a 1 kHz time base: blocking
// delays and a periodic update interrupt share the same counter.
package tim

import (
	"github.com/itohio/gotacho/pkg/nvic"
	"github.com/itohio/gotacho/pkg/reg"
)

const (
	// TickHz is the counter rate after Init.
	TickHz = 1000
	// MicroHz is the counter rate after InitMicros.
	MicroHz = 1_000_000
)

// Register bits.
const (
	CR1_CEN  = 1 << 0 // counter enable
	EGR_UG   = 1 << 0 // update generation
	SR_UIF   = 1 << 0 // update interrupt flag
	DIER_UIE = 1 << 0 // update interrupt enable
)

// Registers is the subset of the timer register block the controller uses.
type Registers struct {
	CR1  reg.Register
	DIER reg.Register
	SR   reg.Register
	EGR  reg.Register
	CNT  reg.Register
	PSC  reg.Register
	ARR  reg.Register
}

// Timer is one timer instance together with the vector its update interrupt
// is delivered on.
type Timer struct {
	Name string
	IRQ  nvic.IRQ

	regs *Registers
	nvic nvic.Controller
}

// New creates a timer controller.
func New(name string, irq nvic.IRQ, regs *Registers, n nvic.Controller) *Timer {
	return &Timer{Name: name, IRQ: irq, regs: regs, nvic: n}
}

// TIM2, TIM6 and TIM7 bind the L432 instances to their vectors.
func TIM2(regs *Registers, n nvic.Controller) *Timer { return New("TIM2", nvic.TIM2, regs, n) }
func TIM6(regs *Registers, n nvic.Controller) *Timer { return New("TIM6", nvic.TIM6_DAC, regs, n) }
func TIM7(regs *Registers, n nvic.Controller) *Timer { return New("TIM7", nvic.TIM7, regs, n) }

// Init programs the prescaler for a 1 kHz count from coreClockHz, forces an
// update so the prescaler is loaded, and starts the counter. It must run
// before any delay or periodic interrupt.
func (t *Timer) Init(coreClockHz uint32) {
	t.start(Prescaler(coreClockHz))
}

// InitMicros is Init for a 1 MHz count, the time base DelayMicros needs.
// A timer set up this way must not be used for millisecond delays or the
// periodic interrupt.
func (t *Timer) InitMicros(coreClockHz uint32) {
	t.start(coreClockHz/MicroHz - 1)
}

func (t *Timer) start(psc uint32) {
	t.regs.PSC.Set(psc)
	t.regs.EGR.SetBits(EGR_UG)
	t.regs.CR1.SetBits(CR1_CEN)
}

// Prescaler returns the PSC value that divides coreClockHz down to TickHz.
func Prescaler(coreClockHz uint32) uint32 {
	return coreClockHz/TickHz - 1
}

// DelayBlocking spins until ticks milliseconds have elapsed. It never yields
// and must not be called from an interrupt handler. Interrupts still run
// while it spins.
func (t *Timer) DelayBlocking(ticks uint32) {
	t.wait(ticks)
}

// DelayMicros spins for us microseconds on a timer started with InitMicros.
// The same rules as DelayBlocking apply.
func (t *Timer) DelayMicros(us uint32) {
	t.wait(us)
}

func (t *Timer) wait(ticks uint32) {
	t.regs.ARR.Set(ticks)
	t.regs.EGR.SetBits(EGR_UG)
	t.regs.SR.ClearBits(SR_UIF)
	t.regs.CNT.Set(0)

	for !t.regs.SR.HasBits(SR_UIF) {
	}
}

// EnablePeriodicInterrupt makes the timer raise its update interrupt every
// periodTicks milliseconds until disabled.
func (t *Timer) EnablePeriodicInterrupt(periodTicks uint32) {
	t.regs.ARR.Set(periodTicks - 1)
	t.regs.DIER.SetBits(DIER_UIE)
	t.nvic.EnableIRQ(t.IRQ)
}

// DisablePeriodicInterrupt stops the update interrupt. Calling it on a
// disabled timer only repeats the writes.
func (t *Timer) DisablePeriodicInterrupt() {
	t.regs.DIER.ClearBits(DIER_UIE)
	t.nvic.DisableIRQ(t.IRQ)
}

// ClearFlag acknowledges the update event. The handler must call it or the
// vector fires again immediately.
func (t *Timer) ClearFlag() {
	t.regs.SR.ClearBits(SR_UIF)
}

// IsFlagSet reports a pending update event.
func (t *Timer) IsFlagSet() bool {
	return t.regs.SR.HasBits(SR_UIF)
}

// IsInterruptEnabled reports whether the update interrupt source is enabled.
func (t *Timer) IsInterruptEnabled() bool {
	return t.regs.DIER.HasBits(DIER_UIE)
}
