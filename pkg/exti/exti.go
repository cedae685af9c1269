// Package exti configures the external interrupt lines that route GPIO edges
// to the interrupt controller.
//
// Line n is shared by pin n of every port; the SYSCFG multiplexer selects which
// port drives it. A handler must clear the line's pending flag, otherwise the
// vector fires again as soon as it returns.
package exti

import (
	"github.com/itohio/gotacho/pkg/hal"
	"github.com/itohio/gotacho/pkg/nvic"
	"github.com/itohio/gotacho/pkg/reg"
)

// NumLines is the number of GPIO-routed lines.
const NumLines = 16

// Registers groups the SYSCFG multiplexer and EXTI line registers.
type Registers struct {
	EXTICR [4]reg.Register // SYSCFG_EXTICR1..4, four bits per line
	RTSR   reg.Register    // rising trigger selection
	FTSR   reg.Register    // falling trigger selection
	IMR    reg.Register    // interrupt mask, 1 = unmasked
	PR     reg.Register    // pending, write 1 to clear
}

// Controller is the interrupt line controller.
type Controller struct {
	regs *Registers
	nvic nvic.Controller
}

// New creates a line controller.
func New(regs *Registers, n nvic.Controller) *Controller {
	return &Controller{regs: regs, nvic: n}
}

// Enable routes pin to its line with the given edge sensitivity and unmasks
// the line and its vector. Calling it again on an enabled line overwrites the
// trigger policy.
func (c *Controller) Enable(pin hal.Pin, trigger hal.Trigger) {
	line := pin.Line()
	bit := uint32(1) << line

	c.regs.EXTICR[line/4].ReplaceBits(uint32(pin.Port), 0xF, (line%4)*4)

	if trigger.Rising() {
		c.regs.RTSR.SetBits(bit)
	} else {
		c.regs.RTSR.ClearBits(bit)
	}
	if trigger.Falling() {
		c.regs.FTSR.SetBits(bit)
	} else {
		c.regs.FTSR.ClearBits(bit)
	}

	c.regs.IMR.SetBits(bit)
	c.nvic.EnableIRQ(IRQ(line))
}

// Disable masks pin's line and disables its vector. The trigger policy is
// left as it was. For the shared vectors (lines 5-9 and 10-15) this disables
// the vector for every line on it.
func (c *Controller) Disable(pin hal.Pin) {
	line := pin.Line()
	c.regs.IMR.ClearBits(uint32(1) << line)
	c.nvic.DisableIRQ(IRQ(line))
}

// ClearPending acknowledges pin's line. Only the line's own bit is written so
// other pending lines stay latched.
func (c *Controller) ClearPending(pin hal.Pin) {
	c.regs.PR.Set(uint32(1) << pin.Line())
}

// IsPending reports whether pin's line has a latched edge.
func (c *Controller) IsPending(pin hal.Pin) bool {
	return c.regs.PR.HasBits(uint32(1) << pin.Line())
}

// IsEnabled reports whether pin's line is unmasked.
func (c *Controller) IsEnabled(pin hal.Pin) bool {
	return c.regs.IMR.HasBits(uint32(1) << pin.Line())
}

// Trigger returns the edge sensitivity programmed for line.
func (c *Controller) Trigger(line uint8) hal.Trigger {
	var t hal.Trigger
	bit := uint32(1) << line
	if c.regs.RTSR.HasBits(bit) {
		t |= hal.Rising
	}
	if c.regs.FTSR.HasBits(bit) {
		t |= hal.Falling
	}
	return t
}

// Port returns the port the multiplexer routes to line.
func (c *Controller) Port(line uint8) hal.Port {
	return hal.Port(c.regs.EXTICR[line/4].Get() >> ((line % 4) * 4) & 0xF)
}

// IRQ returns the vector line is delivered on.
func IRQ(line uint8) nvic.IRQ {
	switch {
	case line <= 4:
		return nvic.EXTI0 + nvic.IRQ(line)
	case line <= 9:
		return nvic.EXTI9_5
	default:
		return nvic.EXTI15_10
	}
}

// Lines returns the lines delivered on irq. A handler for a shared vector must
// test every one of them; the hardware does not say which line fired.
func Lines(irq nvic.IRQ) []uint8 {
	switch {
	case irq >= nvic.EXTI0 && irq <= nvic.EXTI4:
		n := irq - nvic.EXTI0
		return allLines[n : n+1]
	case irq == nvic.EXTI9_5:
		return allLines[5:10]
	case irq == nvic.EXTI15_10:
		return allLines[10:16]
	}
	return nil
}

var allLines = [NumLines]uint8{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}
