package nvic

import "github.com/itohio/gotacho/pkg/reg"

// Controller is the capability the peripheral controllers need from the
// interrupt controller.
type Controller interface {
	EnableIRQ(irq IRQ)
	DisableIRQ(irq IRQ)
	SetPriority(irq IRQ, priority Priority)
}

// Registers is the register-level NVIC: set-enable, clear-enable and the byte
// packed priority words.
type Registers struct {
	ISER [NumIRQ / 32]reg.Register
	ICER [NumIRQ / 32]reg.Register
	IPR  [NumIRQ / 4]reg.Register
}

var _ Controller = (*Registers)(nil)

// EnableIRQ writes the vector's bit to ISER. Zero bits are ignored by the
// hardware, so no read-modify-write is needed.
func (r *Registers) EnableIRQ(irq IRQ) {
	r.ISER[irq/32].Set(1 << (irq % 32))
}

// DisableIRQ writes the vector's bit to ICER.
func (r *Registers) DisableIRQ(irq IRQ) {
	r.ICER[irq/32].Set(1 << (irq % 32))
}

func (r *Registers) SetPriority(irq IRQ, priority Priority) {
	r.IPR[irq/4].ReplaceBits(uint32(priority.Implemented()), 0xFF, uint8(irq%4)*8)
}

// Priority reads back a vector's priority.
func (r *Registers) Priority(irq IRQ) Priority {
	return Priority(r.IPR[irq/4].Get() >> (uint8(irq%4) * 8))
}
