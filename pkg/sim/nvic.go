// Package sim simulates the STM32L432 peripherals the tachometer uses, so the
// interrupt-driven core runs unmodified on the host.
package sim

import (
	"errors"
	"sync"

	"github.com/itohio/gotacho/pkg/nvic"
	"github.com/itohio/gotacho/pkg/reg"
)

// ErrInterruptStorm is returned when a handler keeps returning with its source
// still pending. On silicon the core would never leave the vector.
var ErrInterruptStorm = errors.New("interrupt storm: pending flag not cleared by handler")

// DefaultStormLimit is the number of back-to-back re-entries tolerated.
const DefaultStormLimit = 1000

// enableReg models ISER/ICER: both read back the enable bits, writing ones to
// ISER sets them and writing ones to ICER clears them. A read-modify-write of
// ICER therefore disables every enabled vector in the word.
type enableReg struct {
	word  *reg.Sim
	clear bool
}

func (r *enableReg) Get() uint32               { return r.word.Get() }
func (r *enableReg) HasBits(value uint32) bool { return r.word.HasBits(value) }
func (r *enableReg) SetBits(value uint32)      { r.Set(r.Get() | value) }
func (r *enableReg) ClearBits(value uint32)    { r.Set(r.Get() &^ value) }

func (r *enableReg) Set(value uint32) {
	if r.clear {
		r.word.ClearBits(value)
	} else {
		r.word.SetBits(value)
	}
}

func (r *enableReg) ReplaceBits(value uint32, mask uint32, pos uint8) {
	r.Set(r.Get()&^(mask<<pos) | (value&mask)<<pos)
}

// NVIC is a simulated interrupt controller. Handlers of the same priority
// never run concurrently; a more urgent one may run while a less urgent one
// is in progress, which is how preemption looks from the host.
type NVIC struct {
	nvic.Registers

	StormLimit int

	enabled    [nvic.NumIRQ / 32]reg.Sim
	dispatcher *nvic.Dispatcher
	pending    [nvic.NumIRQ]func() bool

	mu      sync.Mutex
	global  bool
	levels  [16]sync.Mutex
	deliver [nvic.NumIRQ]int
}

var _ nvic.Controller = (*NVIC)(nil)

// NewNVIC creates an interrupt controller with global delivery disabled.
func NewNVIC() *NVIC {
	n := &NVIC{StormLimit: DefaultStormLimit}
	for i := range n.ISER {
		n.ISER[i] = &enableReg{word: &n.enabled[i]}
		n.ICER[i] = &enableReg{word: &n.enabled[i], clear: true}
	}
	for i := range n.IPR {
		n.IPR[i] = &reg.Sim{}
	}
	return n
}

// Attach sets the dispatcher that receives delivered vectors.
func (n *NVIC) Attach(d *nvic.Dispatcher) {
	n.mu.Lock()
	n.dispatcher = d
	n.mu.Unlock()
}

// Source registers the pending test of the peripheral behind irq.
func (n *NVIC) Source(irq nvic.IRQ, pending func() bool) {
	n.mu.Lock()
	n.pending[irq] = pending
	n.mu.Unlock()
}

// Enabled reports whether irq is enabled in the controller.
func (n *NVIC) Enabled(irq nvic.IRQ) bool {
	return n.enabled[irq/32].HasBits(1 << (irq % 32))
}

// EnableGlobal turns on interrupt delivery (cpsie i) and delivers every
// vector whose source is already pending.
func (n *NVIC) EnableGlobal() error {
	n.mu.Lock()
	n.global = true
	n.mu.Unlock()

	for irq := nvic.IRQ(0); irq < nvic.NumIRQ; irq++ {
		if n.isPending(irq) {
			if err := n.Raise(irq); err != nil {
				return err
			}
		}
	}
	return nil
}

// Deliveries returns how many times irq has been dispatched.
func (n *NVIC) Deliveries(irq nvic.IRQ) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.deliver[irq]
}

func (n *NVIC) isPending(irq nvic.IRQ) bool {
	n.mu.Lock()
	fn := n.pending[irq]
	n.mu.Unlock()
	return fn != nil && fn()
}

// Raise signals irq from its peripheral. Nothing happens while the vector or
// global delivery is disabled; the source stays latched and is delivered when
// both are enabled again. After the handler returns the vector is re-entered
// for as long as the source is still pending.
func (n *NVIC) Raise(irq nvic.IRQ) error {
	n.mu.Lock()
	d := n.dispatcher
	ok := n.global && d != nil
	n.mu.Unlock()
	if !ok || !n.Enabled(irq) {
		return nil
	}

	level := &n.levels[n.Priority(irq)>>4]
	level.Lock()
	defer level.Unlock()

	for i := 0; ; i++ {
		if i >= n.StormLimit {
			return ErrInterruptStorm
		}
		n.mu.Lock()
		n.deliver[irq]++
		n.mu.Unlock()

		d.Dispatch(irq)

		if !n.Enabled(irq) || !n.isPending(irq) {
			return nil
		}
	}
}
