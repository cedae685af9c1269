// Package reg describes memory-mapped peripheral registers.
//
// Register matches the method set of TinyGo's runtime/volatile.Register32, so
// *volatile.Register32 from device/stm32 can be used directly on the target,
// while the host uses the simulated registers from this package.
package reg

import "sync/atomic"

// Register is a 32-bit peripheral register.
type Register interface {
	Get() uint32
	Set(value uint32)
	SetBits(value uint32)
	ClearBits(value uint32)
	HasBits(value uint32) bool
	ReplaceBits(value uint32, mask uint32, pos uint8)
}

var (
	_ Register = (*Sim)(nil)
	_ Register = (*W1C)(nil)
)

// Sim is a plain read/write register backed by an atomic word.
type Sim struct {
	v atomic.Uint32
}

func (r *Sim) Get() uint32               { return r.v.Load() }
func (r *Sim) Set(value uint32)          { r.v.Store(value) }
func (r *Sim) HasBits(value uint32) bool { return r.v.Load()&value != 0 }

func (r *Sim) SetBits(value uint32) {
	update(&r.v, func(old uint32) uint32 { return old | value })
}

func (r *Sim) ClearBits(value uint32) {
	update(&r.v, func(old uint32) uint32 { return old &^ value })
}

// ReplaceBits replaces the bits selected by mask<<pos with value<<pos.
func (r *Sim) ReplaceBits(value uint32, mask uint32, pos uint8) {
	update(&r.v, func(old uint32) uint32 { return old&^(mask<<pos) | (value&mask)<<pos })
}

// W1C is a latched status register where writing a one clears the bit and
// writing a zero has no effect. Hardware sets bits with Latch.
//
// A read-modify-write such as SetBits acknowledges every bit that happened to
// be set, the same as it would on silicon.
type W1C struct {
	v atomic.Uint32
}

// Latch sets bits from the hardware side.
func (r *W1C) Latch(value uint32) {
	update(&r.v, func(old uint32) uint32 { return old | value })
}

func (r *W1C) Get() uint32               { return r.v.Load() }
func (r *W1C) HasBits(value uint32) bool { return r.v.Load()&value != 0 }

// Set clears every bit that is one in value.
func (r *W1C) Set(value uint32) {
	update(&r.v, func(old uint32) uint32 { return old &^ value })
}

// SetBits writes back the current value with value OR'ed in.
func (r *W1C) SetBits(value uint32) {
	r.Set(r.Get() | value)
}

// ClearBits writes back the current value with value masked out.
func (r *W1C) ClearBits(value uint32) {
	r.Set(r.Get() &^ value)
}

func (r *W1C) ReplaceBits(value uint32, mask uint32, pos uint8) {
	r.Set(r.Get()&^(mask<<pos) | (value&mask)<<pos)
}

func update(v *atomic.Uint32, fn func(uint32) uint32) {
	for {
		old := v.Load()
		if v.CompareAndSwap(old, fn(old)) {
			return
		}
	}
}
