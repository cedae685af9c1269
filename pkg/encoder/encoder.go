// Package encoder decodes a two-phase quadrature signal into a signed position.
//
// The decoder counts all four edges of a pulse. Transitions that skip a state
// cannot be given a direction; they move the phase but are not counted.
package encoder

import (
	"sync/atomic"

	"github.com/itohio/gotacho/pkg/hal"
)

// State is the combined phase reading, bit1 = A and bit0 = B.
type State uint8

// MakeState combines two phase levels.
func MakeState(a, b bool) State {
	var s State
	if a {
		s |= 0b10
	}
	if b {
		s |= 0b01
	}
	return s
}

// A returns the phase A level.
func (s State) A() bool { return s&0b10 != 0 }

// B returns the phase B level.
func (s State) B() bool { return s&0b01 != 0 }

// Transition classifies a phase change.
type Transition int8

const (
	None   Transition = 0  // same state, a duplicate or bounced edge
	CW     Transition = 1  // one step clockwise
	CCW    Transition = -1 // one step counter-clockwise
	Glitch Transition = 2  // skipped a state, direction unknown
)

// transitions[from][to]; CW runs 0,1,3,2 and CCW 0,2,3,1.
var transitions = [4][4]Transition{
	0: {0: None, 1: CW, 2: CCW, 3: Glitch},
	1: {0: CCW, 1: None, 2: Glitch, 3: CW},
	2: {0: CW, 1: Glitch, 2: None, 3: CCW},
	3: {0: Glitch, 1: CCW, 2: CW, 3: None},
}

// Classify returns the kind of transition from one state to another.
func Classify(from, to State) Transition {
	return transitions[from&3][to&3]
}

// Delta is the position change the transition contributes.
func (t Transition) Delta() int32 {
	switch t {
	case CW:
		return 1
	case CCW:
		return -1
	}
	return 0
}

func (t Transition) String() string {
	switch t {
	case None:
		return "none"
	case CW:
		return "cw"
	case CCW:
		return "ccw"
	case Glitch:
		return "glitch"
	}
	return "invalid"
}

// Decoder owns the phase state and the position counter. Edge handlers are
// the only writers; other contexts read Position.
type Decoder struct {
	gpio hal.GPIO
	a, b hal.Pin

	phase    atomic.Uint32
	position atomic.Int32
}

// New creates a decoder reading phases from pins a and b.
func New(gpio hal.GPIO, a, b hal.Pin) *Decoder {
	return &Decoder{gpio: gpio, a: a, b: b}
}

// Read samples both phase pins.
func (d *Decoder) Read() State {
	return MakeState(d.gpio.ReadPin(d.a), d.gpio.ReadPin(d.b))
}

// Sync sets the phase from the current pin levels without counting. Call it
// once before edge interrupts are armed so the first edge has a baseline.
func (d *Decoder) Sync() {
	d.phase.Store(uint32(d.Read()))
}

// Update samples the pins and applies the new state. It is called from the
// edge interrupt of either phase.
func (d *Decoder) Update() Transition {
	return d.Step(d.Read())
}

// Step applies a new phase state. A glitch updates the phase but leaves the
// position unchanged.
func (d *Decoder) Step(next State) Transition {
	prev := State(d.phase.Load())
	if next == prev {
		return None
	}
	t := Classify(prev, next)
	if delta := t.Delta(); delta != 0 {
		d.position.Add(delta)
	}
	d.phase.Store(uint32(next))
	return t
}

// Phase returns the last observed phase state.
func (d *Decoder) Phase() State {
	return State(d.phase.Load())
}

// Position returns the position counter with a single atomic load.
func (d *Decoder) Position() int32 {
	return d.position.Load()
}
