package sim

import (
	"sync"

	"github.com/itohio/gotacho/pkg/nvic"
	"github.com/itohio/gotacho/pkg/reg"
	"github.com/itohio/gotacho/pkg/tim"
)

// writeHook is a plain register that runs a hook after every write.
type writeHook struct {
	reg.Sim
	hook func(v uint32)
}

func (r *writeHook) Set(v uint32)       { r.Sim.Set(v); r.hook(v) }
func (r *writeHook) SetBits(v uint32)   { r.Sim.SetBits(v); r.hook(r.Sim.Get()) }
func (r *writeHook) ClearBits(v uint32) { r.Sim.ClearBits(v); r.hook(r.Sim.Get()) }

func (r *writeHook) ReplaceBits(v uint32, mask uint32, pos uint8) {
	r.Sim.ReplaceBits(v, mask, pos)
	r.hook(r.Sim.Get())
}

// readHook is a plain register that runs a hook before every read.
type readHook struct {
	reg.Sim
	hook func()
}

func (r *readHook) Get() uint32 {
	r.hook()
	return r.Sim.Get()
}

func (r *readHook) HasBits(v uint32) bool {
	r.hook()
	return r.Sim.HasBits(v)
}

// Timer is a simulated general purpose timer. One Advance step is one counter
// tick, which is one millisecond once the prescaler is programmed.
type Timer struct {
	IRQ nvic.IRQ

	// FreeRun advances the counter by one tick every time SR is read, so a
	// busy-wait on the update flag terminates without a clock.
	FreeRun bool

	mu   sync.Mutex
	cr1  reg.Sim
	dier reg.Sim
	sr   readHook
	egr  writeHook
	cnt  reg.Sim
	psc  reg.Sim
	arr  reg.Sim

	updates int
	nvic    *NVIC
}

func newTimer(irq nvic.IRQ, n *NVIC) *Timer {
	t := &Timer{IRQ: irq, nvic: n}
	t.sr.hook = t.poll
	t.egr.hook = t.generate
	n.Source(irq, t.pending)
	return t
}

// Registers exposes the block to tim.Timer.
func (t *Timer) Registers() *tim.Registers {
	return &tim.Registers{
		CR1:  &t.cr1,
		DIER: &t.dier,
		SR:   &t.sr,
		EGR:  &t.egr,
		CNT:  &t.cnt,
		PSC:  &t.psc,
		ARR:  &t.arr,
	}
}

// Prescaler returns the programmed PSC.
func (t *Timer) Prescaler() uint32 { return t.psc.Get() }

// Reload returns the programmed ARR.
func (t *Timer) Reload() uint32 { return t.arr.Get() }

// Running reports whether the counter is enabled.
func (t *Timer) Running() bool { return t.cr1.HasBits(tim.CR1_CEN) }

// Updates returns the number of counter overflows so far.
func (t *Timer) Updates() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.updates
}

// Advance counts ticks. Every overflow past ARR sets the update flag and, if
// the update interrupt is enabled, raises the timer vector.
func (t *Timer) Advance(ticks int) error {
	for i := 0; i < ticks; i++ {
		if t.step() && t.dier.HasBits(tim.DIER_UIE) {
			if err := t.nvic.Raise(t.IRQ); err != nil {
				return err
			}
		}
	}
	return nil
}

// step counts one tick and reports an update event.
func (t *Timer) step() bool {
	if !t.cr1.HasBits(tim.CR1_CEN) {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cnt.Get() < t.arr.Get() {
		t.cnt.Set(t.cnt.Get() + 1)
		return false
	}
	t.cnt.Set(0)
	t.sr.Sim.SetBits(tim.SR_UIF)
	t.updates++
	return true
}

func (t *Timer) poll() {
	if t.FreeRun {
		t.step()
	}
}

// generate models EGR.UG: counter reset and an update event.
func (t *Timer) generate(v uint32) {
	if v&tim.EGR_UG == 0 {
		return
	}
	t.cnt.Set(0)
	t.sr.Sim.SetBits(tim.SR_UIF)
	t.egr.Sim.ClearBits(tim.EGR_UG)
}

func (t *Timer) pending() bool {
	return t.sr.Sim.HasBits(tim.SR_UIF) && t.dier.HasBits(tim.DIER_UIE)
}
