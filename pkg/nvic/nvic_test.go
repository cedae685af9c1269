package nvic

import (
	"testing"

	"github.com/itohio/gotacho/pkg/reg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegisters() *Registers {
	r := &Registers{}
	for i := range r.ISER {
		r.ISER[i] = &reg.Sim{}
		r.ICER[i] = &reg.Sim{}
	}
	for i := range r.IPR {
		r.IPR[i] = &reg.Sim{}
	}
	return r
}

func TestRegisters_EnableDisable(t *testing.T) {
	r := newRegisters()

	r.EnableIRQ(EXTI0)
	assert.Equal(t, uint32(1<<6), r.ISER[0].Get())

	r.EnableIRQ(EXTI15_10)
	assert.Equal(t, uint32(1<<(40-32)), r.ISER[1].Get())

	r.DisableIRQ(TIM2)
	assert.Equal(t, uint32(1<<28), r.ICER[0].Get())
}

func TestRegisters_Priority(t *testing.T) {
	r := newRegisters()

	r.SetPriority(TIM2, PriorityTick)
	r.SetPriority(EXTI0, PriorityEdge)
	r.SetPriority(EXTI1, 0x4F) // low nibble is not implemented

	assert.Equal(t, PriorityTick, r.Priority(TIM2))
	assert.Equal(t, PriorityEdge, r.Priority(EXTI0))
	assert.Equal(t, Priority(0x40), r.Priority(EXTI1))

	// Neighbours in the same word are untouched.
	assert.Equal(t, Priority(0), r.Priority(EXTI2))
}

func TestPriority_Preempts(t *testing.T) {
	assert.True(t, PriorityEdge.Preempts(PriorityTick))
	assert.False(t, PriorityTick.Preempts(PriorityEdge))
	assert.False(t, PriorityEdge.Preempts(PriorityEdge))
	assert.False(t, Priority(0x41).Preempts(0x4F))
}

type recorder struct {
	calls []string
}

func (r *recorder) EnableIRQ(irq IRQ)                      { r.calls = append(r.calls, "enable") }
func (r *recorder) DisableIRQ(irq IRQ)                     { r.calls = append(r.calls, "disable") }
func (r *recorder) SetPriority(irq IRQ, priority Priority) { r.calls = append(r.calls, "priority") }

func TestDispatcher(t *testing.T) {
	var d Dispatcher
	var fired []IRQ

	d.Register(EXTI0, PriorityEdge, func() { fired = append(fired, EXTI0) })
	d.Register(TIM2, PriorityTick, func() { fired = append(fired, TIM2) })

	d.Dispatch(TIM2)
	d.Dispatch(EXTI0)
	d.Dispatch(EXTI1) // not registered
	assert.Equal(t, []IRQ{TIM2, EXTI0}, fired)

	p, ok := d.Priority(TIM2)
	require.True(t, ok)
	assert.Equal(t, PriorityTick, p)
	_, ok = d.Priority(EXTI1)
	assert.False(t, ok)

	rec := &recorder{}
	d.Arm(rec)
	assert.Equal(t, []string{"priority", "priority", "enable", "enable"}, rec.calls)

	rec.calls = nil
	d.Disarm(rec)
	assert.Equal(t, []string{"disable", "disable"}, rec.calls)
}

func TestDispatcher_ReRegister(t *testing.T) {
	var d Dispatcher
	n := 0
	d.Register(EXTI0, PriorityEdge, func() { n += 1 })
	d.Register(EXTI0, PriorityTick, func() { n += 10 })

	d.Dispatch(EXTI0)
	assert.Equal(t, 10, n)
	assert.Equal(t, []IRQ{EXTI0}, d.Registered())
	p, _ := d.Priority(EXTI0)
	assert.Equal(t, PriorityTick, p)
}
