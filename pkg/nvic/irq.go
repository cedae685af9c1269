// Package nvic models the nested vectored interrupt controller: which vectors
// are enabled, their priorities, and the handler bound to each vector.
package nvic

// IRQ is an interrupt vector number (position in the vector table after the
// system exceptions).
type IRQ uint8

// NumIRQ bounds the vector table.
const NumIRQ = 96

// STM32L432 vectors used by the tachometer.
const (
	EXTI0     IRQ = 6
	EXTI1     IRQ = 7
	EXTI2     IRQ = 8
	EXTI3     IRQ = 9
	EXTI4     IRQ = 10
	EXTI9_5   IRQ = 23
	TIM2      IRQ = 28
	EXTI15_10 IRQ = 40
	TIM6_DAC  IRQ = 54
	TIM7      IRQ = 55
)

// Priority of a vector. Lower values are more urgent; the STM32L4 implements
// the upper four bits only.
type Priority uint8

const (
	PriorityHighest Priority = 0x00
	PriorityEdge    Priority = 0x40
	PriorityTick    Priority = 0x80
	PriorityLowest  Priority = 0xF0
)

// Implemented returns the priority as the hardware stores it.
func (p Priority) Implemented() Priority {
	return p & 0xF0
}

// Preempts reports whether a handler at priority p may interrupt a running
// handler at priority running.
func (p Priority) Preempts(running Priority) bool {
	return p.Implemented() < running.Implemented()
}
