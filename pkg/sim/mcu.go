package sim

import (
	"github.com/itohio/gotacho/pkg/exti"
	"github.com/itohio/gotacho/pkg/nvic"
	"github.com/itohio/gotacho/pkg/tim"
)

// CoreClockHz is the simulated SystemCoreClock (MSI at reset).
const CoreClockHz = 4_000_000

// MCU bundles the simulated peripherals of one STM32L432.
type MCU struct {
	NVIC *NVIC
	EXTI *EXTI
	GPIO *GPIO
	TIM2 *Timer
	TIM7 *Timer
}

// NewMCU creates a powered-up MCU with global interrupt delivery disabled.
func NewMCU() *MCU {
	m := &MCU{
		NVIC: NewNVIC(),
		EXTI: &EXTI{},
	}
	m.GPIO = newGPIO(m.EXTI, m.NVIC)
	m.TIM2 = newTimer(nvic.TIM2, m.NVIC)
	m.TIM7 = newTimer(nvic.TIM7, m.NVIC)
	m.TIM7.FreeRun = true

	for _, irq := range []nvic.IRQ{nvic.EXTI0, nvic.EXTI1, nvic.EXTI2, nvic.EXTI3, nvic.EXTI4, nvic.EXTI9_5, nvic.EXTI15_10} {
		lines := exti.Lines(irq)
		m.NVIC.Source(irq, func() bool { return m.EXTI.pending(lines) })
	}
	return m
}

// Lines returns a line controller backed by the simulated registers.
func (m *MCU) Lines() *exti.Controller {
	return exti.New(m.EXTI.Registers(), m.NVIC)
}

// Timer returns a timer controller for TIM2.
func (m *MCU) Timer() *tim.Timer {
	return tim.TIM2(m.TIM2.Registers(), m.NVIC)
}

// IdleTimer returns a timer controller for TIM7, which free-runs on polling.
func (m *MCU) IdleTimer() *tim.Timer {
	return tim.TIM7(m.TIM7.Registers(), m.NVIC)
}
