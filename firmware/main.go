//go:build tinygo && stm32l4x2

//go:generate tinygo flash -target=nucleo-l432kc

package main

import (
	"context"
	"device/arm"
	"device/stm32"
	"machine"
	"runtime/interrupt"

	"github.com/itohio/gotacho/pkg/exti"
	"github.com/itohio/gotacho/pkg/nvic"
	"github.com/itohio/gotacho/pkg/tacho"
	"github.com/itohio/gotacho/pkg/tim"
)

var sys *tacho.System

func main() {
	// Nothing may be delivered until the handlers are bound
	state := interrupt.Disable()

	// Clock the timers and the EXTI multiplexer. GPIO clocks are enabled by
	// Pin.Configure.
	stm32.RCC.APB1ENR1.SetBits(stm32.RCC_APB1ENR1_TIM2EN | stm32.RCC_APB1ENR1_TIM7EN)
	stm32.RCC.APB2ENR.SetBits(stm32.RCC_APB2ENR_SYSCFGEN)

	PIN_ENCODER_A.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	PIN_ENCODER_B.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	PIN_LED.Configure(machine.PinConfig{Mode: machine.PinOutput})

	machine.Serial.Configure(machine.UARTConfig{BaudRate: UART_BAUD_RATE})

	ctrl := armNVIC{}
	sys = tacho.NewSystem(tacho.Peripherals{
		GPIO:  pinGPIO{},
		Lines: exti.New(&extiRegs, ctrl),
		Tick:  tim.TIM2(&tim2Regs, ctrl),
		Idle:  tim.TIM7(&tim7Regs, ctrl),
		NVIC:  ctrl,
		EnableInterrupts: func() error {
			interrupt.Restore(state)
			return nil
		},
	}, tacho.DefaultPins, machine.Serial)

	// Bind vectors to the dispatcher. Enabling and priorities go through
	// the dispatcher as well.
	interrupt.New(stm32.IRQ_EXTI0, func(interrupt.Interrupt) { sys.Dispatcher.Dispatch(nvic.EXTI0) })
	interrupt.New(stm32.IRQ_EXTI1, func(interrupt.Interrupt) { sys.Dispatcher.Dispatch(nvic.EXTI1) })
	interrupt.New(stm32.IRQ_TIM2, func(interrupt.Interrupt) { sys.Dispatcher.Dispatch(nvic.TIM2) })

	if err := sys.Start(machine.CPUFrequency()); err != nil {
		println("start failed:", err.Error())
		return
	}

	if err := sys.Run(context.Background()); err != nil {
		println("main loop stopped:", err.Error())
	}
}

// armNVIC drives the Cortex-M NVIC through TinyGo's device/arm helpers.
type armNVIC struct{}

var _ nvic.Controller = armNVIC{}

func (armNVIC) EnableIRQ(irq nvic.IRQ)  { arm.EnableIRQ(uint32(irq)) }
func (armNVIC) DisableIRQ(irq nvic.IRQ) { arm.DisableIRQ(uint32(irq)) }

func (armNVIC) SetPriority(irq nvic.IRQ, p nvic.Priority) {
	arm.SetPriority(uint32(irq), uint32(p.Implemented()))
}
