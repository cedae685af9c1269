//go:build tinygo && stm32l4x2

package main

import (
	"device/stm32"

	"github.com/itohio/gotacho/pkg/exti"
	"github.com/itohio/gotacho/pkg/reg"
	"github.com/itohio/gotacho/pkg/tim"
)

// Register bindings for the peripherals the core drives.
var (
	extiRegs = exti.Registers{
		EXTICR: [4]reg.Register{
			&stm32.SYSCFG.EXTICR1,
			&stm32.SYSCFG.EXTICR2,
			&stm32.SYSCFG.EXTICR3,
			&stm32.SYSCFG.EXTICR4,
		},
		RTSR: &stm32.EXTI.RTSR1,
		FTSR: &stm32.EXTI.FTSR1,
		IMR:  &stm32.EXTI.IMR1,
		PR:   &stm32.EXTI.PR1,
	}

	tim2Regs = tim.Registers{
		CR1:  &stm32.TIM2.CR1,
		DIER: &stm32.TIM2.DIER,
		SR:   &stm32.TIM2.SR,
		EGR:  &stm32.TIM2.EGR,
		CNT:  &stm32.TIM2.CNT,
		PSC:  &stm32.TIM2.PSC,
		ARR:  &stm32.TIM2.ARR,
	}

	tim7Regs = tim.Registers{
		CR1:  &stm32.TIM7.CR1,
		DIER: &stm32.TIM7.DIER,
		SR:   &stm32.TIM7.SR,
		EGR:  &stm32.TIM7.EGR,
		CNT:  &stm32.TIM7.CNT,
		PSC:  &stm32.TIM7.PSC,
		ARR:  &stm32.TIM7.ARR,
	}
)
