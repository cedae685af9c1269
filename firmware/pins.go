//go:build tinygo && stm32l4x2

package main

import (
	"machine"

	"github.com/itohio/gotacho/pkg/hal"
)

const (
	// Encoder phases, both on EXTI lines of their own (EXTI0, EXTI1)
	PIN_ENCODER_A = machine.PA0
	PIN_ENCODER_B = machine.PA1

	// Green user LED on the NUCLEO-L432KC
	PIN_LED = machine.PB3

	// Serial configuration
	// A report line is ~100 bytes at most, 10 reports/sec = 1,000 bytes/sec.
	// UART 8N1 at 115200 moves 11,520 bytes/sec, ~10x headroom.
	UART_BAUD_RATE = 115200
)

// pinGPIO adapts machine pins to the core's pin access.
type pinGPIO struct{}

var _ hal.GPIO = pinGPIO{}

// machinePin maps a port/offset pair to TinyGo's pin numbering (16 per port).
func machinePin(p hal.Pin) machine.Pin {
	return machine.Pin(uint8(p.Port)*16 + p.Offset)
}

func (pinGPIO) ReadPin(p hal.Pin) bool        { return machinePin(p).Get() }
func (pinGPIO) WritePin(p hal.Pin, high bool) { machinePin(p).Set(high) }
func (pinGPIO) TogglePin(p hal.Pin)           { machinePin(p).Set(!machinePin(p).Get()) }
