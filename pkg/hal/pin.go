// Package hal holds the hardware-facing vocabulary shared by the decoder,
// the estimator and the peripheral controllers.
package hal

// Port identifies a GPIO port. The value is the port code the SYSCFG EXTI
// multiplexer expects (PA=0, PB=1, ...).
type Port uint8

const (
	PortA Port = iota
	PortB
	PortC
	PortD
	PortE
	PortF
	PortG
	PortH
)

// Pin references a GPIO pin by port and offset within the port.
type Pin struct {
	Port   Port
	Offset uint8
}

// Pin helpers matching the reference manual names.
func PA(n uint8) Pin { return Pin{Port: PortA, Offset: n} }
func PB(n uint8) Pin { return Pin{Port: PortB, Offset: n} }
func PC(n uint8) Pin { return Pin{Port: PortC, Offset: n} }

// Line returns the EXTI line the pin is routed to.
func (p Pin) Line() uint8 {
	return p.Offset
}

func (p Pin) String() string {
	return "P" + string(rune('A'+p.Port)) + itoa(int(p.Offset))
}

// Trigger selects the edges an interrupt line is sensitive to.
type Trigger uint8

const (
	Rising  Trigger = 1 << 0
	Falling Trigger = 1 << 1
	Both            = Rising | Falling
)

func (t Trigger) Rising() bool  { return t&Rising != 0 }
func (t Trigger) Falling() bool { return t&Falling != 0 }

func itoa(n int) string {
	if n < 10 {
		return string(rune('0' + n))
	}
	return itoa(n/10) + string(rune('0'+n%10))
}
