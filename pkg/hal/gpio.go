package hal

// GPIO is the pin access the core needs. Mode and pull configuration is done
// by the platform before the core is started.
type GPIO interface {
	// ReadPin returns true when the pin level is high.
	ReadPin(pin Pin) bool
	// WritePin drives an output pin.
	WritePin(pin Pin, high bool)
	// TogglePin inverts an output pin.
	TogglePin(pin Pin)
}
