package hal

// Critical runs fn with interrupts masked. Keep fn short: edge interrupts are
// held off for its whole duration.
func Critical(fn func()) {
	state := DisableInterrupts()
	defer RestoreInterrupts(state)
	fn()
}
