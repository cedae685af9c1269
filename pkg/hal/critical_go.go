//go:build !tinygo

package hal

import "sync"

// On the host, interrupt handlers run on goroutines and may execute truly in
// parallel, so "masking interrupts" is a process-wide lock.
var critical sync.Mutex

// State is the saved interrupt state.
type State uintptr

// DisableInterrupts enters a critical section.
func DisableInterrupts() State {
	critical.Lock()
	return 0
}

// RestoreInterrupts leaves a critical section entered by DisableInterrupts.
func RestoreInterrupts(state State) {
	critical.Unlock()
}
