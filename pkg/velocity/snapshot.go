package velocity

import "github.com/itohio/gotacho/pkg/hal"

// Counter is anything holding a position counter.
type Counter interface {
	Position() int32
}

// Atomic reads c with its own single-load accessor. Use it when the counter is
// one aligned machine word, as the decoder's is.
func Atomic(c Counter) Snapshot {
	return c.Position
}

// Guarded reads through read with interrupts masked. Use it when the counter
// cannot be read in a single instruction, for example a 64-bit counter on a
// 32-bit core.
func Guarded(read func() int32) Snapshot {
	return func() int32 {
		var v int32
		hal.Critical(func() { v = read() })
		return v
	}
}
