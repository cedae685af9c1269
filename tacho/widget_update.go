package main

import (
	"sync"
	"time"

	"fyne.io/fyne/v2"
)

// defaultUpdateInterval limits scope redraws to ~60 FPS.
const defaultUpdateInterval = 16 * time.Millisecond

// UpdateWidgetOnMainThread schedules a widget update function to run on the main Fyne thread.
// This is required because Fyne widgets cannot be updated directly from goroutines.
// The callback should copy data quickly and return as fast as possible.
func UpdateWidgetOnMainThread(callback func()) {
	if callback == nil {
		return
	}
	fyne.Do(callback)
}

// throttle drops updates that arrive sooner than interval after the last
// accepted one. The zero value uses defaultUpdateInterval.
type throttle struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

// allow reports whether an update at now should be passed on.
func (t *throttle) allow(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	interval := t.interval
	if interval == 0 {
		interval = defaultUpdateInterval
	}
	if !t.last.IsZero() && now.Sub(t.last) < interval {
		return false
	}
	t.last = now
	return true
}
