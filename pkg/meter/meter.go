// Package meter keeps a time window of speed samples and derives the
// acceleration trace and motion events the display needs.
package meter

import (
	"math"
	"sync"
	"time"

	"github.com/itohio/gotacho/pkg/config"
	"github.com/itohio/gotacho/pkg/sample"
	"github.com/itohio/gotacho/pkg/velocity"
)

var _ SpeedMeter = (*Meter)(nil)

// EventKind distinguishes motion events.
type EventKind int

const (
	// Reversal is a change of settled direction.
	Reversal EventKind = iota
	// Stall is a stop lasting at least the stall timeout.
	Stall
)

func (k EventKind) String() string {
	if k == Stall {
		return "stall"
	}
	return "reversal"
}

// Event is a detected reversal or stall.
type Event struct {
	Kind     EventKind
	Time     time.Time          // Reversal: first sample in the new direction. Stall: first stopped sample
	Duration time.Duration      // Stall: how long the shaft has been stopped (updated while it lasts)
	From     velocity.Direction // Reversal: previous direction
	To       velocity.Direction // Reversal: new direction
}

// Callback receives the current samples, accelerations and events.
type Callback func(samples []sample.Sample, accelerations []float64, events []Event)

// SpeedMeter processes samples, maintains buffers, and detects motion events.
type SpeedMeter interface {
	ProcessSamples(input <-chan sample.Sample)
	Samples() []sample.Sample // Get current samples buffer (FIFO, ordered first to last)
	Accelerations() []float64 // Get acceleration in rev/s^2 (n-1 values for n samples)
	Events() []Event          // Get events within window
	OnUpdate(Callback)        // Register callback for updates
}

// Meter implements SpeedMeter.
//
// Samples and accelerations are FIFO buffers removed by timestamp, not count.
// accelerations[i] is the change from samples[i] to samples[i+1] over their
// time difference, so n samples have n-1 accelerations.
type Meter struct {
	mu            sync.RWMutex
	samples       []sample.Sample
	accelerations []float64
	events        []Event

	// Direction tracking
	heading      velocity.Direction // last settled direction
	stoppedSince time.Time          // zero while moving
	stall        int                // index of the open stall event, -1 if none

	callbacks []Callback
	cbMu      sync.RWMutex

	// Configuration
	windowDuration time.Duration
	stallTimeout   time.Duration
	hysteresis     float64

	// Set to true when input channel closes, prevents further callbacks
	shutdown bool
}

// New creates a new meter instance.
func New(cfg *config.Config) *Meter {
	return &Meter{
		samples:        make([]sample.Sample, 0),
		accelerations:  make([]float64, 0),
		events:         make([]Event, 0),
		stall:          -1,
		windowDuration: time.Duration(cfg.Measurement.WindowSeconds * float64(time.Second)),
		stallTimeout:   cfg.Measurement.StallTimeout,
		hysteresis:     cfg.Measurement.ReversalHysteresis,
	}
}

// ProcessSamples processes samples from the input channel until it closes.
// After that no more callbacks are sent.
func (m *Meter) ProcessSamples(input <-chan sample.Sample) {
	for s := range input {
		m.processSample(s)
	}
	m.mu.Lock()
	m.shutdown = true
	m.mu.Unlock()
}

// processSample adds a sample, trims the window, updates the acceleration and
// detects events.
func (m *Meter) processSample(s sample.Sample) {
	m.mu.Lock()

	m.samples = append(m.samples, s)
	m.trim(s.Timestamp.Add(-m.windowDuration))

	if n := len(m.samples); n >= 2 {
		prev, curr := m.samples[n-2], m.samples[n-1]
		if dt := curr.Timestamp.Sub(prev.Timestamp).Seconds(); dt > 0 {
			m.accelerations = append(m.accelerations, (curr.Speed-prev.Speed)/dt)
		} else {
			m.accelerations = append(m.accelerations, 0)
		}
	}

	m.detectReversal(s)
	m.detectStall(s)

	shouldNotify := !m.shutdown
	m.mu.Unlock()

	if shouldNotify {
		m.notifyCallbacks()
	}
}

// trim removes samples at or before cutoff together with their
// accelerations, and events that started before the oldest kept sample.
func (m *Meter) trim(cutoff time.Time) {
	cut := 0
	for cut < len(m.samples)-1 && !m.samples[cut].Timestamp.After(cutoff) {
		cut++
	}
	if cut == 0 {
		return
	}

	m.samples = m.samples[cut:]
	if cut <= len(m.accelerations) {
		m.accelerations = m.accelerations[cut:]
	} else {
		m.accelerations = m.accelerations[:0]
	}

	oldest := m.samples[0].Timestamp
	kept := m.events[:0]
	open := -1
	for i, e := range m.events {
		if e.Time.Before(oldest) && i != m.stall {
			continue
		}
		if i == m.stall {
			open = len(kept)
		}
		kept = append(kept, e)
	}
	m.events = kept
	m.stall = open
}

// settled returns the direction s counts as, Stopped while |speed| is within
// the hysteresis band.
func (m *Meter) settled(s sample.Sample) velocity.Direction {
	switch {
	case s.Speed > m.hysteresis:
		return velocity.CW
	case s.Speed < -m.hysteresis:
		return velocity.CCW
	}
	return velocity.Stopped
}

func (m *Meter) detectReversal(s sample.Sample) {
	dir := m.settled(s)
	if dir == velocity.Stopped {
		return
	}
	if m.heading != velocity.Stopped && dir != m.heading {
		m.events = append(m.events, Event{
			Kind: Reversal,
			Time: s.Timestamp,
			From: m.heading,
			To:   dir,
		})
	}
	m.heading = dir
}

func (m *Meter) detectStall(s sample.Sample) {
	if s.Direction != velocity.Stopped {
		m.stoppedSince = time.Time{}
		m.stall = -1
		return
	}
	if m.stoppedSince.IsZero() {
		m.stoppedSince = s.Timestamp
	}

	stopped := s.Timestamp.Sub(m.stoppedSince)
	switch {
	case m.stall >= 0:
		m.events[m.stall].Duration = stopped
	case stopped >= m.stallTimeout:
		m.events = append(m.events, Event{Kind: Stall, Time: m.stoppedSince, Duration: stopped})
		m.stall = len(m.events) - 1
	}
}

// Samples returns a copy of the current samples buffer.
func (m *Meter) Samples() []sample.Sample {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]sample.Sample, len(m.samples))
	copy(result, m.samples)
	return result
}

// Accelerations returns a copy of the current acceleration buffer.
func (m *Meter) Accelerations() []float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]float64, len(m.accelerations))
	copy(result, m.accelerations)
	return result
}

// Events returns a copy of the current events list.
func (m *Meter) Events() []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Event, len(m.events))
	copy(result, m.events)
	return result
}

// Latest returns the newest sample and whether there is one.
func (m *Meter) Latest() (sample.Sample, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.samples) == 0 {
		return sample.Sample{}, false
	}
	return m.samples[len(m.samples)-1], true
}

// Peak returns the largest absolute speed in the window.
func (m *Meter) Peak() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var peak float64
	for _, s := range m.samples {
		peak = math.Max(peak, math.Abs(s.Speed))
	}
	return peak
}

// OnUpdate registers a callback function that will be called when samples are updated.
// The callback should copy data quickly and return as fast as possible.
func (m *Meter) OnUpdate(callback Callback) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

// ResetShutdown resets the shutdown flag, allowing callbacks to be sent again.
// This should be called before starting a new measurement chain.
func (m *Meter) ResetShutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdown = false
}

// notifyCallbacks invokes all registered callbacks with copies of the data.
func (m *Meter) notifyCallbacks() {
	samples := m.Samples()
	accelerations := m.Accelerations()
	events := m.Events()

	m.cbMu.RLock()
	callbacks := make([]Callback, len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.cbMu.RUnlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb(samples, accelerations, events)
		}
	}
}
