// Package scope is an oscilloscope-style Fyne widget for the speed and
// acceleration traces.
package scope

import (
	"image/color"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/gotacho/pkg/config"
	"github.com/itohio/gotacho/pkg/meter"
	"github.com/itohio/gotacho/pkg/sample"
)

// ScopeWidget is a custom Fyne widget that displays the measurement graphs.
type ScopeWidget struct {
	widget.BaseWidget

	cfg *config.Config

	// Data (protected by mu)
	mu     sync.RWMutex
	events []meter.Event
	latest sample.Sample
	hasAny bool

	// Display buffers (reused for downsampling)
	displaySamples       []sample.Sample
	displayAccelerations []float64
	displayAccelTimes    []time.Time

	// Auto-scaling: speed on the left axis, acceleration on the right
	yMin, yMax float64
	aMin, aMax float64
	xMin, xMax time.Time

	// Display settings
	maxDisplayPoints int
}

// New creates a new ScopeWidget instance.
func New(cfg *config.Config) *ScopeWidget {
	s := &ScopeWidget{
		cfg:                  cfg,
		displaySamples:       make([]sample.Sample, 0, 1000),
		displayAccelerations: make([]float64, 0, 1000),
		displayAccelTimes:    make([]time.Time, 0, 1000),
		maxDisplayPoints:     1000, // Limit points for efficient rendering
	}
	s.updateAutoScale()
	s.ExtendBaseWidget(s)
	// Trigger initial refresh to display empty scope
	s.Refresh()
	return s
}

// UpdateData updates the widget with new measurement data.
// This should be called from the measurement callback using fyne.Do().
func (s *ScopeWidget) UpdateData(samples []sample.Sample, accelerations []float64, events []meter.Event) {
	s.mu.Lock()

	s.displaySamples = sample.DownsampleSamples(s.displaySamples, samples, s.maxDisplayPoints)
	s.displayAccelerations, s.displayAccelTimes = downsampleAccelerations(
		s.displayAccelerations, s.displayAccelTimes, samples, accelerations, s.maxDisplayPoints)
	s.events = events
	if len(samples) > 0 {
		s.latest = samples[len(samples)-1]
		s.hasAny = true
	}

	s.updateAutoScale()

	s.mu.Unlock()

	// Refresh the widget (must be outside lock to avoid potential deadlock)
	s.Refresh()
}

// downsampleAccelerations pairs each acceleration with the midpoint of its
// sample pair and decimates both together.
func downsampleAccelerations(dstA []float64, dstT []time.Time, samples []sample.Sample, acc []float64, maxPoints int) ([]float64, []time.Time) {
	n := min(len(acc), len(samples)-1)
	if n <= 0 {
		return dstA[:0], dstT[:0]
	}

	times := make([]time.Time, n)
	for i := range n {
		times[i] = samples[i].Timestamp.Add(samples[i+1].Timestamp.Sub(samples[i].Timestamp) / 2)
	}
	dstA = sample.DownsampleValues(dstA, acc[:n], maxPoints)

	dstT = dstT[:0]
	if n <= maxPoints {
		return dstA, append(dstT, times...)
	}
	step := float64(n) / float64(maxPoints)
	for i := range len(dstA) {
		dstT = append(dstT, times[int(float64(i)*step)])
	}
	return dstA, dstT
}

// updateAutoScale calculates axis ranges from current data.
func (s *ScopeWidget) updateAutoScale() {
	window := time.Duration(s.cfg.Measurement.WindowSeconds * float64(time.Second))

	if len(s.displaySamples) == 0 {
		s.yMin, s.yMax = -1, 1
		s.aMin, s.aMax = -1, 1
		s.xMin = time.Now()
		s.xMax = s.xMin.Add(window)
		return
	}

	s.yMin, s.yMax = 0, 0 // keep zero speed on screen
	for _, smp := range s.displaySamples {
		s.yMin = min(s.yMin, smp.Speed)
		s.yMax = max(s.yMax, smp.Speed)
	}
	s.yMin, s.yMax = withMargin(s.yMin, s.yMax)

	s.aMin, s.aMax = 0, 0
	for _, a := range s.displayAccelerations {
		s.aMin = min(s.aMin, a)
		s.aMax = max(s.aMax, a)
	}
	s.aMin, s.aMax = withMargin(s.aMin, s.aMax)

	s.xMin = s.displaySamples[0].Timestamp
	s.xMax = s.displaySamples[len(s.displaySamples)-1].Timestamp
	// Ensure minimum window
	if s.xMax.Sub(s.xMin) < window {
		s.xMax = s.xMin.Add(window)
	}
}

// withMargin adds 10% on both sides of a range.
func withMargin(lo, hi float64) (float64, float64) {
	span := hi - lo
	if span == 0 {
		span = 1.0
	}
	margin := span * 0.1
	return lo - margin, hi + margin
}

// CreateRenderer creates the widget renderer.
func (s *ScopeWidget) CreateRenderer() fyne.WidgetRenderer {
	grid := canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255}) // Dark background
	return &scopeRenderer{
		scope:    s,
		grid:     grid,
		objects:  []fyne.CanvasObject{grid},
		lastSize: fyne.Size{Width: 0, Height: 0},
	}
}
