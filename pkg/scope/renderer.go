package scope

import (
	"image/color"
	"math"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"github.com/chewxy/math32"
	"github.com/itohio/gotacho/pkg/meter"
	"github.com/itohio/gotacho/pkg/sample"
)

var (
	gridColor     = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	zeroColor     = color.RGBA{R: 90, G: 90, B: 90, A: 255}
	labelColor    = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	speedColor    = color.RGBA{R: 255, G: 165, B: 0, A: 255}   // Orange
	accelColor    = color.RGBA{R: 100, G: 200, B: 255, A: 255} // Light blue
	reversalColor = color.RGBA{R: 220, G: 80, B: 220, A: 255}  // Magenta
	stallColor    = color.RGBA{R: 200, G: 60, B: 60, A: 60}    // Translucent red
)

// plot is the drawing area and the current axis ranges.
type plot struct {
	x, y, w, h float32
	yMin, yMax float64
	aMin, aMax float64
	xMin, xMax time.Time
}

// timeX maps a timestamp to a horizontal position, clamped to the plot.
func (p *plot) timeX(t time.Time) float32 {
	span := p.xMax.Sub(p.xMin).Seconds()
	if span <= 0 {
		return p.x
	}
	f := float32(t.Sub(p.xMin).Seconds() / span)
	return p.x + math32.Min(math32.Max(f, 0), 1)*p.w
}

// valueY maps v within [lo, hi] to a vertical position, clamped to the plot.
func (p *plot) valueY(v, lo, hi float64) float32 {
	f := float32((v - lo) / (hi - lo))
	return p.y + p.h - math32.Min(math32.Max(f, 0), 1)*p.h
}

// scopeRenderer renders the scope widget.
type scopeRenderer struct {
	scope *ScopeWidget

	// Background
	grid *canvas.Rectangle

	// Objects list for Fyne
	objects []fyne.CanvasObject

	// Track last size to detect changes
	lastSize fyne.Size
}

// MinSize returns the minimum size of the widget.
func (r *scopeRenderer) MinSize() fyne.Size {
	return fyne.NewSize(400, 300)
}

// Layout arranges the widget components.
func (r *scopeRenderer) Layout(size fyne.Size) {
	// Background fills entire widget
	r.grid.Resize(size)

	if r.lastSize.Width != size.Width || r.lastSize.Height != size.Height {
		r.lastSize = size
		// Size changed, redraw with new dimensions
		r.scope.BaseWidget.Refresh()
	}
}

// Refresh updates the widget display.
func (r *scopeRenderer) Refresh() {
	r.scope.mu.RLock()
	samples := r.scope.displaySamples
	accelerations := r.scope.displayAccelerations
	accelTimes := r.scope.displayAccelTimes
	events := r.scope.events
	latest, hasAny := r.scope.latest, r.scope.hasAny
	p := plot{
		yMin: r.scope.yMin, yMax: r.scope.yMax,
		aMin: r.scope.aMin, aMax: r.scope.aMax,
		xMin: r.scope.xMin, xMax: r.scope.xMax,
	}
	r.scope.mu.RUnlock()

	size := r.scope.Size()
	if size.Width == 0 || size.Height == 0 {
		return
	}

	// Clear old objects (but keep grid)
	r.objects = []fyne.CanvasObject{r.grid}

	marginLeft := float32(70.0)
	marginRight := float32(70.0)
	marginTop := float32(20.0)
	marginBottom := float32(40.0)

	p.x, p.y = marginLeft, marginTop
	p.w = math32.Max(size.Width-marginLeft-marginRight, 1)
	p.h = math32.Max(size.Height-marginTop-marginBottom, 1)

	r.drawGrid(&p)
	r.drawStalls(&p, events)
	r.drawAccelerations(&p, accelerations, accelTimes)
	r.drawSpeed(&p, samples)
	r.drawReversals(&p, events)
	if hasAny {
		r.drawReadout(&p, latest)
	}
}

// drawGrid draws the oscilloscope-style grid with speed labels on the left
// and acceleration labels on the right.
func (r *scopeRenderer) drawGrid(p *plot) {
	numHLines := 8
	for i := range numHLines + 1 {
		y := p.y + float32(i)*p.h/float32(numHLines)
		r.addLine(gridColor, 1, fyne.NewPos(p.x, y), fyne.NewPos(p.x+p.w, y))

		speed := p.yMax - float64(i)*(p.yMax-p.yMin)/float64(numHLines)
		r.addText(formatFloat(speed, 2), labelColor, 10, fyne.TextAlignTrailing, fyne.NewPos(p.x-5, y-6))

		accel := p.aMax - float64(i)*(p.aMax-p.aMin)/float64(numHLines)
		r.addText(formatFloat(accel, 1), accelColor, 10, fyne.TextAlignLeading, fyne.NewPos(p.x+p.w+5, y-6))
	}
	r.addText("rev/s", speedColor, 10, fyne.TextAlignTrailing, fyne.NewPos(p.x-5, p.y+p.h+20))
	r.addText("rev/s²", accelColor, 10, fyne.TextAlignLeading, fyne.NewPos(p.x+p.w+5, p.y+p.h+20))

	numVLines := 10
	for i := range numVLines + 1 {
		x := p.x + float32(i)*p.w/float32(numVLines)
		r.addLine(gridColor, 1, fyne.NewPos(x, p.y), fyne.NewPos(x, p.y+p.h))

		offset := time.Duration(float64(i) * float64(p.xMax.Sub(p.xMin)) / float64(numVLines))
		r.addText(formatTime(offset), labelColor, 10, fyne.TextAlignCenter, fyne.NewPos(x-20, p.y+p.h+5))
	}

	if p.yMin < 0 && p.yMax > 0 {
		y := p.valueY(0, p.yMin, p.yMax)
		r.addLine(zeroColor, 1, fyne.NewPos(p.x, y), fyne.NewPos(p.x+p.w, y))
	}
}

// drawSpeed draws the speed curve (orange).
func (r *scopeRenderer) drawSpeed(p *plot, samples []sample.Sample) {
	if len(samples) < 2 {
		return
	}
	prev := fyne.NewPos(p.timeX(samples[0].Timestamp), p.valueY(samples[0].Speed, p.yMin, p.yMax))
	for _, s := range samples[1:] {
		next := fyne.NewPos(p.timeX(s.Timestamp), p.valueY(s.Speed, p.yMin, p.yMax))
		r.addLine(speedColor, 1.5, prev, next)
		prev = next
	}
}

// drawAccelerations draws the acceleration curve (light blue, thicker).
func (r *scopeRenderer) drawAccelerations(p *plot, acc []float64, times []time.Time) {
	n := min(len(acc), len(times))
	if n < 2 {
		return
	}
	prev := fyne.NewPos(p.timeX(times[0]), p.valueY(acc[0], p.aMin, p.aMax))
	for i := 1; i < n; i++ {
		next := fyne.NewPos(p.timeX(times[i]), p.valueY(acc[i], p.aMin, p.aMax))
		r.addLine(accelColor, 2.5, prev, next)
		prev = next
	}
}

// drawReversals marks each reversal with a vertical line and the new
// direction.
func (r *scopeRenderer) drawReversals(p *plot, events []meter.Event) {
	for _, e := range events {
		if e.Kind != meter.Reversal || e.Time.Before(p.xMin) {
			continue
		}
		x := p.timeX(e.Time)
		r.addLine(reversalColor, 1, fyne.NewPos(x, p.y), fyne.NewPos(x, p.y+p.h))
		label := "→CW"
		if e.To < 0 {
			label = "←CCW"
		}
		r.addText(label, reversalColor, 11, fyne.TextAlignCenter, fyne.NewPos(x-15, p.y+2))
	}
}

// drawStalls shades the stretch of each stall.
func (r *scopeRenderer) drawStalls(p *plot, events []meter.Event) {
	for _, e := range events {
		if e.Kind != meter.Stall {
			continue
		}
		x0 := p.timeX(e.Time)
		x1 := p.timeX(e.Time.Add(e.Duration))
		if x1-x0 < 1 {
			continue
		}
		rect := canvas.NewRectangle(stallColor)
		rect.Move(fyne.NewPos(x0, p.y))
		rect.Resize(fyne.NewSize(x1-x0, p.h))
		r.objects = append(r.objects, rect)
		r.addText("STALL "+formatTime(e.Duration), labelColor, 11, fyne.TextAlignLeading, fyne.NewPos(x0+4, p.y+p.h-18))
	}
}

// drawReadout shows the newest speed in the top left corner.
func (r *scopeRenderer) drawReadout(p *plot, s sample.Sample) {
	text := formatFloat(s.Speed, 3) + " rev/s   " + formatFloat(s.RPM, 1) + " RPM   " + s.Direction.String()
	r.addText(text, color.RGBA{R: 200, G: 200, B: 200, A: 255}, 12, fyne.TextAlignLeading, fyne.NewPos(p.x+10, p.y+10))
}

func (r *scopeRenderer) addLine(c color.Color, width float32, from, to fyne.Position) {
	line := canvas.NewLine(c)
	line.Position1 = from
	line.Position2 = to
	line.StrokeWidth = width
	r.objects = append(r.objects, line)
}

func (r *scopeRenderer) addText(s string, c color.Color, size float32, align fyne.TextAlign, pos fyne.Position) {
	text := canvas.NewText(s, c)
	text.TextSize = size
	text.Alignment = align
	text.Move(pos)
	r.objects = append(r.objects, text)
}

// Objects returns all canvas objects for rendering.
func (r *scopeRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

// Destroy cleans up resources.
func (r *scopeRenderer) Destroy() {
	// Cleanup handled by Fyne
}

func formatTime(d time.Duration) string {
	if d < time.Second {
		return formatFloat(d.Seconds(), 2) + "s"
	}
	return formatFloat(d.Seconds(), 1) + "s"
}

func formatFloat(v float64, decimals int) string {
	if math.Abs(v) < 0.5*math.Pow(10, -float64(decimals)) {
		v = 0 // no "-0.00"
	}
	return strconv.FormatFloat(v, 'f', decimals, 64)
}
