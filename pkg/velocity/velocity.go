// Package velocity turns position changes per tick into a signed speed in
// thousandths of a revolution per second.
package velocity

import (
	"io"
	"math"
	"strconv"

	"github.com/itohio/gotacho/pkg/hal"
)

const (
	// PulsesPerRevolution of the encoder (25GA-370 gear motor).
	PulsesPerRevolution = 120
	// EdgesPerPulse counted by the decoder (both edges of both phases).
	EdgesPerPulse = 4
	// EdgesPerRevolution is the decoder resolution.
	EdgesPerRevolution = PulsesPerRevolution * EdgesPerPulse
	// TickMillis is the estimator period.
	TickMillis = 100
	// Scale converts edges per tick to thousandths of rev/s: 1000 per rev/s
	// times 10 ticks per second.
	Scale = 1000 * 1000 / TickMillis
)

// Direction of rotation.
type Direction int8

const (
	Stopped Direction = 0
	CW      Direction = 1
	CCW     Direction = -1
)

func (d Direction) String() string {
	switch d {
	case CW:
		return "CW (Clockwise)"
	case CCW:
		return "CCW (Counter-clockwise)"
	}
	return "Stopped"
}

// Sample is one tick's measurement.
type Sample struct {
	Count       int32 // position counter when sampled
	Delta       int32 // position change since the previous tick
	Thousandths int32 // speed in 1/1000 rev/s, same sign as Delta
	Direction   Direction
}

// Compute derives the sample for a position change. The division truncates
// toward zero so the speed always has the sign of delta. The product is formed
// in 64 bits; a delta above ~103M edges per tick saturates the speed.
func Compute(count, delta int32) Sample {
	s := Sample{
		Count:       count,
		Delta:       delta,
		Thousandths: thousandths(delta),
	}
	switch {
	case delta > 0:
		s.Direction = CW
	case delta < 0:
		s.Direction = CCW
	}
	return s
}

func thousandths(delta int32) int32 {
	t := int64(delta) * Scale / EdgesPerRevolution
	switch {
	case t > math.MaxInt32:
		return math.MaxInt32
	case t < math.MinInt32:
		return math.MinInt32
	}
	return int32(t)
}

// Whole returns the integer part of the speed magnitude and its fraction in
// thousandths; both are non-negative.
func (s Sample) Whole() (whole, frac uint32) {
	m := s.Thousandths
	var u uint32
	if m < 0 {
		u = uint32(-int64(m))
	} else {
		u = uint32(m)
	}
	return u / 1000, u % 1000
}

// AppendSpeed appends the speed as "[-]W.FFF". A negative speed has a single
// leading sign and unsigned digits.
func (s Sample) AppendSpeed(b []byte) []byte {
	if s.Thousandths < 0 {
		b = append(b, '-')
	}
	whole, frac := s.Whole()
	b = strconv.AppendUint(b, uint64(whole), 10)
	b = append(b, '.')
	if frac < 100 {
		b = append(b, '0')
	}
	if frac < 10 {
		b = append(b, '0')
	}
	return strconv.AppendUint(b, uint64(frac), 10)
}

// AppendText appends the report line without a trailing newline:
//
//	Count: 480, Diff: 480, Speed: 10.000 rev/s, Direction: CW (Clockwise)
func (s Sample) AppendText(b []byte) []byte {
	b = append(b, "Count: "...)
	b = strconv.AppendInt(b, int64(s.Count), 10)
	b = append(b, ", Diff: "...)
	b = strconv.AppendInt(b, int64(s.Delta), 10)
	b = append(b, ", Speed: "...)
	b = s.AppendSpeed(b)
	b = append(b, " rev/s, Direction: "...)
	return append(b, s.Direction.String()...)
}

func (s Sample) String() string {
	return string(s.AppendText(nil))
}

// Snapshot returns the current position counter. It must read the counter in
// one indivisible step with respect to the edge interrupt.
type Snapshot func() int32

// Estimator runs once per tick. It owns the baseline; nothing else writes it.
type Estimator struct {
	read     Snapshot
	baseline int32

	out  io.Writer
	gpio hal.GPIO
	led  hal.Pin
	buf  []byte
}

// New creates an estimator. out receives one report line per tick and may be
// nil; the status LED on led is toggled every tick.
func New(read Snapshot, out io.Writer, gpio hal.GPIO, led hal.Pin) *Estimator {
	return &Estimator{
		read: read,
		out:  out,
		gpio: gpio,
		led:  led,
		buf:  make([]byte, 0, 96),
	}
}

// Reset sets the baseline to the current position, so the next tick reports
// only motion from now on.
func (e *Estimator) Reset() {
	e.baseline = e.read()
}

// Baseline returns the position the next delta is measured from.
func (e *Estimator) Baseline() int32 {
	return e.baseline
}

// Tick samples the position, rebases, reports and toggles the status LED.
func (e *Estimator) Tick() Sample {
	count := e.read()
	s := Compute(count, count-e.baseline)
	e.baseline = count

	if e.out != nil {
		e.buf = s.AppendText(e.buf[:0])
		e.buf = append(e.buf, '\n')
		_, _ = e.out.Write(e.buf)
	}
	if e.gpio != nil {
		e.gpio.TogglePin(e.led)
	}
	return s
}
