package sim

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/itohio/gotacho/pkg/hal"
)

// cwOrder is the phase sequence for clockwise rotation, bit1 = A, bit0 = B.
var cwOrder = [4]uint8{0, 1, 3, 2}

// Motor turns a simulated shaft and drives the encoder phases. Each step
// changes exactly one phase, except for injected misses which change both.
type Motor struct {
	EdgesPerRev int
	// BounceRate is the probability that an edge is followed by a bounce:
	// the phase flips back and forth once more.
	BounceRate float64
	// MissRate is the probability that two steps arrive as one change of
	// both phases, which the decoder cannot attribute.
	MissRate float64

	gpio *GPIO
	a, b hal.Pin

	mu     sync.Mutex
	speed  float64 // rev/s, signed
	frac   float64 // fractional edges carried between advances
	index  int     // position in cwOrder
	steps  int64   // true signed edge count
	misses int64
	rng    *rand.Rand
}

// NewMotor attaches a motor to phase pins a and b and sets them to state 0.
func NewMotor(gpio *GPIO, a, b hal.Pin, edgesPerRev int, seed int64) *Motor {
	gpio.Set(a, false)
	gpio.Set(b, false)
	return &Motor{
		EdgesPerRev: edgesPerRev,
		gpio:        gpio,
		a:           a,
		b:           b,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

// SetSpeed sets the shaft speed in revolutions per second; negative is CCW.
func (m *Motor) SetSpeed(revPerSec float64) {
	m.mu.Lock()
	m.speed = revPerSec
	m.mu.Unlock()
}

// Speed returns the shaft speed.
func (m *Motor) Speed() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speed
}

// Steps returns the true signed number of edges the shaft has produced.
func (m *Motor) Steps() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.steps
}

// Misses returns how many double steps were injected.
func (m *Motor) Misses() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.misses
}

// Advance turns the shaft for dt at the current speed.
func (m *Motor) Advance(dt time.Duration) error {
	m.mu.Lock()
	m.frac += m.speed * float64(m.EdgesPerRev) * dt.Seconds()
	m.mu.Unlock()

	for {
		m.mu.Lock()
		var dir int
		switch {
		case m.frac >= 1:
			dir = 1
		case m.frac <= -1:
			dir = -1
		}
		m.mu.Unlock()
		if dir == 0 {
			return nil
		}
		if err := m.step(dir, true); err != nil {
			return err
		}
	}
}

// Step moves the shaft one edge in dir (+1 CW, -1 CCW) independently of the
// speed. Bounces are injected, misses are not.
func (m *Motor) Step(dir int) error {
	return m.step(dir, false)
}

// step moves the shaft. Steps taken for the speed integrator consume frac and
// may skip a state when at least two edges are owed.
func (m *Motor) step(dir int, integrate bool) error {
	m.mu.Lock()
	n := 1
	if integrate && m.MissRate > 0 && m.frac*float64(dir) >= 2 && m.rng.Float64() < m.MissRate {
		n = 2
		m.misses++
	}
	bounce := m.BounceRate > 0 && m.rng.Float64() < m.BounceRate
	prev := cwOrder[m.index]
	m.index = (m.index + 4 + n*dir) % 4
	next := cwOrder[m.index]
	m.steps += int64(n * dir)
	if integrate {
		m.frac -= float64(n * dir)
	}
	m.mu.Unlock()

	if err := m.drive(next); err != nil {
		return err
	}
	if bounce {
		if err := m.drive(prev); err != nil {
			return err
		}
		return m.drive(next)
	}
	return nil
}

func (m *Motor) drive(state uint8) error {
	return m.gpio.Drive(
		Level{Pin: m.a, High: state&0b10 != 0},
		Level{Pin: m.b, High: state&0b01 != 0},
	)
}

// Run advances the motor in real time every period until ctx is done.
func (m *Motor) Run(ctx context.Context, period time.Duration) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := m.Advance(period); err != nil {
				return err
			}
		}
	}
}
