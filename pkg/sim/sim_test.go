package sim

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/itohio/gotacho/pkg/exti"
	"github.com/itohio/gotacho/pkg/hal"
	"github.com/itohio/gotacho/pkg/nvic"
	"github.com/itohio/gotacho/pkg/tim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNVIC_EnableRegisters(t *testing.T) {
	n := NewNVIC()

	n.EnableIRQ(nvic.EXTI0)
	n.EnableIRQ(nvic.EXTI1)
	n.EnableIRQ(nvic.TIM7)
	assert.True(t, n.Enabled(nvic.EXTI0))
	assert.True(t, n.Enabled(nvic.TIM7))
	assert.Equal(t, uint32(1<<6|1<<7), n.ISER[0].Get())
	assert.Equal(t, n.ISER[0].Get(), n.ICER[0].Get())

	n.DisableIRQ(nvic.EXTI0)
	assert.False(t, n.Enabled(nvic.EXTI0))
	assert.True(t, n.Enabled(nvic.EXTI1))

	// A read-modify-write of ICER writes back every enabled bit.
	n.ICER[0].SetBits(1 << 9)
	assert.False(t, n.Enabled(nvic.EXTI1))
	assert.True(t, n.Enabled(nvic.TIM7))
}

func TestNVIC_Raise(t *testing.T) {
	n := NewNVIC()
	var d nvic.Dispatcher
	n.Attach(&d)

	var pending atomic.Bool
	calls := 0
	d.Register(nvic.TIM2, nvic.PriorityTick, func() {
		calls++
		pending.Store(false)
	})
	n.Source(nvic.TIM2, pending.Load)
	d.Arm(n)

	pending.Store(true)
	require.NoError(t, n.Raise(nvic.TIM2))
	assert.Zero(t, calls, "global delivery is off")

	require.NoError(t, n.EnableGlobal())
	assert.Equal(t, 1, calls, "latched source delivered on enable")

	pending.Store(true)
	require.NoError(t, n.Raise(nvic.TIM2))
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, n.Deliveries(nvic.TIM2))

	n.DisableIRQ(nvic.TIM2)
	pending.Store(true)
	require.NoError(t, n.Raise(nvic.TIM2))
	assert.Equal(t, 2, calls)
}

func TestNVIC_InterruptStorm(t *testing.T) {
	n := NewNVIC()
	n.StormLimit = 5
	var d nvic.Dispatcher
	n.Attach(&d)

	calls := 0
	d.Register(nvic.EXTI0, nvic.PriorityEdge, func() { calls++ })
	n.Source(nvic.EXTI0, func() bool { return true })
	d.Arm(n)
	n.global = true

	assert.ErrorIs(t, n.Raise(nvic.EXTI0), ErrInterruptStorm)
	assert.Equal(t, 5, calls)
}

func TestNVIC_Preemption(t *testing.T) {
	n := NewNVIC()
	var d nvic.Dispatcher
	n.Attach(&d)

	inTick := make(chan struct{})
	release := make(chan struct{})
	var edges atomic.Int32
	d.Register(nvic.TIM2, nvic.PriorityTick, func() {
		close(inTick)
		<-release
	})
	d.Register(nvic.EXTI0, nvic.PriorityEdge, func() { edges.Add(1) })
	d.Arm(n)
	require.NoError(t, n.EnableGlobal())

	done := make(chan error, 1)
	go func() { done <- n.Raise(nvic.TIM2) }()
	<-inTick

	// The tick handler is still running; the more urgent edge completes.
	require.NoError(t, n.Raise(nvic.EXTI0))
	assert.Equal(t, int32(1), edges.Load())

	close(release)
	require.NoError(t, <-done)
}

func TestGPIO_Drive(t *testing.T) {
	m := NewMCU()
	lines := m.Lines()
	a, b := hal.PA(0), hal.PB(1)

	lines.Enable(a, hal.Rising)
	lines.Enable(hal.PA(1), hal.Both)

	tests := []struct {
		name    string
		pin     hal.Pin
		high    bool
		pending bool
	}{
		{"rising on rising line", a, true, true},
		{"falling on rising line", a, false, false},
		{"same level again", a, false, false},
		{"other port on line 1", b, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, m.GPIO.Drive(Level{Pin: tt.pin, High: tt.high}))
			assert.Equal(t, tt.high, m.GPIO.ReadPin(tt.pin))
			assert.Equal(t, tt.pending, lines.IsPending(tt.pin))
			lines.ClearPending(tt.pin)
		})
	}
}

func TestGPIO_DriveTogether(t *testing.T) {
	m := NewMCU()
	var d nvic.Dispatcher
	m.NVIC.Attach(&d)
	lines := m.Lines()
	a, b := hal.PA(0), hal.PA(1)

	var seen [][2]bool
	handler := func(pin hal.Pin) nvic.Handler {
		return func() {
			lines.ClearPending(pin)
			seen = append(seen, [2]bool{m.GPIO.ReadPin(a), m.GPIO.ReadPin(b)})
		}
	}
	d.Register(nvic.EXTI0, nvic.PriorityEdge, handler(a))
	d.Register(nvic.EXTI1, nvic.PriorityEdge, handler(b))
	d.Arm(m.NVIC)
	lines.Enable(a, hal.Both)
	lines.Enable(b, hal.Both)
	require.NoError(t, m.NVIC.EnableGlobal())

	require.NoError(t, m.GPIO.Drive(Level{Pin: a, High: true}, Level{Pin: b, High: true}))

	assert.Equal(t, [][2]bool{{true, true}, {true, true}}, seen)
}

func TestGPIO_Writes(t *testing.T) {
	m := NewMCU()
	led := hal.PB(3)

	m.GPIO.WritePin(led, true)
	m.GPIO.TogglePin(led)
	m.GPIO.Set(led, true)

	assert.True(t, m.GPIO.ReadPin(led))
	assert.Equal(t, 2, m.GPIO.Writes(led))
}

func TestTimer_Advance(t *testing.T) {
	m := NewMCU()
	var d nvic.Dispatcher
	m.NVIC.Attach(&d)
	timer := m.Timer()

	ticks := 0
	d.Register(timer.IRQ, nvic.PriorityTick, func() {
		timer.ClearFlag()
		ticks++
	})
	d.Arm(m.NVIC)

	timer.Init(CoreClockHz)
	assert.Equal(t, uint32(3999), m.TIM2.Prescaler())
	assert.True(t, timer.IsFlagSet(), "UG raises the update flag")
	timer.ClearFlag()

	timer.EnablePeriodicInterrupt(10)
	require.NoError(t, m.NVIC.EnableGlobal())

	require.NoError(t, m.TIM2.Advance(9))
	assert.Zero(t, ticks)
	require.NoError(t, m.TIM2.Advance(1))
	assert.Equal(t, 1, ticks)
	require.NoError(t, m.TIM2.Advance(25))
	assert.Equal(t, 3, ticks)
	assert.Equal(t, 3, m.TIM2.Updates())
}

func TestTimer_StoppedCounter(t *testing.T) {
	m := NewMCU()
	require.NoError(t, m.TIM2.Advance(1000))
	assert.Zero(t, m.TIM2.Updates())
	assert.False(t, m.TIM2.Running())
}

func TestTimer_UncleredFlag(t *testing.T) {
	m := NewMCU()
	var d nvic.Dispatcher
	m.NVIC.Attach(&d)
	m.NVIC.StormLimit = 10
	timer := m.Timer()

	d.Register(timer.IRQ, nvic.PriorityTick, func() {})
	d.Arm(m.NVIC)
	timer.Init(CoreClockHz)
	timer.ClearFlag()
	timer.EnablePeriodicInterrupt(1)
	require.NoError(t, m.NVIC.EnableGlobal())

	assert.ErrorIs(t, m.TIM2.Advance(1), ErrInterruptStorm)
}

func TestMCU_SharedVectors(t *testing.T) {
	m := NewMCU()
	var d nvic.Dispatcher
	m.NVIC.Attach(&d)
	lines := m.Lines()
	pin := hal.PB(7)

	var fired []uint8
	d.Register(nvic.EXTI9_5, nvic.PriorityEdge, func() {
		for _, line := range exti.Lines(nvic.EXTI9_5) {
			p := hal.Pin{Port: lines.Port(line), Offset: line}
			if lines.IsPending(p) {
				lines.ClearPending(p)
				fired = append(fired, line)
			}
		}
	})
	d.Arm(m.NVIC)
	lines.Enable(pin, hal.Falling)
	m.GPIO.Set(pin, true)
	require.NoError(t, m.NVIC.EnableGlobal())

	require.NoError(t, m.GPIO.Drive(Level{Pin: pin, High: false}))
	assert.Equal(t, []uint8{7}, fired)
}

func TestMotor_Sequence(t *testing.T) {
	m := NewMCU()
	a, b := hal.PA(0), hal.PA(1)
	motor := NewMotor(m.GPIO, a, b, 480, 1)

	levels := func() [2]bool { return [2]bool{m.GPIO.ReadPin(a), m.GPIO.ReadPin(b)} }

	var cw [][2]bool
	for i := 0; i < 4; i++ {
		require.NoError(t, motor.Step(1))
		cw = append(cw, levels())
	}
	assert.Equal(t, [][2]bool{{false, true}, {true, true}, {true, false}, {false, false}}, cw)

	require.NoError(t, motor.Step(-1))
	assert.Equal(t, [2]bool{true, false}, levels())
	assert.Equal(t, int64(3), motor.Steps())
}

func TestMotor_Advance(t *testing.T) {
	m := NewMCU()
	motor := NewMotor(m.GPIO, hal.PA(0), hal.PA(1), 480, 1)

	motor.SetSpeed(-2.5)
	require.NoError(t, motor.Advance(time.Second))
	assert.Equal(t, int64(-1200), motor.Steps())
	assert.Equal(t, -2.5, motor.Speed())
}

func TestMotor_StepDoesNotOweSpeed(t *testing.T) {
	m := NewMCU()
	motor := NewMotor(m.GPIO, hal.PA(0), hal.PA(1), 480, 1)
	motor.MissRate = 1

	for i := 0; i < 480; i++ {
		require.NoError(t, motor.Step(1))
	}
	motor.SetSpeed(0)
	require.NoError(t, motor.Advance(time.Millisecond))

	assert.Equal(t, int64(480), motor.Steps(), "a stopped motor stays where it was stepped to")
	assert.Zero(t, motor.Misses(), "manual steps never skip a state")

	motor.SetSpeed(1)
	require.NoError(t, motor.Advance(time.Second))
	assert.Equal(t, int64(960), motor.Steps(), "one revolution owed by the speed")
	assert.Equal(t, int64(240), motor.Misses(), "every owed pair is skipped at a miss rate of 1")
}

func TestMotor_Run(t *testing.T) {
	m := NewMCU()
	motor := NewMotor(m.GPIO, hal.PA(0), hal.PA(1), 480, 1)
	motor.SetSpeed(10)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, motor.Run(ctx, time.Millisecond), context.DeadlineExceeded)
	assert.Positive(t, motor.Steps())
}

func TestIdleTimer_Delay(t *testing.T) {
	m := NewMCU()
	idle := m.IdleTimer()
	idle.Init(CoreClockHz)

	idle.DelayBlocking(100)

	assert.Equal(t, uint32(100), m.TIM7.Reload())
	assert.Equal(t, 1, m.TIM7.Updates())
	assert.True(t, idle.IsFlagSet())
	assert.False(t, m.TIM7.Registers().DIER.HasBits(tim.DIER_UIE))
}
