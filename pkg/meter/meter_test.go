package meter

import (
	"sync"
	"testing"
	"time"

	"github.com/itohio/gotacho/pkg/config"
	"github.com/itohio/gotacho/pkg/sample"
	"github.com/itohio/gotacho/pkg/velocity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func speedSample(at time.Time, speed float64) sample.Sample {
	dir := velocity.Stopped
	switch {
	case speed > 0:
		dir = velocity.CW
	case speed < 0:
		dir = velocity.CCW
	}
	return sample.Sample{Timestamp: at, Speed: speed, RPM: speed * 60, Direction: dir}
}

// feed processes speeds at 100 ms intervals starting at start.
func feed(m *Meter, start time.Time, speeds ...float64) time.Time {
	at := start
	for _, v := range speeds {
		m.processSample(speedSample(at, v))
		at = at.Add(100 * time.Millisecond)
	}
	return at
}

func TestNew(t *testing.T) {
	cfg := config.Default()
	m := New(cfg)

	assert.NotNil(t, m)
	assert.Empty(t, m.Samples())
	assert.Empty(t, m.Accelerations())
	assert.Empty(t, m.Events())
	_, ok := m.Latest()
	assert.False(t, ok)
}

func TestProcessSample_Basic(t *testing.T) {
	m := New(config.Default())

	s := speedSample(time.Now(), 10)
	m.processSample(s)

	samples := m.Samples()
	require.Len(t, samples, 1)
	assert.Equal(t, s, samples[0])
	assert.Empty(t, m.Accelerations()) // Need at least 2 samples

	latest, ok := m.Latest()
	assert.True(t, ok)
	assert.Equal(t, s, latest)
}

func TestProcessSample_Acceleration(t *testing.T) {
	m := New(config.Default())

	feed(m, time.Now(), 10, 10.5, 9.5)

	acc := m.Accelerations()
	require.Len(t, acc, 2)
	assert.InDelta(t, 5.0, acc[0], 1e-9)   // 0.5 rev/s in 0.1 s
	assert.InDelta(t, -10.0, acc[1], 1e-9) // -1 rev/s in 0.1 s
}

func TestProcessSample_SameTimestamp(t *testing.T) {
	m := New(config.Default())
	now := time.Now()

	m.processSample(speedSample(now, 1))
	m.processSample(speedSample(now, 2))

	assert.Equal(t, []float64{0}, m.Accelerations())
}

func TestProcessSample_WindowRemoval(t *testing.T) {
	cfg := config.Default()
	cfg.Measurement.WindowSeconds = 1.0
	m := New(cfg)

	speeds := make([]float64, 30)
	for i := range speeds {
		speeds[i] = float64(i)
	}
	now := time.Now()
	feed(m, now, speeds...)

	samples := m.Samples()
	acc := m.Accelerations()
	// 1 s window at 100 ms spacing, the sample exactly at the cutoff is dropped.
	assert.Len(t, samples, 10)
	assert.Len(t, acc, len(samples)-1)
	assert.Equal(t, 20.0, samples[0].Speed)
	assert.Equal(t, 29.0, samples[len(samples)-1].Speed)
	for _, a := range acc {
		assert.InDelta(t, 10.0, a, 1e-9)
	}
}

func TestProcessSample_LongGap(t *testing.T) {
	cfg := config.Default()
	cfg.Measurement.WindowSeconds = 1.0
	m := New(cfg)

	now := time.Now()
	feed(m, now, 1, 2, 3)
	m.processSample(speedSample(now.Add(time.Minute), 4))

	assert.Len(t, m.Samples(), 1)
	assert.Empty(t, m.Accelerations())
}

func TestReversal(t *testing.T) {
	tests := []struct {
		name   string
		speeds []float64
		want   []Event
	}{
		{
			name:   "clockwise to counter-clockwise",
			speeds: []float64{10, 5, 0.5, -0.5, -5},
			want:   []Event{{Kind: Reversal, From: velocity.CW, To: velocity.CCW}},
		},
		{
			name:   "and back",
			speeds: []float64{-3, -1, 1, 3},
			want:   []Event{{Kind: Reversal, From: velocity.CCW, To: velocity.CW}},
		},
		{
			name:   "jitter inside hysteresis",
			speeds: []float64{2, 0.05, -0.05, 0.05, -0.08, 2},
		},
		{
			name:   "stop then resume same way",
			speeds: []float64{2, 0, 0, 0, 2},
		},
		{
			name:   "two reversals",
			speeds: []float64{1, -1, 1},
			want: []Event{
				{Kind: Reversal, From: velocity.CW, To: velocity.CCW},
				{Kind: Reversal, From: velocity.CCW, To: velocity.CW},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Measurement.StallTimeout = time.Hour
			m := New(cfg)
			feed(m, time.Now(), tt.speeds...)

			got := m.Events()
			require.Len(t, got, len(tt.want))
			for i := range got {
				assert.Equal(t, tt.want[i].Kind, got[i].Kind)
				assert.Equal(t, tt.want[i].From, got[i].From)
				assert.Equal(t, tt.want[i].To, got[i].To)
			}
		})
	}
}

func TestReversal_Time(t *testing.T) {
	m := New(config.Default())
	now := time.Now()

	feed(m, now, 1, 0, -1)

	events := m.Events()
	require.Len(t, events, 1)
	assert.Equal(t, now.Add(200*time.Millisecond), events[0].Time)
}

func TestStall(t *testing.T) {
	cfg := config.Default()
	cfg.Measurement.StallTimeout = 300 * time.Millisecond
	m := New(cfg)
	now := time.Now()

	next := feed(m, now, 5, 0, 0, 0)
	assert.Empty(t, m.Events(), "stopped for 200ms only")

	next = feed(m, next, 0)
	events := m.Events()
	require.Len(t, events, 1)
	assert.Equal(t, Stall, events[0].Kind)
	assert.Equal(t, now.Add(100*time.Millisecond), events[0].Time)
	assert.Equal(t, 300*time.Millisecond, events[0].Duration)

	next = feed(m, next, 0, 0)
	events = m.Events()
	require.Len(t, events, 1)
	assert.Equal(t, 500*time.Millisecond, events[0].Duration)

	// Motion ends the stall; the next stop is a new one.
	next = feed(m, next, 5)
	feed(m, next, 0, 0, 0, 0)
	events = m.Events()
	require.Len(t, events, 2)
	assert.Equal(t, 300*time.Millisecond, events[1].Duration)
}

func TestEvents_WindowRemoval(t *testing.T) {
	cfg := config.Default()
	cfg.Measurement.WindowSeconds = 1.0
	cfg.Measurement.StallTimeout = time.Hour
	m := New(cfg)

	next := feed(m, time.Now(), 1, -1)
	require.Len(t, m.Events(), 1)

	speeds := make([]float64, 20)
	for i := range speeds {
		speeds[i] = -1
	}
	feed(m, next, speeds...)
	assert.Empty(t, m.Events())
}

func TestPeak(t *testing.T) {
	m := New(config.Default())
	feed(m, time.Now(), 3, -12, 7)
	assert.Equal(t, 12.0, m.Peak())
}

func TestEventKind_String(t *testing.T) {
	assert.Equal(t, "reversal", Reversal.String())
	assert.Equal(t, "stall", Stall.String())
}

func TestOnUpdate(t *testing.T) {
	m := New(config.Default())

	var calls int
	var last []sample.Sample
	var lastAcc []float64
	m.OnUpdate(func(samples []sample.Sample, accelerations []float64, events []Event) {
		calls++
		last = samples
		lastAcc = accelerations
	})

	feed(m, time.Now(), 1, 2)

	assert.Equal(t, 2, calls)
	assert.Len(t, last, 2)
	assert.Len(t, lastAcc, 1)
}

func TestSamples_ThreadSafe(t *testing.T) {
	m := New(config.Default())
	now := time.Now()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			m.processSample(speedSample(now.Add(time.Duration(i)*time.Millisecond), float64(i%7-3)))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			s := m.Samples()
			a := m.Accelerations()
			_ = m.Events()
			assert.LessOrEqual(t, len(a), len(s)+1)
		}
	}()
	wg.Wait()

	assert.Len(t, m.Accelerations(), len(m.Samples())-1)
}

func TestProcessSamples_Channel(t *testing.T) {
	m := New(config.Default())
	input := make(chan sample.Sample, 10)

	now := time.Now()
	for i := 0; i < 5; i++ {
		input <- speedSample(now.Add(time.Duration(i)*100*time.Millisecond), 10)
	}
	close(input)

	m.ProcessSamples(input)
	assert.Len(t, m.Samples(), 5)
}
