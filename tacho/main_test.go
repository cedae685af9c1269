package main

import (
	"testing"
	"time"

	"github.com/itohio/gotacho/pkg/meter"
	"github.com/itohio/gotacho/pkg/sample"
	"github.com/itohio/gotacho/pkg/tacho"
	"github.com/itohio/gotacho/pkg/velocity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThrottle(t *testing.T) {
	var th throttle
	start := time.Unix(0, 0)

	assert.True(t, th.allow(start), "first update passes")
	assert.False(t, th.allow(start.Add(5*time.Millisecond)))
	assert.True(t, th.allow(start.Add(defaultUpdateInterval)))

	th = throttle{interval: time.Second}
	assert.True(t, th.allow(start))
	assert.False(t, th.allow(start.Add(500*time.Millisecond)))
	assert.True(t, th.allow(start.Add(time.Second)))
}

func TestTeeChannel(t *testing.T) {
	in := make(chan tacho.Report, 3)
	for i := range 3 {
		in <- tacho.Report{Sample: velocity.Compute(int32(i), int32(i))}
	}
	close(in)

	a, b := teeChannel(in)
	var gotA, gotB []int32
	for r := range a {
		gotA = append(gotA, r.Count)
	}
	for r := range b {
		gotB = append(gotB, r.Count)
	}

	assert.Equal(t, []int32{0, 1, 2}, gotA)
	assert.Equal(t, gotA, gotB)
}

func TestFormatSample(t *testing.T) {
	s := sample.Sample{Speed: -2.5, RPM: -150, Direction: velocity.CCW, Count: -1200}
	assert.Equal(t, "count=-1200 speed=-2.500 rev/s rpm=-150.0 dir=CCW (Counter-clockwise)", formatSample(s))
}

func TestFormatEvent(t *testing.T) {
	tests := []struct {
		name  string
		event meter.Event
		want  string
	}{
		{
			name:  "reversal",
			event: meter.Event{Kind: meter.Reversal, From: velocity.CW, To: velocity.CCW},
			want:  "reversal: CW (Clockwise) -> CCW (Counter-clockwise)",
		},
		{
			name:  "stall",
			event: meter.Event{Kind: meter.Stall, Duration: 1500*time.Millisecond + 300*time.Microsecond},
			want:  "stall: stopped for 1.5s",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatEvent(tt.event))
		})
	}
}

func TestBackend_String(t *testing.T) {
	require.Equal(t, "serial port", backendSerial.String())
	assert.Equal(t, "mocked device", backendMock.String())
	assert.Equal(t, "GPIO encoder", backendGPIO.String())
}
