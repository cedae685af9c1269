package sample

import (
	"testing"
	"time"

	"github.com/itohio/gotacho/pkg/config"
	"github.com/itohio/gotacho/pkg/tacho"
	"github.com/itohio/gotacho/pkg/velocity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func report(at time.Time, count, delta int32) tacho.Report {
	return tacho.Report{Sample: velocity.Compute(count, delta), Timestamp: at}
}

func TestConvertReport(t *testing.T) {
	enc := &config.Default().Encoder
	now := time.Now()

	tests := []struct {
		name     string
		delta    int32
		speed    float64
		rpm      float64
		reported float64
		dir      velocity.Direction
	}{
		{name: "ten rev/s", delta: 480, speed: 10, rpm: 600, reported: 10, dir: velocity.CW},
		{name: "reverse", delta: -240, speed: -5, rpm: -300, reported: -5, dir: velocity.CCW},
		{name: "stopped", delta: 0, speed: 0, rpm: 0, reported: 0, dir: velocity.Stopped},
		{name: "not truncated", delta: 7, speed: 0.14583333, rpm: 8.75, reported: 0.145, dir: velocity.CW},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := convertReport(report(now, 100, tt.delta), enc)
			require.NoError(t, err)
			assert.InDelta(t, tt.speed, got.Speed, 1e-6)
			assert.InDelta(t, tt.rpm, got.RPM, 1e-6)
			assert.InDelta(t, tt.reported, got.Reported, 1e-9)
			assert.Equal(t, tt.dir, got.Direction)
			assert.Equal(t, int32(100), got.Count)
			assert.Equal(t, now, got.Timestamp)
		})
	}
}

func TestConvertReport_InvalidEncoder(t *testing.T) {
	_, err := convertReport(report(time.Now(), 0, 1), &config.EncoderConfig{TickPeriod: time.Second})
	assert.Error(t, err)

	_, err = convertReport(report(time.Now(), 0, 1), &config.EncoderConfig{PulsesPerRevolution: 120, EdgesPerPulse: 4})
	assert.Error(t, err)
}

func TestConverter(t *testing.T) {
	cfg := config.Default()
	converter := NewConverter(cfg, 10)
	input := make(chan tacho.Report, 10)
	output := converter(input)

	now := time.Now()
	input <- report(now, 480, 480)
	input <- report(now.Add(100*time.Millisecond), 720, 240)
	close(input)

	var got []Sample
	for s := range output {
		got = append(got, s)
	}
	require.Len(t, got, 2)
	assert.InDelta(t, 10.0, got[0].Speed, 1e-9)
	assert.InDelta(t, 5.0, got[1].Speed, 1e-9)
	assert.Equal(t, int32(720), got[1].Count)
}
