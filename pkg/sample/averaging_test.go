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

func TestAverageReports(t *testing.T) {
	enc := &config.Default().Encoder
	now := time.Now()

	tests := []struct {
		name    string
		reports []tacho.Report
		speed   float64
		dir     velocity.Direction
	}{
		{
			name:    "single",
			reports: []tacho.Report{report(now, 480, 480)},
			speed:   10,
			dir:     velocity.CW,
		},
		{
			name: "alternating counts",
			reports: []tacho.Report{
				report(now, 4, 4),
				report(now, 9, 5),
				report(now, 13, 4),
				report(now, 18, 5),
			},
			speed: 4.5 / 48,
			dir:   velocity.CW,
		},
		{
			name: "through a reversal",
			reports: []tacho.Report{
				report(now, 48, 48),
				report(now, 0, -48),
				report(now, -48, -48),
			},
			speed: -16.0 / 48,
			dir:   velocity.CCW,
		},
		{
			name: "cancelling",
			reports: []tacho.Report{
				report(now, 10, 10),
				report(now, 0, -10),
			},
			speed: 0,
			dir:   velocity.Stopped,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := averageReports(tt.reports, enc)
			require.NoError(t, err)
			assert.InDelta(t, tt.speed, got.Speed, 1e-9)
			assert.InDelta(t, tt.speed*60, got.RPM, 1e-6)
			assert.Equal(t, tt.dir, got.Direction)
			assert.Equal(t, tt.reports[len(tt.reports)-1].Count, got.Count)
		})
	}
}

func TestAverageReports_Empty(t *testing.T) {
	got, err := averageReports(nil, &config.Default().Encoder)
	require.NoError(t, err)
	assert.Equal(t, Sample{}, got)
}

func TestAveragingConverter_Window(t *testing.T) {
	cfg := config.Default()
	converter := NewAveragingConverter(cfg, 2, 10)
	input := make(chan tacho.Report, 10)
	output := converter(input)

	now := time.Now()
	for i, delta := range []int32{480, 240, 0} {
		input <- report(now.Add(time.Duration(i)*100*time.Millisecond), 0, delta)
	}
	close(input)

	var got []float64
	for s := range output {
		got = append(got, s.Speed)
	}
	require.Len(t, got, 3)
	assert.InDelta(t, 10.0, got[0], 1e-9)
	assert.InDelta(t, 7.5, got[1], 1e-9)
	assert.InDelta(t, 2.5, got[2], 1e-9)
}

func TestAveragingConverter_InvalidWindow(t *testing.T) {
	converter := NewAveragingConverter(config.Default(), 0, 0)
	input := make(chan tacho.Report, 1)
	output := converter(input)

	input <- report(time.Now(), 48, 48)
	close(input)

	s, ok := <-output
	require.True(t, ok)
	assert.InDelta(t, 1.0, s.Speed, 1e-9)
	_, ok = <-output
	assert.False(t, ok)
}
