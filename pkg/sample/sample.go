// Package sample converts board reports into speed samples in physical units.
package sample

import (
	"fmt"
	"log"
	"time"

	"github.com/itohio/gotacho/pkg/config"
	"github.com/itohio/gotacho/pkg/tacho"
	"github.com/itohio/gotacho/pkg/velocity"
)

// Sample represents a processed measurement with physical values.
type Sample struct {
	Timestamp time.Time
	Speed     float64 // Shaft speed (rev/s), signed, negative is counter-clockwise
	RPM       float64 // Shaft speed (rev/min), signed
	Reported  float64 // Speed as printed by the board, truncated to 1/1000 rev/s
	Direction velocity.Direction
	Count     int32 // Position counter of the board
}

// Converter is a function type that converts a Report channel to a Sample channel.
type Converter func(in <-chan tacho.Report) <-chan Sample

// NewConverter creates a converter function that transforms Report to Sample.
func NewConverter(cfg *config.Config, bufSize int) Converter {
	if bufSize <= 0 {
		bufSize = 100
	}

	return func(in <-chan tacho.Report) <-chan Sample {
		out := make(chan Sample, bufSize)

		go func() {
			defer close(out)

			for report := range in {
				sample, err := convertReport(report, &cfg.Encoder)
				if err != nil {
					log.Printf("Failed to convert report: %v", err)
					continue
				}

				select {
				case out <- sample:
				case <-time.After(time.Second):
					log.Printf("Converter output channel full, dropping sample")
				}
			}
		}()

		return out
	}
}

// convertReport converts a Report to a Sample. The speed is recomputed from
// the edge count so it is not truncated.
func convertReport(r tacho.Report, enc *config.EncoderConfig) (Sample, error) {
	speed, err := edgesToSpeed(float64(r.Delta), enc)
	if err != nil {
		return Sample{}, err
	}

	return Sample{
		Timestamp: r.Timestamp,
		Speed:     speed,
		RPM:       speed * 60,
		Reported:  r.Speed(),
		Direction: r.Direction,
		Count:     r.Count,
	}, nil
}

// edgesToSpeed converts edges per tick to rev/s.
func edgesToSpeed(edges float64, enc *config.EncoderConfig) (float64, error) {
	perRev := enc.EdgesPerRevolution()
	if perRev <= 0 {
		return 0, fmt.Errorf("invalid encoder resolution: %d edges per revolution", perRev)
	}
	if enc.TickPeriod <= 0 {
		return 0, fmt.Errorf("invalid tick period: %v", enc.TickPeriod)
	}
	return edges / float64(perRev) / enc.TickPeriod.Seconds(), nil
}
