package sample

import (
	"log"

	"github.com/itohio/gotacho/pkg/config"
	"github.com/itohio/gotacho/pkg/tacho"
	"github.com/itohio/gotacho/pkg/velocity"
)

// NewAveragingConverter creates a converter that averages the edge counts of
// the last windowSize reports and converts them to Samples. One sample is
// produced per report.
func NewAveragingConverter(cfg *config.Config, windowSize int, bufSize int) Converter {
	if windowSize <= 0 {
		windowSize = 1 // No averaging if invalid
	}
	if bufSize <= 0 {
		bufSize = 100
	}

	return func(in <-chan tacho.Report) <-chan Sample {
		out := make(chan Sample, bufSize)

		go func() {
			defer close(out)

			buffer := make([]tacho.Report, 0, windowSize+1)
			for report := range in {
				buffer = append(buffer, report)
				if len(buffer) > windowSize {
					buffer = buffer[1:] // Remove oldest
				}

				avg, err := averageReports(buffer, &cfg.Encoder)
				if err != nil {
					log.Printf("Failed to convert report: %v", err)
					continue
				}

				select {
				case out <- avg:
				default:
					log.Printf("Averaging converter output channel full")
				}
			}
		}()

		return out
	}
}

// averageReports averages the edge counts of reports and converts the result.
// Uses the most recent report's timestamp and count.
func averageReports(reports []tacho.Report, enc *config.EncoderConfig) (Sample, error) {
	if len(reports) == 0 {
		return Sample{}, nil
	}

	var sumDelta, sumReported float64
	last := reports[len(reports)-1]
	for _, r := range reports {
		sumDelta += float64(r.Delta)
		sumReported += r.Speed()
	}

	n := float64(len(reports))
	speed, err := edgesToSpeed(sumDelta/n, enc)
	if err != nil {
		return Sample{}, err
	}

	dir := velocity.Stopped
	switch {
	case sumDelta > 0:
		dir = velocity.CW
	case sumDelta < 0:
		dir = velocity.CCW
	}

	return Sample{
		Timestamp: last.Timestamp,
		Speed:     speed,
		RPM:       speed * 60,
		Reported:  sumReported / n,
		Direction: dir,
		Count:     last.Count,
	}, nil
}
