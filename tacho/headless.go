package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/itohio/gotacho/pkg/meter"
	"github.com/itohio/gotacho/pkg/sample"
)

// runHeadless logs every sample until ctx is cancelled or the device stops.
func runHeadless(ctx context.Context, state *appState) error {
	var lastEvent time.Time
	state.speedMeter.OnUpdate(func(samples []sample.Sample, _ []float64, events []meter.Event) {
		if len(samples) > 0 {
			log.Print(formatSample(samples[len(samples)-1]))
		}
		for _, e := range events {
			if e.Time.After(lastEvent) {
				log.Print(formatEvent(e))
				lastEvent = e.Time
			}
		}
	})

	chain, err := startChain(state, nil)
	if err != nil {
		return err
	}
	log.Printf("Connected to %s", state.backend)

	select {
	case <-ctx.Done():
	case <-chain.meterGoroutine:
		log.Printf("Device stopped sending reports")
	}
	closeMeasurementChain(chain)
	return nil
}

func formatSample(s sample.Sample) string {
	return fmt.Sprintf("count=%d speed=%.3f rev/s rpm=%.1f dir=%s", s.Count, s.Speed, s.RPM, s.Direction)
}

func formatEvent(e meter.Event) string {
	switch e.Kind {
	case meter.Reversal:
		return fmt.Sprintf("%s: %s -> %s", e.Kind, e.From, e.To)
	case meter.Stall:
		return fmt.Sprintf("%s: stopped for %s", e.Kind, e.Duration.Round(time.Millisecond))
	default:
		return e.Kind.String()
	}
}
