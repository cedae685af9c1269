//go:build !tinygo

package tacho

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/itohio/gotacho/pkg/hal"
	"github.com/itohio/gotacho/pkg/sim"
)

// board runs the unmodified core on a simulated MCU in real time. Report
// lines written by the core are piped into the same scanner the serial
// device uses.
type board struct {
	mcu *sim.MCU
	sys *System

	pw     *io.PipeWriter
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// startBoard powers up a simulated MCU, lets prepare set the initial input
// levels and choose the GPIO the core uses, and starts the core. Reports are
// delivered to reports, which is closed when the board stops.
func startBoard(reports chan Report, prepare func(m *sim.MCU) hal.GPIO) (*board, error) {
	ctx, cancel := context.WithCancel(context.Background())
	pr, pw := io.Pipe()
	b := &board{
		mcu:    sim.NewMCU(),
		pw:     pw,
		ctx:    ctx,
		cancel: cancel,
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		scanReports(ctx, pr, reports)
		pr.Close()
	}()

	var gpio hal.GPIO = b.mcu.GPIO
	if prepare != nil {
		gpio = prepare(b.mcu)
	}

	b.sys = NewSystem(Peripherals{
		GPIO:             gpio,
		Lines:            b.mcu.Lines(),
		Tick:             b.mcu.Timer(),
		Idle:             b.mcu.IdleTimer(),
		NVIC:             b.mcu.NVIC,
		EnableInterrupts: b.mcu.NVIC.EnableGlobal,
	}, DefaultPins, pw)
	b.mcu.NVIC.Attach(&b.sys.Dispatcher)

	if err := b.sys.Start(sim.CoreClockHz); err != nil {
		b.stop()
		return nil, fmt.Errorf("failed to start simulated board: %w", err)
	}
	return b, nil
}

// spawn runs fn on its own goroutine until it returns or the board stops.
func (b *board) spawn(name string, fn func(ctx context.Context) error) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := fn(b.ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("%s stopped: %v", name, err)
		}
	}()
}

// clock advances the tick timer by wall time, one millisecond at a time.
// each runs before every simulated millisecond with its index.
func (b *board) clock(period time.Duration, each func(ms int) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		ticker := time.NewTicker(period)
		defer ticker.Stop()

		start := time.Now()
		elapsed := 0
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case now := <-ticker.C:
				target := int(now.Sub(start) / time.Millisecond)
				for ; elapsed < target; elapsed++ {
					if each != nil {
						if err := each(elapsed); err != nil {
							return err
						}
					}
					if err := b.mcu.TIM2.Advance(1); err != nil {
						return err
					}
				}
			}
		}
	}
}

// stop halts every goroutine of the board and waits for them.
func (b *board) stop() {
	b.cancel()
	b.pw.Close()
	b.wg.Wait()
	b.sys.Stop()
}
