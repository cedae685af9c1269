//go:build !tinygo

package tacho

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log"
	"time"
)

const (
	// DefaultBaudRate is the ST-LINK virtual COM port rate.
	DefaultBaudRate = 115200
	// DefaultBufferSize is the default size for the reports channel buffer.
	DefaultBufferSize = 100
)

var (
	// ErrAlreadyConnected is returned by a second Connect.
	ErrAlreadyConnected = errors.New("already connected")
)

// Device is a source of reports (the board, a simulation or local GPIO).
type Device interface {
	Connect() error
	Close() error
	Reports() <-chan Report
	IsConnected() bool
}

var (
	_ Device = (*Serial)(nil)
	_ Device = (*Mock)(nil)
	_ Device = (*GPIODevice)(nil)
)

// scanReports reads report lines from r until it fails or ctx is done, and
// closes reports when it returns. Non-report lines such as the banner are
// skipped; malformed lines are logged and skipped.
func scanReports(ctx context.Context, r io.Reader, reports chan<- Report) {
	defer close(reports)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Panic in scanReports: %v", r)
		}
	}()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		report, err := ParseReport(scanner.Text())
		if errors.Is(err, ErrNotReport) {
			continue
		}
		if err != nil {
			log.Printf("Failed to parse line '%s': %v", scanner.Text(), err)
			continue
		}
		report.Timestamp = time.Now()

		// Send report to channel (non-blocking)
		select {
		case reports <- report:
		case <-ctx.Done():
			return
		default:
			log.Printf("Reports channel full, dropping report")
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		log.Printf("Error reading reports: %v", err)
	}
}
