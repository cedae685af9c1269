//go:build !tinygo

package tacho

import (
	"context"
	"fmt"
	"log"
	"sync"

	"go.bug.st/serial"
)

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{Name: name, Description: name})
	}
	return result, nil
}

// Serial reads reports from the board over its virtual COM port.
type Serial struct {
	port     string
	baudRate int
	bufSize  int

	mu        sync.RWMutex
	conn      serial.Port
	reports   chan Report
	cancel    context.CancelFunc
	done      chan struct{}
	connected bool
}

// NewSerial creates a serial device with the specified port, baud rate, and
// buffer size. Zero values select the defaults.
func NewSerial(port string, baudRate int, bufSize int) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if bufSize == 0 {
		bufSize = DefaultBufferSize
	}

	return &Serial{
		port:     port,
		baudRate: baudRate,
		bufSize:  bufSize,
		reports:  make(chan Report, bufSize),
	}
}

// Connect opens the serial port and starts reading reports.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return ErrAlreadyConnected
	}

	port, err := serial.Open(d.port, &serial.Mode{BaudRate: d.baudRate})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.port, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.conn = port
	d.cancel = cancel
	d.done = make(chan struct{})
	d.reports = make(chan Report, d.bufSize)
	d.connected = true

	reports, done := d.reports, d.done
	go func() {
		defer close(done)
		scanReports(ctx, port, reports)
	}()

	return nil
}

// Close closes the port and waits for the reader, which closes the reports
// channel.
func (d *Serial) Close() error {
	d.mu.Lock()
	if !d.connected {
		d.mu.Unlock()
		return nil
	}
	d.cancel()
	if err := d.conn.Close(); err != nil {
		log.Printf("Error closing serial port: %v", err)
	}
	d.conn = nil
	d.connected = false
	done := d.done
	d.mu.Unlock()

	<-done
	return nil
}

// Reports returns the channel for reading reports.
func (d *Serial) Reports() <-chan Report {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.reports
}

// IsConnected returns whether the device is currently connected.
func (d *Serial) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}
