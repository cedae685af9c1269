package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/itohio/gotacho/pkg/velocity"
	"gopkg.in/yaml.v3"
)

// ErrEncoderMismatch is returned by Validate when the encoder section does not
// describe the resolution the firmware was built with.
var ErrEncoderMismatch = errors.New("encoder settings do not match firmware")

// Config represents the application configuration.
type Config struct {
	Serial      SerialConfig      `yaml:"serial"`
	Encoder     EncoderConfig     `yaml:"encoder"`
	Measurement MeasurementConfig `yaml:"measurement"`
	Mock        MockConfig        `yaml:"mock"`
	GPIO        GPIOConfig        `yaml:"gpio"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// EncoderConfig describes the encoder and the reporting period of the board.
type EncoderConfig struct {
	PulsesPerRevolution int           `yaml:"pulses_per_revolution"`
	EdgesPerPulse       int           `yaml:"edges_per_pulse"`
	TickPeriod          time.Duration `yaml:"tick_period"`
}

// EdgesPerRevolution returns the counts per shaft revolution.
func (e EncoderConfig) EdgesPerRevolution() int {
	return e.PulsesPerRevolution * e.EdgesPerPulse
}

// MeasurementConfig contains measurement parameters.
type MeasurementConfig struct {
	WindowSeconds      float64       `yaml:"window_seconds"`
	AverageSamples     int           `yaml:"average_samples"`     // Number of reports to average (0 = disabled, default)
	StallTimeout       time.Duration `yaml:"stall_timeout"`       // Stopped for this long is reported as a stall
	ReversalHysteresis float64       `yaml:"reversal_hysteresis"` // |speed| in rev/s required to count a direction
}

// MockConfig contains simulated motor configuration.
type MockConfig struct {
	Speed        float64       `yaml:"speed"`        // Peak shaft speed (rev/s)
	Acceleration float64       `yaml:"acceleration"` // Ramp rate between +Speed and -Speed (rev/s^2), 0 = constant
	BounceRate   float64       `yaml:"bounce_rate"`  // Probability of a contact bounce per edge
	MissRate     float64       `yaml:"miss_rate"`    // Probability of two phases changing together
	TickPeriod   time.Duration `yaml:"tick_period"`  // Simulation step
	Seed         int64         `yaml:"seed"`
}

// GPIOConfig names the host pins used when the encoder is wired to a Linux
// board directly.
type GPIOConfig struct {
	PinA string `yaml:"pin_a"`
	PinB string `yaml:"pin_b"`
	LED  string `yaml:"led"` // optional
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port: "COM3", // Default for Windows, should be "/dev/ttyACM0" on Linux/Mac
			Baud: 115200,
		},
		Encoder: EncoderConfig{
			PulsesPerRevolution: velocity.PulsesPerRevolution,
			EdgesPerPulse:       velocity.EdgesPerPulse,
			TickPeriod:          velocity.TickMillis * time.Millisecond,
		},
		Measurement: MeasurementConfig{
			WindowSeconds:      10,
			AverageSamples:     0, // No averaging by default
			StallTimeout:       time.Second,
			ReversalHysteresis: 0.1,
		},
		Mock: MockConfig{
			Speed:        10,
			Acceleration: 5,
			BounceRate:   0,
			MissRate:     0,
			TickPeriod:   time.Millisecond,
			Seed:         1,
		},
		GPIO: GPIOConfig{
			PinA: "GPIO17",
			PinB: "GPIO27",
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist, return defaults
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Ensure minimum required fields are set (use defaults if missing)
	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks values the host cannot work with. The encoder resolution
// and tick are compiled into the firmware, so the section must agree with it.
func (c *Config) Validate() error {
	e := c.Encoder
	if e.PulsesPerRevolution != velocity.PulsesPerRevolution ||
		e.EdgesPerPulse != velocity.EdgesPerPulse ||
		e.TickPeriod != velocity.TickMillis*time.Millisecond {
		return fmt.Errorf("%w: got %d pulses x %d edges every %v, want %d x %d every %dms",
			ErrEncoderMismatch, e.PulsesPerRevolution, e.EdgesPerPulse, e.TickPeriod,
			velocity.PulsesPerRevolution, velocity.EdgesPerPulse, velocity.TickMillis)
	}
	if c.Measurement.WindowSeconds <= 0 {
		return fmt.Errorf("measurement window must be positive, got %v", c.Measurement.WindowSeconds)
	}
	if c.Measurement.AverageSamples < 0 {
		return fmt.Errorf("average samples must not be negative, got %d", c.Measurement.AverageSamples)
	}
	if r := c.Mock.BounceRate; r < 0 || r > 1 {
		return fmt.Errorf("mock bounce rate must be within [0, 1], got %v", r)
	}
	if r := c.Mock.MissRate; r < 0 || r > 1 {
		return fmt.Errorf("mock miss rate must be within [0, 1], got %v", r)
	}
	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.Baud == 0 {
		c.Serial.Baud = def.Serial.Baud
	}

	if c.Encoder.PulsesPerRevolution == 0 {
		c.Encoder.PulsesPerRevolution = def.Encoder.PulsesPerRevolution
	}
	if c.Encoder.EdgesPerPulse == 0 {
		c.Encoder.EdgesPerPulse = def.Encoder.EdgesPerPulse
	}
	if c.Encoder.TickPeriod == 0 {
		c.Encoder.TickPeriod = def.Encoder.TickPeriod
	}

	if c.Measurement.WindowSeconds == 0 {
		c.Measurement.WindowSeconds = def.Measurement.WindowSeconds
	}
	if c.Measurement.StallTimeout == 0 {
		c.Measurement.StallTimeout = def.Measurement.StallTimeout
	}

	if c.Mock.TickPeriod == 0 {
		c.Mock.TickPeriod = def.Mock.TickPeriod
	}

	if c.GPIO.PinA == "" {
		c.GPIO.PinA = def.GPIO.PinA
	}
	if c.GPIO.PinB == "" {
		c.GPIO.PinB = def.GPIO.PinB
	}
}
