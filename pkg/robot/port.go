package robot

import (
	"fmt"
	"io"
	"strings"
	"time"

	"go.bug.st/serial"
)

// Port is the minimal serial port surface. It lets tests run without
// hardware.
type Port interface {
	io.ReadWriter
	io.Closer
}

// LinkConfig describes how to reach the stage controller.
type LinkConfig struct {
	Port          string        `json:"port" mapstructure:"port"`
	BaudRate      int           `json:"baud_rate" mapstructure:"baud_rate"`
	DataBits      int           `json:"data_bits" mapstructure:"data_bits"`
	StopBits      int           `json:"stop_bits" mapstructure:"stop_bits"`
	Parity        string        `json:"parity" mapstructure:"parity"`
	ReadTimeout   time.Duration `json:"read_timeout" mapstructure:"read_timeout"`
	HomingTimeout time.Duration `json:"homing_timeout" mapstructure:"homing_timeout"`
	ResetDelay    time.Duration `json:"reset_delay" mapstructure:"reset_delay"` // microcontroller reboots when the port opens
}

// DefaultLinkConfig returns the settings for the stage's Arduino.
func DefaultLinkConfig() LinkConfig {
	return LinkConfig{
		Port:          "/dev/ttyACM0",
		BaudRate:      115200,
		DataBits:      8,
		StopBits:      1,
		Parity:        "N",
		ReadTimeout:   time.Second,
		HomingTimeout: 30 * time.Second,
		ResetDelay:    2 * time.Second,
	}
}

// Normalize validates the options and applies defaults for any unset values.
func (c LinkConfig) Normalize() (LinkConfig, error) {
	cfg := c
	def := DefaultLinkConfig()

	if cfg.BaudRate <= 0 {
		cfg.BaudRate = def.BaudRate
	}
	if cfg.DataBits == 0 {
		cfg.DataBits = 8
	}
	if cfg.DataBits < 5 || cfg.DataBits > 8 {
		return cfg, fmt.Errorf("invalid data bits %d: must be between 5 and 8", cfg.DataBits)
	}
	if cfg.StopBits == 0 {
		cfg.StopBits = 1
	}
	if cfg.StopBits != 1 && cfg.StopBits != 2 {
		return cfg, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", cfg.StopBits)
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.HomingTimeout <= 0 {
		cfg.HomingTimeout = def.HomingTimeout
	}
	if cfg.ResetDelay < 0 {
		cfg.ResetDelay = 0
	}

	parity := strings.TrimSpace(strings.ToUpper(cfg.Parity))
	switch parity {
	case "", "N", "NONE":
		parity = "N"
	case "E", "EVEN":
		parity = "E"
	case "O", "ODD":
		parity = "O"
	default:
		return cfg, fmt.Errorf("unsupported parity %q: expected N, E, or O", cfg.Parity)
	}
	cfg.Parity = parity

	return cfg, nil
}

// SerialMode converts the options into go.bug.st/serial's Mode.
func (c LinkConfig) SerialMode() (*serial.Mode, error) {
	cfg, err := c.Normalize()
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		StopBits: serial.OneStopBit,
	}
	if cfg.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}

	switch cfg.Parity {
	case "N":
		mode.Parity = serial.NoParity
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	}
	return mode, nil
}

// OpenPort opens the configured serial device with its read timeout set.
func OpenPort(cfg LinkConfig) (serial.Port, error) {
	if cfg.Port == "" {
		return nil, ErrNoPort
	}
	norm, err := cfg.Normalize()
	if err != nil {
		return nil, err
	}
	mode, err := norm.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(norm.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", norm.Port, err)
	}
	if err := port.SetReadTimeout(norm.ReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", norm.Port, err)
	}
	return port, nil
}

// ListPorts returns the serial ports present on this machine.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}
