// Package camera captures frames from the table camera on a background
// goroutine and hands the latest one to the tracking loop.
package camera

import "fmt"

// Config holds capture settings. Width and Height are the raw sensor
// dimensions; published frames are rotated, so they come out Height wide
// and Width tall.
type Config struct {
	Device     int     `json:"device" mapstructure:"index"`
	Width      int     `json:"width" mapstructure:"width"`
	Height     int     `json:"height" mapstructure:"height"`
	FPS        int     `json:"fps" mapstructure:"fps"`
	Focus      float64 `json:"focus" mapstructure:"focus"`             // -1 leaves autofocus alone
	BufferSize int     `json:"buffer_size" mapstructure:"buffer_size"` // driver-side frame queue
	Flips      int     `json:"flips" mapstructure:"flips"`             // horizontal flips after rotation
}

// Capture limits accepted by Validate.
const (
	MinDimension = 120
	MaxDimension = 4096
	MaxFPS       = 240
)

// DefaultConfig returns the settings used on the table rig.
func DefaultConfig() Config {
	return Config{
		Device:     0,
		Width:      640,
		Height:     360,
		FPS:        60,
		Focus:      0,
		BufferSize: 1,
		Flips:      2,
	}
}

// FrameSize returns the dimensions of published (rotated) frames.
func (c Config) FrameSize() (width, height int) {
	return c.Height, c.Width
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Device < 0 {
		errors = append(errors, "device must not be negative")
	}
	if c.Width < MinDimension || c.Width > MaxDimension {
		errors = append(errors, fmt.Sprintf("width must be between %d and %d", MinDimension, MaxDimension))
	}
	if c.Height < MinDimension || c.Height > MaxDimension {
		errors = append(errors, fmt.Sprintf("height must be between %d and %d", MinDimension, MaxDimension))
	}
	if c.FPS < 1 || c.FPS > MaxFPS {
		errors = append(errors, fmt.Sprintf("fps must be between 1 and %d", MaxFPS))
	}
	if c.Focus < -1 || c.Focus > 255 {
		errors = append(errors, "focus must be -1 (auto) or between 0 and 255")
	}
	if c.BufferSize < 0 {
		errors = append(errors, "buffer_size must not be negative")
	}
	if c.Flips < 0 || c.Flips > 2 {
		errors = append(errors, "flips must be 0, 1 or 2")
	}

	return errors
}
