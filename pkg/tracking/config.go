// Package tracking turns puck and paddle detections into defender moves.
// It classifies puck motion, predicts where the puck will cross the
// defensive line (including one bounce off a side wall), and drives the
// per-frame processing loop.
package tracking

import (
	"fmt"
	"time"

	"github.com/teslashibe/rocky-hockey/pkg/calibration"
)

// Config holds all tunable parameters for puck tracking.
// Pixel values refer to the rotated, rectified frame.
type Config struct {
	// Geometry
	FrameWidth    float64 `json:"frame_width" mapstructure:"frame_width"`       // pixel x extent
	DefensiveLine float64 `json:"defensive_line" mapstructure:"defensive_line"` // pixel y the defender guards
	RobotMaxY     float64 `json:"robot_max_y" mapstructure:"robot_max_y"`       // pixel y extent of the defender's reach

	// Stage travel limits
	TableMaxX float64 `json:"table_max_x" mapstructure:"table_max_x"`
	TableMaxY float64 `json:"table_max_y" mapstructure:"table_max_y"`

	// Motion classification
	NoiseThreshold float64 `json:"noise_threshold" mapstructure:"noise_threshold"` // min y drop per cycle to count as approaching
	LeftThreshold  float64 `json:"left_threshold" mapstructure:"left_threshold"`   // min x drop per cycle to count as moving left

	// Prediction
	SafetyMargin          float64 `json:"safety_margin" mapstructure:"safety_margin"`                   // predictions this close to a wall are not acted on
	ReflectionCoefficient float64 `json:"reflection_coefficient" mapstructure:"reflection_coefficient"` // bounce slope = -m * coefficient
	WallOffsetFactor      float64 `json:"wall_offset_factor" mapstructure:"wall_offset_factor"`         // wall x is inset by radius * factor

	// Detection validity bands
	PuckMinRadius  float64 `json:"puck_min_radius" mapstructure:"puck_min_radius"`
	PuckMaxRadius  float64 `json:"puck_max_radius" mapstructure:"puck_max_radius"`
	RobotMinRadius float64 `json:"robot_min_radius" mapstructure:"robot_min_radius"`
	RobotMaxRadius float64 `json:"robot_max_radius" mapstructure:"robot_max_radius"`

	// Loop
	CycleInterval time.Duration `json:"cycle_interval" mapstructure:"cycle_interval"` // how often to look for a new frame
	LostAfter     int           `json:"lost_after" mapstructure:"lost_after"`         // puckless cycles before an episode is abandoned
}

// DefaultConfig returns the configuration used on the table rig: a 640x360
// camera mounted sideways, so frames are 360 pixels wide.
func DefaultConfig() Config {
	return Config{
		FrameWidth:    360,
		DefensiveLine: 40,
		RobotMaxY:     320,

		TableMaxX: 1885,
		TableMaxY: 1820,

		NoiseThreshold: 1,
		LeftThreshold:  5,

		SafetyMargin:          50,
		ReflectionCoefficient: 2.5,
		WallOffsetFactor:      0.5,

		PuckMinRadius:  3,
		PuckMaxRadius:  80,
		RobotMinRadius: 10,
		RobotMaxRadius: 50,

		CycleInterval: 2 * time.Millisecond,
		LostAfter:     15,
	}
}

// Axes returns the pixel to travel mapping for this configuration.
func (c Config) Axes() calibration.Axes {
	return calibration.Axes{
		FrameWidth: c.FrameWidth,
		RobotMaxY:  c.RobotMaxY,
		TableMaxX:  c.TableMaxX,
		TableMaxY:  c.TableMaxY,
	}
}

// Validate returns a list of problems, or nil.
func (c Config) Validate() []string {
	problems := c.Axes().Validate()

	if c.DefensiveLine < 0 || c.DefensiveLine > c.RobotMaxY {
		problems = append(problems, "defensive_line must lie within the defender's reach")
	}
	if c.NoiseThreshold < 0 || c.LeftThreshold < 0 {
		problems = append(problems, "thresholds must not be negative")
	}
	if c.SafetyMargin < 0 || 2*c.SafetyMargin >= c.FrameWidth {
		problems = append(problems, fmt.Sprintf("safety_margin must be between 0 and %.0f", c.FrameWidth/2))
	}
	if c.ReflectionCoefficient <= 0 {
		problems = append(problems, "reflection_coefficient must be positive")
	}
	if c.WallOffsetFactor < 0 {
		problems = append(problems, "wall_offset_factor must not be negative")
	}
	if c.PuckMinRadius > c.PuckMaxRadius || c.RobotMinRadius > c.RobotMaxRadius {
		problems = append(problems, "radius bands must have min <= max")
	}
	if c.CycleInterval <= 0 {
		problems = append(problems, "cycle_interval must be positive")
	}
	if c.LostAfter < 1 {
		problems = append(problems, "lost_after must be at least 1")
	}
	return problems
}
