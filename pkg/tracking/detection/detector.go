// Package detection locates colored round objects (the puck and the opposing
// paddle) in camera frames.
package detection

import (
	"fmt"

	"github.com/teslashibe/rocky-hockey/pkg/geometry"
	"gocv.io/x/gocv"
)

// Detection is a located object in pixel coordinates.
// A zero radius means nothing matched the color range.
type Detection struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}

// Absent is the "nothing found" detection.
var Absent = Detection{}

// Present reports whether something was found.
func (d Detection) Present() bool {
	return d.Radius > 0
}

// InBand reports whether the radius lies in [min, max].
func (d Detection) InBand(min, max float64) bool {
	return d.Radius >= min && d.Radius <= max
}

// Center returns the detection center.
func (d Detection) Center() geometry.Point {
	return geometry.Pt(d.X, d.Y)
}

// HSV is a color in OpenCV's 8-bit HSV space (H 0-179, S and V 0-255).
type HSV struct {
	H float64 `json:"h" mapstructure:"h"`
	S float64 `json:"s" mapstructure:"s"`
	V float64 `json:"v" mapstructure:"v"`
}

// ColorRange is an inclusive HSV band.
type ColorRange struct {
	Lower HSV `json:"lower" mapstructure:"lower"`
	Upper HSV `json:"upper" mapstructure:"upper"`
}

// Validate returns a list of problems, or nil.
func (r ColorRange) Validate() []string {
	var problems []string
	check := func(name string, v, max float64) {
		if v < 0 || v > max {
			problems = append(problems, fmt.Sprintf("%s must be between 0 and %.0f", name, max))
		}
	}
	check("lower.h", r.Lower.H, 179)
	check("upper.h", r.Upper.H, 179)
	check("lower.s", r.Lower.S, 255)
	check("upper.s", r.Upper.S, 255)
	check("lower.v", r.Lower.V, 255)
	check("upper.v", r.Upper.V, 255)
	if r.Lower.H > r.Upper.H || r.Lower.S > r.Upper.S || r.Lower.V > r.Upper.V {
		problems = append(problems, "lower bound must not exceed upper bound")
	}
	return problems
}

func (r ColorRange) scalars() (gocv.Scalar, gocv.Scalar) {
	return gocv.NewScalar(r.Lower.H, r.Lower.S, r.Lower.V, 0),
		gocv.NewScalar(r.Upper.H, r.Upper.S, r.Upper.V, 0)
}

// DefaultPuckRange matches a saturated red puck.
func DefaultPuckRange() ColorRange {
	return ColorRange{
		Lower: HSV{H: 0, S: 120, V: 70},
		Upper: HSV{H: 10, S: 255, V: 255},
	}
}

// DefaultRobotRange matches a blue paddle.
func DefaultRobotRange() ColorRange {
	return ColorRange{
		Lower: HSV{H: 100, S: 150, V: 50},
		Upper: HSV{H: 130, S: 255, V: 255},
	}
}

// Locator finds one object of a given color in a BGR frame.
type Locator interface {
	Locate(frame gocv.Mat, r ColorRange) Detection
}

// Config holds locator parameters.
type Config struct {
	BlurKernel int `json:"blur_kernel" mapstructure:"blur_kernel"` // median blur aperture, odd
}

// DefaultConfig returns the production locator settings.
func DefaultConfig() Config {
	return Config{BlurKernel: 19}
}
