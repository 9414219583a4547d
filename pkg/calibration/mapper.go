package calibration

import "github.com/teslashibe/rocky-hockey/pkg/geometry"

// MapPoint scales (x, y) from a fromW x fromH space into a toW x toH space.
func MapPoint(x, y, fromW, fromH, toW, toH float64) (float64, float64) {
	return x * (toW / fromW), y * (toH / fromH)
}

// Axes describes the pixel region the defender can reach and the stage's
// travel limits.
type Axes struct {
	FrameWidth float64 `json:"frame_width"` // pixel x extent of the rotated frame
	RobotMaxY  float64 `json:"robot_max_y"` // pixel y extent of the defender's half
	TableMaxX  float64 `json:"table_max_x"` // stage travel units
	TableMaxY  float64 `json:"table_max_y"`
}

// ToTravel converts a pixel position into stage travel units. The camera
// looks at the table from the opposite side of the stage, so X is mirrored.
func (a Axes) ToTravel(p geometry.Point) geometry.Point {
	x, y := MapPoint(p.X, p.Y, a.FrameWidth, a.RobotMaxY, a.TableMaxX, a.TableMaxY)
	return geometry.Pt(a.TableMaxX-x, y)
}

// Validate returns a list of problems, or nil.
func (a Axes) Validate() []string {
	var problems []string
	if a.FrameWidth <= 0 {
		problems = append(problems, "frame_width must be positive")
	}
	if a.RobotMaxY <= 0 {
		problems = append(problems, "robot_max_y must be positive")
	}
	if a.TableMaxX <= 0 || a.TableMaxY <= 0 {
		problems = append(problems, "table limits must be positive")
	}
	return problems
}
