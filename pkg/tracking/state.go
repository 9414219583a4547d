package tracking

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/teslashibe/rocky-hockey/pkg/geometry"
)

// Phase is where the predictor is in an approach episode.
type Phase int

const (
	// Idle: the puck is not approaching the defender.
	Idle Phase = iota
	// Tracking: the puck is approaching but no prediction has been made.
	Tracking
	// Predicted: a crossing point was computed for this episode.
	Predicted
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Tracking:
		return "tracking"
	case Predicted:
		return "predicted"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// MarshalText renders the phase by name in JSON.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses a phase name.
func (p *Phase) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*p = Idle
	case "tracking":
		*p = Tracking
	case "predicted":
		*p = Predicted
	default:
		return fmt.Errorf("tracking: unknown phase %q", text)
	}
	return nil
}

// TrackState is the per-cycle motion record for the puck and the paddle.
// It is advanced once per cycle, after prediction has read the previous
// values.
type TrackState struct {
	Puck       geometry.Point `json:"puck"`
	LastPuck   geometry.Point `json:"last_puck"`
	PuckRadius float64        `json:"puck_radius"`
	PuckSpeed  float64        `json:"puck_speed"` // pixels per cycle
	HasPuck    bool           `json:"has_puck"`

	Approaching    bool `json:"approaching"`
	WasApproaching bool `json:"was_approaching"`
	MovingLeft     bool `json:"moving_left"`
	WasMovingLeft  bool `json:"was_moving_left"`

	Robot        geometry.Point `json:"robot"`
	LastRobot    geometry.Point `json:"last_robot"`
	RobotRadius  float64        `json:"robot_radius"`
	RobotSpeed   float64        `json:"robot_speed"` // -1 when the paddle is not seen
	RobotStopped bool           `json:"robot_stopped"`

	Missing int `json:"missing"` // consecutive cycles without a valid puck
}

// RobotVisible reports whether the paddle was detected this cycle.
func (t TrackState) RobotVisible() bool {
	return t.RobotRadius > 0
}

// PredictionState is the current approach episode's prediction.
type PredictionState struct {
	Made      bool      `json:"made"`
	EpisodeID uuid.UUID `json:"episode_id"`

	SavedPoint geometry.Point `json:"saved_point"` // puck position the prediction was made from
	Collision  geometry.Point `json:"collision"`   // where the path meets the side wall
	Predicted  geometry.Point `json:"predicted"`   // crossing of the defensive line

	Path       geometry.Line `json:"-"`
	Reflection geometry.Line `json:"-"`

	PuckCollides bool `json:"puck_collides"`
	Bounced      bool `json:"bounced"`   // Predicted came from the reflection line
	InMargin     bool `json:"in_margin"` // Predicted is far enough from the walls to act on

	WentBackToGoal bool `json:"went_back_to_goal"`
}

// Reason says why a move was requested.
type Reason int

const (
	// Intercept moves to the predicted crossing point.
	Intercept Reason = iota
	// ReturnToGoal parks the defender in the middle of the defensive line.
	ReturnToGoal
)

func (r Reason) String() string {
	if r == ReturnToGoal {
		return "return_to_goal"
	}
	return "intercept"
}

// MarshalText renders the reason by name in JSON.
func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText parses a reason name.
func (r *Reason) UnmarshalText(text []byte) error {
	switch string(text) {
	case "intercept":
		*r = Intercept
	case "return_to_goal":
		*r = ReturnToGoal
	default:
		return fmt.Errorf("tracking: unknown reason %q", text)
	}
	return nil
}

// Intent is a requested defender position in stage travel units.
type Intent struct {
	Target geometry.Point `json:"target"`
	Reason Reason         `json:"reason"`
}
