package tracking

import (
	"fmt"

	"github.com/teslashibe/rocky-hockey/pkg/tracking/detection"
)

// Color range targets.
const (
	TargetPuck  = "puck"
	TargetRobot = "robot"
)

// TuningParams holds the settings the operator adjusts while the loop runs.
// They are read once per frame.
type TuningParams struct {
	PuckRange  detection.ColorRange `json:"puck_range"`
	RobotRange detection.ColorRange `json:"robot_range"`
	Armed      bool                 `json:"armed"` // send moves to the stage
}

// DefaultTuningParams returns disarmed defaults.
func DefaultTuningParams() TuningParams {
	return TuningParams{
		PuckRange:  detection.DefaultPuckRange(),
		RobotRange: detection.DefaultRobotRange(),
	}
}

// GetTuningParams returns the current runtime settings.
func (t *Tracker) GetTuningParams() TuningParams {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tuning
}

// SetTuningParams replaces the runtime settings after validating both
// color ranges.
func (t *Tracker) SetTuningParams(params TuningParams) error {
	if problems := params.PuckRange.Validate(); len(problems) > 0 {
		return fmt.Errorf("puck range: %v", problems)
	}
	if problems := params.RobotRange.Validate(); len(problems) > 0 {
		return fmt.Errorf("robot range: %v", problems)
	}
	t.mu.Lock()
	t.tuning = params
	t.mu.Unlock()
	return nil
}

// SetColorRange updates the range for "puck" or "robot".
func (t *Tracker) SetColorRange(target string, r detection.ColorRange) error {
	if problems := r.Validate(); len(problems) > 0 {
		return fmt.Errorf("%s range: %v", target, problems)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	switch target {
	case TargetPuck:
		t.tuning.PuckRange = r
	case TargetRobot:
		t.tuning.RobotRange = r
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTarget, target)
	}
	return nil
}

// ColorRange returns the range for "puck" or "robot".
func (t *Tracker) ColorRange(target string) (detection.ColorRange, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	switch target {
	case TargetPuck:
		return t.tuning.PuckRange, nil
	case TargetRobot:
		return t.tuning.RobotRange, nil
	}
	return detection.ColorRange{}, fmt.Errorf("%w: %q", ErrUnknownTarget, target)
}

// SetArmed enables or disables automatic defender moves.
func (t *Tracker) SetArmed(armed bool) {
	t.mu.Lock()
	t.tuning.Armed = armed
	t.mu.Unlock()
	t.logger.Info("bot state changed", "armed", armed)
}
