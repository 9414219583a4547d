package calibration

import "errors"

var (
	// ErrTooManyCorners is returned when a fifth corner is added.
	ErrTooManyCorners = errors.New("calibration: four corners already set")

	// ErrIncompleteCorners is returned when applying fewer than four corners.
	ErrIncompleteCorners = errors.New("calibration: four corners required")

	// ErrDegenerateCorners is returned when the corners do not span a quad.
	ErrDegenerateCorners = errors.New("calibration: corners are degenerate")
)
