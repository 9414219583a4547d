package tracking

import "errors"

var (
	// ErrVerticalPath means the puck moved straight along y, so its path
	// has no slope to predict with.
	ErrVerticalPath = errors.New("tracking: puck path is vertical")

	// ErrNoCrossing means the predicted path never reaches the defensive line.
	ErrNoCrossing = errors.New("tracking: path does not cross the defensive line")

	// ErrPredictionPanic wraps a recovered panic from the prediction step.
	ErrPredictionPanic = errors.New("tracking: prediction failed")

	// ErrUnknownTarget is returned for a color range target other than
	// "puck" or "robot".
	ErrUnknownTarget = errors.New("tracking: unknown target")
)
