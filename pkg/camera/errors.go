package camera

import (
	"errors"
	"strings"
)

var (
	// ErrSourceStopped is reported once a frame read fails. The source
	// does not retry.
	ErrSourceStopped = errors.New("camera: source stopped")

	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("camera: already started")

	// ErrOpen wraps device open failures.
	ErrOpen = errors.New("camera: open failed")

	// ErrUnknownPreset is returned for a preset name not in Presets.
	ErrUnknownPreset = errors.New("camera: unknown preset")
)

// ValidationError lists every problem with rejected settings.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "camera: invalid settings: " + strings.Join(e.Problems, "; ")
}
