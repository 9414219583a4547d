package robot

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned when the controller does not answer in time.
	// The command counts as failed; the link stays usable.
	ErrTimeout = errors.New("robot: link timeout")

	// ErrUnexpectedReply is returned when the controller answers with
	// something other than the expected acknowledgment.
	ErrUnexpectedReply = errors.New("robot: unexpected reply")

	// ErrNoPort is returned when no serial port is configured.
	ErrNoPort = errors.New("robot: no serial port configured")
)

// LinkError is an I/O failure on the serial link. After one of these the
// link is considered gone.
type LinkError struct {
	Op  string
	Err error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("robot: %s: %v", e.Op, e.Err)
}

func (e *LinkError) Unwrap() error {
	return e.Err
}

// Recoverable reports whether the link can keep serving commands after err.
func Recoverable(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrUnexpectedReply)
}
