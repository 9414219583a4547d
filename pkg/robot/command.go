package robot

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind selects what a MoveCommand does.
type Kind int

const (
	// Normal moves to (X, Y).
	Normal Kind = iota
	// Calibrate runs the homing routine. X and Y are ignored.
	Calibrate
	// Trim sets the zero-point offset to (X, Y).
	Trim
)

func (k Kind) String() string {
	switch k {
	case Normal:
		return "normal"
	case Calibrate:
		return "calibrate"
	case Trim:
		return "trim"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText renders the kind by name in JSON.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// MoveCommand is one instruction for the stage. Each is executed exactly once.
type MoveCommand struct {
	ID       uuid.UUID `json:"id"`
	Kind     Kind      `json:"kind"`
	X        int       `json:"x"`
	Y        int       `json:"y"`
	IssuedAt time.Time `json:"issued_at"`
}

// NewMove builds a Normal command. Fractions are truncated toward zero.
func NewMove(x, y float64) MoveCommand {
	return MoveCommand{ID: uuid.New(), Kind: Normal, X: int(x), Y: int(y), IssuedAt: time.Now()}
}

// NewCalibrate builds a homing command.
func NewCalibrate() MoveCommand {
	return MoveCommand{ID: uuid.New(), Kind: Calibrate, IssuedAt: time.Now()}
}

// NewTrim builds an offset command.
func NewTrim(x, y int) MoveCommand {
	return MoveCommand{ID: uuid.New(), Kind: Trim, X: x, Y: y, IssuedAt: time.Now()}
}

func (c MoveCommand) String() string {
	if c.Kind == Calibrate {
		return "calibrate"
	}
	return fmt.Sprintf("%s(%d,%d)", c.Kind, c.X, c.Y)
}
