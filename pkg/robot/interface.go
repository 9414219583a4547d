// Package robot drives the defender's two-axis stepper stage.
//
// Interfaces are kept small so consumers depend only on what they use:
// the tracker needs a Commander, the dispatcher needs a Link, and tests can
// stand in for either.
package robot

import "io"

// Mover moves the stage to an absolute position in travel units.
type Mover interface {
	MoveTo(x, y int) error
}

// Homer runs the stage's homing routine.
type Homer interface {
	Calibrate() error
}

// Trimmer applies a fixed correction to the stage's zero point.
type Trimmer interface {
	SetOffset(x, y int) error
}

// Link is the full command surface of the stage controller.
type Link interface {
	Mover
	Homer
	Trimmer
	io.Closer
}

// Enqueuer accepts commands for asynchronous execution.
type Enqueuer interface {
	Enqueue(cmd MoveCommand)
}

// Ensure implementations satisfy Link
var (
	_ Link = (*StepperLink)(nil)
	_ Link = (*DisabledLink)(nil)
)
