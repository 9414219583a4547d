package tracking

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/teslashibe/rocky-hockey/pkg/calibration"
	"github.com/teslashibe/rocky-hockey/pkg/geometry"
	"github.com/teslashibe/rocky-hockey/pkg/tracking/detection"
)

// Observation is one cycle's input to the predictor.
type Observation struct {
	Puck  detection.Detection
	Robot detection.Detection
	Armed bool // when false, moves are computed but not requested
}

// Result is one cycle's output. Move is nil unless a command should be sent.
type Result struct {
	Phase      Phase           `json:"phase"`
	Track      TrackState      `json:"track"`
	Prediction PredictionState `json:"prediction"`
	Move       *Intent         `json:"move,omitempty"`

	// Started is set on the cycle a prediction was made; Ended on the cycle
	// an episode with a prediction finished. EpisodeID names that episode.
	Started   bool      `json:"started"`
	Ended     bool      `json:"ended"`
	EpisodeID uuid.UUID `json:"episode_id"`

	Err error `json:"-"` // prediction aborted this cycle
}

// Predictor is the approach state machine. It is driven from a single
// goroutine and keeps no locks.
type Predictor struct {
	cfg  Config
	axes calibration.Axes

	phase  Phase
	seeded bool
	track  TrackState
	pred   PredictionState
}

// NewPredictor creates an idle predictor. The defender is assumed to start
// parked, so no return-to-goal move is issued before the first episode.
func NewPredictor(cfg Config) *Predictor {
	return &Predictor{
		cfg:  cfg,
		axes: cfg.Axes(),
		pred: PredictionState{WentBackToGoal: true},
		track: TrackState{
			Robot:      geometry.Pt(-1, -1),
			RobotSpeed: -1,
		},
	}
}

// Phase returns the current phase.
func (p *Predictor) Phase() Phase {
	return p.phase
}

// Step advances the state machine by one cycle.
func (p *Predictor) Step(obs Observation) Result {
	var res Result

	p.updateRobot(obs.Robot)

	if !obs.Puck.Present() || !obs.Puck.InBand(p.cfg.PuckMinRadius, p.cfg.PuckMaxRadius) {
		p.track.Missing++
		p.track.HasPuck = false
		if p.track.Missing == p.cfg.LostAfter {
			if p.phase != Idle {
				p.endEpisode(obs.Armed, &res)
			}
			p.phase = Idle
			p.track.Approaching = false
			p.track.WasApproaching = false
			p.track.MovingLeft = false
			p.track.WasMovingLeft = false
		}
		return p.finish(res)
	}

	cur := obs.Puck.Center()
	radius := obs.Puck.Radius

	if !p.seeded || p.track.Missing >= p.cfg.LostAfter {
		// First sighting, or back after being lost: nothing to compare with.
		p.seeded = true
		p.track.Missing = 0
		p.track.Puck = cur
		p.track.LastPuck = cur
		p.track.PuckRadius = radius
		p.track.PuckSpeed = 0
		p.track.HasPuck = true
		return p.finish(res)
	}
	p.track.Missing = 0
	p.track.HasPuck = true

	last := p.track.Puck
	approaching := last.Y-cur.Y > p.cfg.NoiseThreshold
	movingLeft := last.X-cur.X > p.cfg.LeftThreshold

	if approaching && p.track.WasApproaching {
		if !p.pred.Made {
			if err := p.predict(last, cur, radius, obs.Armed, &res); err != nil {
				res.Err = err
				p.phase = Tracking
			} else {
				p.phase = Predicted
			}
		}
	} else {
		p.endEpisode(obs.Armed, &res)
		if approaching {
			p.phase = Tracking
		} else {
			p.phase = Idle
		}
	}

	p.track.WasApproaching = approaching
	p.track.Approaching = approaching
	p.track.WasMovingLeft = p.track.MovingLeft
	p.track.MovingLeft = movingLeft
	p.track.PuckSpeed = last.Dist(cur)
	p.track.LastPuck = last
	p.track.Puck = cur
	p.track.PuckRadius = radius

	return p.finish(res)
}

func (p *Predictor) finish(res Result) Result {
	res.Phase = p.phase
	res.Track = p.track
	res.Prediction = p.pred
	return res
}

func (p *Predictor) updateRobot(d detection.Detection) {
	if !d.InBand(p.cfg.RobotMinRadius, p.cfg.RobotMaxRadius) {
		p.track.LastRobot = p.track.Robot
		p.track.Robot = geometry.Pt(-1, -1)
		p.track.RobotRadius = -1
		p.track.RobotSpeed = -1
		p.track.RobotStopped = true
		return
	}

	cur := d.Center()
	speed := 0.0
	if p.track.RobotRadius > 0 {
		speed = p.track.Robot.Dist(cur)
	}
	p.track.LastRobot = p.track.Robot
	p.track.Robot = cur
	p.track.RobotRadius = d.Radius
	p.track.RobotSpeed = speed
	p.track.RobotStopped = speed <= 1
}

// endEpisode resets the prediction and, once per episode, sends the
// defender back to the middle of the defensive line.
func (p *Predictor) endEpisode(armed bool, res *Result) {
	if p.pred.Made {
		res.Ended = true
		res.EpisodeID = p.pred.EpisodeID
	}

	wentBack := p.pred.WentBackToGoal
	p.pred = PredictionState{WentBackToGoal: wentBack}

	if wentBack {
		return
	}
	p.pred.WentBackToGoal = true
	if armed {
		goal := geometry.Pt(p.cfg.FrameWidth/2, p.cfg.DefensiveLine)
		res.Move = &Intent{Target: p.axes.ToTravel(goal), Reason: ReturnToGoal}
	}
}

// predict computes where the puck travelling from last to cur will cross
// the defensive line. The path is reflected off the side wall it heads for
// when the wall hit happens before the puck reaches the defender.
func (p *Predictor) predict(last, cur geometry.Point, radius float64, armed bool, res *Result) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPredictionPanic, r)
		}
	}()

	path := geometry.LineThrough(last, cur)
	m, ok := path.Slope()
	if !ok {
		return ErrVerticalPath
	}
	angle, _ := path.Angle()

	inset := radius * p.cfg.WallOffsetFactor
	wallX := inset
	if angle < 0 {
		wallX = p.cfg.FrameWidth - inset
	}
	wallY, _ := path.YAt(wallX)
	collision := geometry.Pt(wallX, wallY)
	reflection := geometry.LineWithSlope(collision, -m*p.cfg.ReflectionCoefficient)

	defenderY := p.cfg.DefensiveLine
	if p.track.RobotVisible() {
		defenderY = p.track.Robot.Y
	}
	bounced := collision.Y > defenderY

	line := path
	if bounced {
		line = reflection
	}
	x, ok := line.XAt(p.cfg.DefensiveLine)
	if !ok {
		return ErrNoCrossing
	}
	predicted := geometry.Pt(x, p.cfg.DefensiveLine)
	inMargin := x > p.cfg.SafetyMargin && x < p.cfg.FrameWidth-p.cfg.SafetyMargin

	p.pred = PredictionState{
		Made:         true,
		EpisodeID:    uuid.New(),
		SavedPoint:   cur,
		Collision:    collision,
		Predicted:    predicted,
		Path:         path,
		Reflection:   reflection,
		PuckCollides: true,
		Bounced:      bounced,
		InMargin:     inMargin,
	}
	res.Started = true
	res.EpisodeID = p.pred.EpisodeID

	if inMargin && armed {
		res.Move = &Intent{Target: p.axes.ToTravel(predicted), Reason: Intercept}
	}
	return nil
}
