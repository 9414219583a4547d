package tracking

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/rocky-hockey/internal/log"
	"github.com/teslashibe/rocky-hockey/pkg/calibration"
	"github.com/teslashibe/rocky-hockey/pkg/camera"
	"github.com/teslashibe/rocky-hockey/pkg/geometry"
	"github.com/teslashibe/rocky-hockey/pkg/tracking/detection"
	"gocv.io/x/gocv"
)

// FrameSource supplies camera frames.
type FrameSource interface {
	CurrentFrame() (*camera.Frame, bool)
	HasNewFrame() bool
	Done() <-chan struct{}
	Err() error
}

// Mover accepts defender positions in travel units. It reports whether the
// move was actually queued.
type Mover interface {
	Move(p geometry.Point) bool
}

// Publisher receives a snapshot after every processed frame.
type Publisher interface {
	Publish(s Snapshot)
}

// FrameSink receives the processed frame for display. WantsFrame is asked
// first so frames are only drawn when someone is watching.
type FrameSink interface {
	WantsFrame() bool
	SendFrame(frame gocv.Mat, s Snapshot, corners []geometry.Point)
}

// EpisodeRecorder persists prediction episodes.
type EpisodeRecorder interface {
	EpisodeStarted(ep Episode)
	EpisodeEnded(id uuid.UUID, at time.Time)
}

// Episode describes a prediction when it is made.
type Episode struct {
	ID        uuid.UUID      `json:"id"`
	StartedAt time.Time      `json:"started_at"`
	From      geometry.Point `json:"from"`
	Collision geometry.Point `json:"collision"`
	Predicted geometry.Point `json:"predicted"`
	Bounced   bool           `json:"bounced"`
	Commanded bool           `json:"commanded"`
}

// Snapshot is what one processed frame looked like.
type Snapshot struct {
	Seq         uint64              `json:"seq"`
	CapturedAt  time.Time           `json:"captured_at"`
	FrameTimeMs float64             `json:"frame_time_ms"`
	FPS         float64             `json:"fps"`
	Rectified   bool                `json:"rectified"`
	Armed       bool                `json:"armed"`
	Puck        detection.Detection `json:"puck"`
	Robot       detection.Detection `json:"robot"`
	Result      Result              `json:"result"`
	MoveQueued  bool                `json:"move_queued"`
}

// Tracker runs the per-frame pipeline: rectify, locate, predict, command.
type Tracker struct {
	config    Config
	source    FrameSource
	locator   detection.Locator
	rectifier *calibration.Rectifier
	predictor *Predictor
	mover     Mover

	publisher Publisher
	sink      FrameSink
	recorder  EpisodeRecorder

	mu     sync.RWMutex
	tuning TuningParams
	last   Snapshot

	warped      gocv.Mat
	lastFrameAt time.Time
	logger      *slog.Logger
}

// New creates a tracker. rectifier may be nil to skip rectification.
func New(config Config, source FrameSource, locator detection.Locator, rectifier *calibration.Rectifier, mover Mover) *Tracker {
	return &Tracker{
		config:    config,
		source:    source,
		locator:   locator,
		rectifier: rectifier,
		predictor: NewPredictor(config),
		mover:     mover,
		tuning:    DefaultTuningParams(),
		warped:    gocv.NewMat(),
		logger:    log.Component("tracker"),
	}
}

// SetPublisher sets the telemetry receiver. Call before Run.
func (t *Tracker) SetPublisher(p Publisher) {
	t.publisher = p
}

// SetFrameSink sets the display receiver. Call before Run.
func (t *Tracker) SetFrameSink(s FrameSink) {
	t.sink = s
}

// SetRecorder sets the episode journal. Call before Run.
func (t *Tracker) SetRecorder(r EpisodeRecorder) {
	t.recorder = r
}

// Last returns the most recent snapshot.
func (t *Tracker) Last() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

// Axes returns the pixel to travel mapping.
func (t *Tracker) Axes() calibration.Axes {
	return t.config.Axes()
}

// Run processes frames until ctx is done or the source stops. It returns
// the source's error in the latter case.
func (t *Tracker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.config.CycleInterval)
	defer ticker.Stop()
	defer t.warped.Close()

	t.logger.Info("tracker started",
		"cycle", t.config.CycleInterval,
		"frame_width", t.config.FrameWidth,
		"defensive_line", t.config.DefensiveLine)

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-t.source.Done():
			err := t.source.Err()
			t.logger.Error("frame source stopped", "err", err)
			return err

		case <-ticker.C:
			if !t.source.HasNewFrame() {
				continue
			}
			frame, ok := t.source.CurrentFrame()
			if !ok {
				continue
			}
			t.cycle(frame)
			frame.Close()
		}
	}
}

// cycle processes one frame; nothing that goes wrong here stops the loop.
func (t *Tracker) cycle(frame *camera.Frame) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("cycle failed", "seq", frame.Seq, "panic", r)
		}
	}()
	t.Process(frame)
}

// Process runs the pipeline on one frame and returns its snapshot.
func (t *Tracker) Process(frame *camera.Frame) Snapshot {
	tuning := t.GetTuningParams()

	img := frame.Mat
	rectified := false
	if t.rectifier != nil && t.rectifier.Rectify(frame.Mat, &t.warped) {
		img = t.warped
		rectified = true
	}

	puck := t.locator.Locate(img, tuning.PuckRange)
	robot := t.locator.Locate(img, tuning.RobotRange)

	res := t.predictor.Step(Observation{Puck: puck, Robot: robot, Armed: tuning.Armed})
	if res.Err != nil {
		t.logger.Debug("prediction aborted", "err", res.Err)
	}

	queued := false
	if res.Move != nil && t.mover != nil {
		queued = t.mover.Move(res.Move.Target)
	}

	if t.recorder != nil {
		if res.Ended {
			t.recorder.EpisodeEnded(res.EpisodeID, frame.CapturedAt)
		}
		if res.Started {
			t.recorder.EpisodeStarted(Episode{
				ID:        res.EpisodeID,
				StartedAt: frame.CapturedAt,
				From:      res.Prediction.SavedPoint,
				Collision: res.Prediction.Collision,
				Predicted: res.Prediction.Predicted,
				Bounced:   res.Prediction.Bounced,
				Commanded: queued,
			})
		}
	}

	snap := Snapshot{
		Seq:        frame.Seq,
		CapturedAt: frame.CapturedAt,
		Rectified:  rectified,
		Armed:      tuning.Armed,
		Puck:       puck,
		Robot:      robot,
		Result:     res,
		MoveQueued: queued,
	}
	if !t.lastFrameAt.IsZero() {
		if dt := frame.CapturedAt.Sub(t.lastFrameAt); dt > 0 {
			snap.FrameTimeMs = float64(dt.Microseconds()) / 1000
			snap.FPS = 1000 / snap.FrameTimeMs
		}
	}
	t.lastFrameAt = frame.CapturedAt

	t.mu.Lock()
	t.last = snap
	t.mu.Unlock()

	if t.publisher != nil {
		t.publisher.Publish(snap)
	}
	if t.sink != nil && t.sink.WantsFrame() {
		var corners []geometry.Point
		if t.rectifier != nil && !rectified {
			corners = t.rectifier.Corners()
		}
		t.sink.SendFrame(img, snap, corners)
	}

	return snap
}
