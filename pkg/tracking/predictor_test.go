package tracking

import (
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/teslashibe/rocky-hockey/pkg/geometry"
	"github.com/teslashibe/rocky-hockey/pkg/tracking/detection"
)

const floatTolerance = 1e-6

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) < floatTolerance
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.FrameWidth = 350
	return cfg
}

func puckAt(x, y float64) detection.Detection {
	return detection.Detection{X: x, Y: y, Radius: 10}
}

// feed steps the predictor through puck positions and returns every result.
func feed(p *Predictor, armed bool, pts ...geometry.Point) []Result {
	out := make([]Result, 0, len(pts))
	for _, pt := range pts {
		out = append(out, p.Step(Observation{Puck: puckAt(pt.X, pt.Y), Armed: armed}))
	}
	return out
}

func moves(results []Result) []Intent {
	var out []Intent
	for _, r := range results {
		if r.Move != nil {
			out = append(out, *r.Move)
		}
	}
	return out
}

func TestPredictor_ReflectionScenario(t *testing.T) {
	p := NewPredictor(testConfig())

	// Along y = 2x - 50, heading up and to the left.
	res := feed(p, true,
		geometry.Pt(187.5, 325),
		geometry.Pt(175, 300),
		geometry.Pt(150, 250),
	)
	last := res[2]

	if last.Phase != Predicted {
		t.Fatalf("phase: got %v, want predicted", last.Phase)
	}
	pred := last.Prediction
	if !pred.Made || !pred.PuckCollides {
		t.Fatalf("prediction: %+v", pred)
	}
	if !floatEquals(pred.Collision.X, 5) {
		t.Errorf("collision x: got %v, want 5 (left wall inset by r/2)", pred.Collision.X)
	}
	if m, _ := pred.Reflection.Slope(); !floatEquals(m, -5) {
		t.Errorf("reflection slope: got %v, want -5", m)
	}
	// The wall hit is above the defender, so the direct path is used.
	if pred.Bounced {
		t.Error("collision behind the defender should not bounce")
	}
	if !floatEquals(pred.Predicted.X, 45) || !floatEquals(pred.Predicted.Y, 40) {
		t.Errorf("predicted: got %v, want (45, 40)", pred.Predicted)
	}
	if pred.InMargin || last.Move != nil {
		t.Error("x=45 is inside the safety margin; no move expected")
	}
	if pred.SavedPoint != geometry.Pt(150, 250) {
		t.Errorf("saved point: got %v", pred.SavedPoint)
	}
}

func TestPredictor_OneCommandPerEpisode(t *testing.T) {
	p := NewPredictor(testConfig())

	// Along y = -2x + 440, heading up and to the right.
	res := feed(p, true,
		geometry.Pt(140, 160),
		geometry.Pt(150, 140),
		geometry.Pt(160, 120),
		geometry.Pt(170, 100),
		geometry.Pt(180, 80),
		geometry.Pt(190, 60),
	)

	if res[0].Phase != Idle {
		t.Errorf("seed cycle: got %v, want idle", res[0].Phase)
	}
	if res[1].Phase != Tracking {
		t.Errorf("first approaching cycle: got %v, want tracking", res[1].Phase)
	}
	if res[1].Move != nil {
		t.Error("no command before the approach is confirmed")
	}
	if res[2].Phase != Predicted || !res[2].Started {
		t.Fatalf("confirmed cycle: got %v started=%v", res[2].Phase, res[2].Started)
	}

	got := moves(res)
	if len(got) != 1 {
		t.Fatalf("expected exactly one command, got %d: %+v", len(got), got)
	}
	if got[0].Reason != Intercept {
		t.Errorf("reason: got %v", got[0].Reason)
	}

	// Right wall at 345, y = -250: in front of the defender, direct path
	// crosses y=40 at x=200.
	pred := res[5].Prediction
	if pred.Bounced || !floatEquals(pred.Predicted.X, 200) {
		t.Errorf("prediction: %+v", pred)
	}
	if !floatEquals(pred.Collision.X, 345) {
		t.Errorf("collision x: got %v, want 345", pred.Collision.X)
	}

	axes := testConfig().Axes()
	want := axes.ToTravel(geometry.Pt(200, 40))
	if !floatEquals(got[0].Target.X, want.X) || !floatEquals(got[0].Target.Y, want.Y) {
		t.Errorf("target: got %v, want %v", got[0].Target, want)
	}

	for i := 3; i < len(res); i++ {
		if res[i].EpisodeID != uuid.Nil && res[i].Started {
			t.Errorf("cycle %d started a second prediction", i)
		}
	}
}

func TestPredictor_ReturnToGoalOncePerEpisode(t *testing.T) {
	p := NewPredictor(testConfig())
	res := feed(p, true,
		geometry.Pt(140, 160),
		geometry.Pt(150, 140),
		geometry.Pt(160, 120),
	)
	id := res[2].EpisodeID

	// Puck turns around.
	res = feed(p, true,
		geometry.Pt(165, 150),
		geometry.Pt(170, 180),
		geometry.Pt(175, 210),
	)

	if !res[0].Ended || res[0].EpisodeID != id {
		t.Errorf("episode should end on the first non-approaching cycle: %+v", res[0])
	}
	if res[0].Phase != Idle {
		t.Errorf("phase: got %v, want idle", res[0].Phase)
	}
	if res[0].Prediction.Made {
		t.Error("prediction should be reset")
	}

	got := moves(res)
	if len(got) != 1 || got[0].Reason != ReturnToGoal {
		t.Fatalf("expected one return-to-goal, got %+v", got)
	}
	if !floatEquals(got[0].Target.X, 942.5) || !floatEquals(got[0].Target.Y, 227.5) {
		t.Errorf("goal target: got %v, want (942.5, 227.5)", got[0].Target)
	}
}

func TestPredictor_NoGoalBeforeFirstEpisode(t *testing.T) {
	p := NewPredictor(testConfig())
	res := feed(p, true,
		geometry.Pt(100, 100),
		geometry.Pt(100, 120),
		geometry.Pt(110, 140),
	)
	if got := moves(res); len(got) != 0 {
		t.Errorf("expected no commands, got %+v", got)
	}
}

func TestPredictor_DisarmedComputesButDoesNotCommand(t *testing.T) {
	p := NewPredictor(testConfig())
	res := feed(p, false,
		geometry.Pt(140, 160),
		geometry.Pt(150, 140),
		geometry.Pt(160, 120),
		geometry.Pt(165, 150),
	)
	if !res[2].Prediction.Made {
		t.Error("prediction should still be made while disarmed")
	}
	if got := moves(res); len(got) != 0 {
		t.Errorf("disarmed predictor issued %+v", got)
	}
	if !res[3].Prediction.WentBackToGoal {
		t.Error("return-to-goal should be marked done even when disarmed")
	}
}

func TestPredictor_Bounce(t *testing.T) {
	p := NewPredictor(testConfig())

	// y = 2x + 505: hits the left wall (x=5) at y=515, far above the line.
	res := feed(p, true,
		geometry.Pt(70, 645),
		geometry.Pt(60, 625),
		geometry.Pt(50, 605),
	)
	pred := res[2].Prediction

	if !pred.Bounced {
		t.Fatal("expected the reflection to be used")
	}
	if !floatEquals(pred.Collision.Y, 515) {
		t.Errorf("collision y: got %v, want 515", pred.Collision.Y)
	}
	// Reflection slope -5 through (5, 515) crosses y=40 at x=100.
	if !floatEquals(pred.Predicted.X, 100) {
		t.Errorf("predicted x: got %v, want 100", pred.Predicted.X)
	}
	if res[2].Move == nil {
		t.Fatal("expected an intercept move")
	}
	want := 1885 - 100*1885.0/350
	if !floatEquals(res[2].Move.Target.X, want) {
		t.Errorf("target x: got %v, want %v (mirrored)", res[2].Move.Target.X, want)
	}
}

func TestPredictor_NoBounceBehindDefender(t *testing.T) {
	p := NewPredictor(testConfig())
	robot := detection.Detection{X: 175, Y: 600, Radius: 20}

	var res Result
	for _, pt := range []geometry.Point{{X: 70, Y: 645}, {X: 60, Y: 625}, {X: 50, Y: 605}} {
		res = p.Step(Observation{Puck: puckAt(pt.X, pt.Y), Robot: robot, Armed: true})
	}

	if res.Prediction.Bounced {
		t.Error("a wall hit beyond the defender must not be reflected")
	}
	if res.Move != nil {
		t.Errorf("direct path misses the table; got move %+v", res.Move)
	}
}

func TestPredictor_VerticalPathRetries(t *testing.T) {
	p := NewPredictor(testConfig())
	res := feed(p, true,
		geometry.Pt(95, 240),
		geometry.Pt(100, 220),
		geometry.Pt(100, 200),
	)

	if !errors.Is(res[2].Err, ErrVerticalPath) {
		t.Fatalf("expected ErrVerticalPath, got %v", res[2].Err)
	}
	if res[2].Phase != Tracking || res[2].Prediction.Made {
		t.Errorf("vertical path should leave the predictor tracking: %v", res[2].Phase)
	}

	next := p.Step(Observation{Puck: puckAt(110, 180), Armed: true})
	if next.Phase != Predicted {
		t.Errorf("next cycle should predict, got %v (err %v)", next.Phase, next.Err)
	}
}

func TestPredictor_NoiseIsNotApproach(t *testing.T) {
	p := NewPredictor(testConfig())
	res := feed(p, true,
		geometry.Pt(100, 200),
		geometry.Pt(100, 199),
		geometry.Pt(101, 198),
		geometry.Pt(102, 197),
	)
	for i, r := range res {
		if r.Phase != Idle || r.Track.Approaching {
			t.Errorf("cycle %d: 1px drift should not count as approaching", i)
		}
	}
}

func TestPredictor_MovingLeft(t *testing.T) {
	p := NewPredictor(testConfig())
	res := feed(p, false,
		geometry.Pt(200, 200),
		geometry.Pt(190, 200),
		geometry.Pt(188, 200),
	)
	if !res[1].Track.MovingLeft {
		t.Error("10px left should count")
	}
	if res[2].Track.MovingLeft || !res[2].Track.WasMovingLeft {
		t.Errorf("2px left should not count: %+v", res[2].Track)
	}
}

func TestPredictor_RobotOutOfBand(t *testing.T) {
	p := NewPredictor(testConfig())

	for _, radius := range []float64{0, 5, 9.9, 50.5, 120} {
		res := p.Step(Observation{Robot: detection.Detection{X: 100, Y: 100, Radius: radius}})
		tr := res.Track
		if tr.RobotSpeed != -1 || tr.RobotRadius != -1 || tr.Robot != geometry.Pt(-1, -1) {
			t.Errorf("radius %v: got %+v", radius, tr)
		}
		if !tr.RobotStopped || tr.RobotVisible() {
			t.Errorf("radius %v: invisible robot should count as stopped", radius)
		}
	}
}

func TestPredictor_RobotSpeed(t *testing.T) {
	p := NewPredictor(testConfig())
	p.Step(Observation{Robot: detection.Detection{X: 100, Y: 100, Radius: 20}})
	res := p.Step(Observation{Robot: detection.Detection{X: 103, Y: 104, Radius: 20}})

	if !floatEquals(res.Track.RobotSpeed, 5) {
		t.Errorf("speed: got %v, want 5", res.Track.RobotSpeed)
	}
	if res.Track.RobotStopped {
		t.Error("moving robot reported stopped")
	}

	res = p.Step(Observation{Robot: detection.Detection{X: 103.5, Y: 104, Radius: 20}})
	if !res.Track.RobotStopped {
		t.Error("sub-pixel movement should count as stopped")
	}
}

func TestPredictor_NoPuckNeverCommands(t *testing.T) {
	p := NewPredictor(testConfig())
	for i := 0; i < 100; i++ {
		res := p.Step(Observation{Puck: detection.Absent, Armed: true})
		if res.Move != nil {
			t.Fatalf("cycle %d issued %+v", i, res.Move)
		}
		if res.Phase != Idle {
			t.Fatalf("cycle %d: phase %v", i, res.Phase)
		}
	}
}

func TestPredictor_OutOfBandPuckIgnored(t *testing.T) {
	p := NewPredictor(testConfig())
	p.Step(Observation{Puck: puckAt(100, 200)})
	res := p.Step(Observation{Puck: detection.Detection{X: 100, Y: 20, Radius: 200}})
	if res.Track.Puck != geometry.Pt(100, 200) {
		t.Errorf("oversized blob should not move the puck: %v", res.Track.Puck)
	}
}

func TestPredictor_LostPuckEndsEpisode(t *testing.T) {
	cfg := testConfig()
	cfg.LostAfter = 3
	p := NewPredictor(cfg)

	res := feed(p, true,
		geometry.Pt(140, 160),
		geometry.Pt(150, 140),
		geometry.Pt(160, 120),
	)
	if res[2].Phase != Predicted {
		t.Fatalf("setup: %v", res[2].Phase)
	}

	var all []Result
	for i := 0; i < 5; i++ {
		all = append(all, p.Step(Observation{Puck: detection.Absent, Armed: true}))
	}
	if all[0].Phase != Predicted || all[1].Phase != Predicted {
		t.Error("short dropouts should not end the episode")
	}
	if !all[2].Ended || all[2].Phase != Idle {
		t.Errorf("episode should end after %d missing cycles: %+v", cfg.LostAfter, all[2])
	}
	if got := moves(all); len(got) != 1 || got[0].Reason != ReturnToGoal {
		t.Errorf("expected one return-to-goal, got %+v", got)
	}

	// Reappearing far away is a fresh sighting, not a jump.
	back := p.Step(Observation{Puck: puckAt(50, 20), Armed: true})
	if back.Track.PuckSpeed != 0 || back.Phase != Idle {
		t.Errorf("reappearance should reseed: %+v", back.Track)
	}
}

func TestPhase_String(t *testing.T) {
	if Idle.String() != "idle" || Tracking.String() != "tracking" || Predicted.String() != "predicted" {
		t.Error("unexpected phase names")
	}
	if Phase(7).String() != "phase(7)" {
		t.Errorf("unknown phase: %s", Phase(7))
	}
}

func TestPhase_TextRoundTrip(t *testing.T) {
	for _, p := range []Phase{Idle, Tracking, Predicted} {
		text, _ := p.MarshalText()
		var got Phase
		if err := got.UnmarshalText(text); err != nil || got != p {
			t.Errorf("%v: got %v, %v", p, got, err)
		}
	}
	var r Reason
	if err := r.UnmarshalText([]byte("return_to_goal")); err != nil || r != ReturnToGoal {
		t.Errorf("reason: got %v, %v", r, err)
	}
	if err := r.UnmarshalText([]byte("dance")); err == nil {
		t.Error("expected an error for an unknown reason")
	}
}
