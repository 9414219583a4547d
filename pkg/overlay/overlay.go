// Package overlay draws tracker state onto camera frames and streams the
// result as JPEG to the dashboard.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/teslashibe/rocky-hockey/pkg/geometry"
	"github.com/teslashibe/rocky-hockey/pkg/tracking"
	"gocv.io/x/gocv"
)

var (
	puckColor      = color.RGBA{0, 255, 0, 0}
	robotColor     = color.RGBA{255, 0, 0, 0}
	reachColor     = color.RGBA{0, 0, 255, 0}
	lineColor      = color.RGBA{255, 255, 255, 0}
	cornerColor    = color.RGBA{255, 255, 0, 0}
	pathColor      = color.RGBA{0, 255, 255, 0}
	reflectColor   = color.RGBA{255, 0, 255, 0}
	predictedColor = color.RGBA{255, 128, 0, 0}
	textColor      = color.RGBA{255, 255, 255, 0}
)

// coordLimit keeps far-off line endpoints inside int range; OpenCV clips
// the rest.
const coordLimit = 1 << 20

func pt(p geometry.Point) image.Point {
	clamp := func(v float64) int {
		return int(math.Max(-coordLimit, math.Min(coordLimit, math.Round(v))))
	}
	return image.Pt(clamp(p.X), clamp(p.Y))
}

// Draw renders the snapshot onto img. corners are pending rectification
// corners and are drawn as dots.
func Draw(img *gocv.Mat, cfg tracking.Config, s tracking.Snapshot, corners []geometry.Point) {
	reach := image.Rect(0, 0, int(cfg.FrameWidth), int(cfg.RobotMaxY))
	gocv.Rectangle(img, reach, reachColor, 1)

	y := int(cfg.DefensiveLine)
	gocv.Line(img, image.Pt(0, y), image.Pt(int(cfg.FrameWidth), y), lineColor, 1)

	for _, c := range corners {
		gocv.Circle(img, pt(c), 4, cornerColor, -1)
	}

	if s.Puck.Present() {
		gocv.Circle(img, pt(s.Puck.Center()), int(math.Round(s.Puck.Radius)), puckColor, 2)
	}
	// The paddle is drawn from the track so out-of-band detections stay hidden.
	if track := s.Result.Track; track.RobotVisible() {
		gocv.Circle(img, pt(track.Robot), int(math.Round(track.RobotRadius)), robotColor, 2)
	}

	pred := s.Result.Prediction
	if pred.Made {
		height := float64(img.Rows())
		a, b := pred.Path.Span(cfg.FrameWidth, height)
		gocv.Line(img, pt(a), pt(b), pathColor, 1)
		if pred.Bounced {
			a, b = pred.Reflection.Span(cfg.FrameWidth, height)
			gocv.Line(img, pt(a), pt(b), reflectColor, 1)
		}
		gocv.Circle(img, pt(pred.SavedPoint), 3, pathColor, -1)
		gocv.Circle(img, pt(pred.Collision), 3, reflectColor, -1)
		gocv.Circle(img, pt(pred.Predicted), 6, predictedColor, -1)
	}

	status := fmt.Sprintf("%s %.0ffps", s.Result.Phase, s.FPS)
	if s.Armed {
		status += " ARMED"
	}
	gocv.PutText(img, status, image.Pt(5, img.Rows()-8), gocv.FontHersheyPlain, 1, textColor, 1)
}
