package detection

import (
	"gocv.io/x/gocv"
)

// HSVLocator thresholds a frame in HSV space and fits a circle around the
// largest matching contour. Scratch Mats are reused between calls, so one
// locator must not be shared across goroutines.
type HSVLocator struct {
	cfg     Config
	hsv     gocv.Mat
	mask    gocv.Mat
	blurred gocv.Mat
}

var _ Locator = (*HSVLocator)(nil)

// NewHSVLocator creates a locator. Call Close when done.
func NewHSVLocator(cfg Config) *HSVLocator {
	if cfg.BlurKernel < 1 {
		cfg.BlurKernel = DefaultConfig().BlurKernel
	}
	if cfg.BlurKernel%2 == 0 {
		cfg.BlurKernel++
	}
	return &HSVLocator{
		cfg:     cfg,
		hsv:     gocv.NewMat(),
		mask:    gocv.NewMat(),
		blurred: gocv.NewMat(),
	}
}

// Locate returns the object matching r, or Absent.
func (l *HSVLocator) Locate(frame gocv.Mat, r ColorRange) Detection {
	if frame.Empty() {
		return Absent
	}

	lower, upper := r.scalars()
	gocv.CvtColor(frame, &l.hsv, gocv.ColorBGRToHSV)
	gocv.InRangeWithScalar(l.hsv, lower, upper, &l.mask)
	gocv.MedianBlur(l.mask, &l.blurred, l.cfg.BlurKernel)

	contours := gocv.FindContours(l.blurred, gocv.RetrievalList, gocv.ChainApproxSimple)
	defer contours.Close()

	if contours.Size() == 0 {
		return Absent
	}

	best, bestArea := 0, -1.0
	for i := 0; i < contours.Size(); i++ {
		if area := gocv.ContourArea(contours.At(i)); area > bestArea {
			best, bestArea = i, area
		}
	}

	x, y, radius := gocv.MinEnclosingCircle(contours.At(best))
	return Detection{X: float64(x), Y: float64(y), Radius: float64(radius)}
}

// Close releases the scratch buffers.
func (l *HSVLocator) Close() error {
	l.hsv.Close()
	l.mask.Close()
	l.blurred.Close()
	return nil
}
