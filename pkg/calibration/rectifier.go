// Package calibration normalizes camera geometry: it rectifies the table
// quad picked by the operator onto the full frame, and scales pixel
// positions into the motion stage's travel units.
package calibration

import (
	"fmt"
	"image"
	"sync"

	"github.com/teslashibe/rocky-hockey/pkg/geometry"
	"gocv.io/x/gocv"
)

// Rectifier collects four table corners (clockwise from top-left) and warps
// every frame so those corners land on the frame's own bounding rectangle.
// With fewer than four applied corners frames pass through untouched.
type Rectifier struct {
	mu      sync.Mutex
	pending []geometry.Point
	applied bool
	version int

	// cached transform for the last frame size seen
	cacheSize    image.Point
	cacheVersion int
	transform    gocv.Mat
	hasTransform bool
}

// NewRectifier returns a pass-through rectifier.
func NewRectifier() *Rectifier {
	return &Rectifier{}
}

// AddCorner records the next corner. Corners must be given clockwise from
// the top-left.
func (r *Rectifier) AddCorner(p geometry.Point) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pending) >= 4 {
		return ErrTooManyCorners
	}
	r.pending = append(r.pending, p)
	return nil
}

// Apply enables rectification with the collected corners.
func (r *Rectifier) Apply() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pending) != 4 {
		r.applied = false
		return fmt.Errorf("%w: have %d", ErrIncompleteCorners, len(r.pending))
	}
	r.applied = true
	r.version++
	return nil
}

// Reset clears all corners and disables rectification.
func (r *Rectifier) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = nil
	r.applied = false
	r.version++
}

// Corners returns a copy of the collected corners.
func (r *Rectifier) Corners() []geometry.Point {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]geometry.Point, len(r.pending))
	copy(out, r.pending)
	return out
}

// Applied reports whether frames are being rectified.
func (r *Rectifier) Applied() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.applied
}

// Homography returns the transform used for a frame of the given size.
func (r *Rectifier) Homography(width, height int) (Homography, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.applied {
		return Identity(), nil
	}
	return r.solveLocked(width, height)
}

func (r *Rectifier) solveLocked(width, height int) (Homography, error) {
	var src [4]geometry.Point
	copy(src[:], r.pending)
	return SolveHomography(src, canonicalCorners(width, height))
}

// Rectify warps src into dst when corners are applied and reports whether it
// did. When it returns false dst is untouched and src should be used as is.
func (r *Rectifier) Rectify(src gocv.Mat, dst *gocv.Mat) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.applied || src.Empty() {
		return false
	}

	size := image.Pt(src.Cols(), src.Rows())
	if !r.hasTransform || r.cacheSize != size || r.cacheVersion != r.version {
		// The gonum solve rejects degenerate corners before OpenCV sees them.
		if _, err := r.solveLocked(size.X, size.Y); err != nil {
			return false
		}
		if r.hasTransform {
			r.transform.Close()
		}
		var src [4]geometry.Point
		copy(src[:], r.pending)
		r.transform = perspectiveMat(src, canonicalCorners(size.X, size.Y))
		r.hasTransform = true
		r.cacheSize = size
		r.cacheVersion = r.version
	}

	gocv.WarpPerspective(src, dst, r.transform, size)
	return true
}

// Close releases the cached transform.
func (r *Rectifier) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hasTransform {
		r.transform.Close()
		r.hasTransform = false
	}
	return nil
}

// canonicalCorners is the frame's own bounding rectangle, clockwise from
// the top-left.
func canonicalCorners(width, height int) [4]geometry.Point {
	w, h := float64(width-1), float64(height-1)
	return [4]geometry.Point{
		geometry.Pt(0, 0),
		geometry.Pt(w, 0),
		geometry.Pt(w, h),
		geometry.Pt(0, h),
	}
}
