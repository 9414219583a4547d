package calibration

import (
	"fmt"

	"github.com/teslashibe/rocky-hockey/pkg/geometry"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"
)

// Homography is a 3x3 projective transform in row-major order.
type Homography [3][3]float64

// Identity returns the identity transform.
func Identity() Homography {
	return Homography{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// SolveHomography returns the transform mapping each src[i] onto dst[i].
// h33 is fixed to 1, leaving an 8x8 linear system.
func SolveHomography(src, dst [4]geometry.Point) (Homography, error) {
	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)

	for i := 0; i < 4; i++ {
		x, y := src[i].X, src[i].Y
		u, v := dst[i].X, dst[i].Y

		a.SetRow(2*i, []float64{x, y, 1, 0, 0, 0, -u * x, -u * y})
		b.SetVec(2*i, u)
		a.SetRow(2*i+1, []float64{0, 0, 0, x, y, 1, -v * x, -v * y})
		b.SetVec(2*i+1, v)
	}

	var h mat.VecDense
	if err := h.SolveVec(a, b); err != nil {
		return Homography{}, fmt.Errorf("%w: %v", ErrDegenerateCorners, err)
	}

	return Homography{
		{h.AtVec(0), h.AtVec(1), h.AtVec(2)},
		{h.AtVec(3), h.AtVec(4), h.AtVec(5)},
		{h.AtVec(6), h.AtVec(7), 1},
	}, nil
}

// Apply maps p through the transform.
func (h Homography) Apply(p geometry.Point) geometry.Point {
	w := h[2][0]*p.X + h[2][1]*p.Y + h[2][2]
	return geometry.Pt(
		(h[0][0]*p.X+h[0][1]*p.Y+h[0][2])/w,
		(h[1][0]*p.X+h[1][1]*p.Y+h[1][2])/w,
	)
}

// Inverse returns the reverse transform.
func (h Homography) Inverse() (Homography, error) {
	m := mat.NewDense(3, 3, []float64{
		h[0][0], h[0][1], h[0][2],
		h[1][0], h[1][1], h[1][2],
		h[2][0], h[2][1], h[2][2],
	})

	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return Homography{}, fmt.Errorf("%w: %v", ErrDegenerateCorners, err)
	}

	var out Homography
	s := inv.At(2, 2)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[r][c] = inv.At(r, c) / s
		}
	}
	return out, nil
}

// perspectiveMat builds the warp matrix with OpenCV. The caller owns the Mat.
func perspectiveMat(src, dst [4]geometry.Point) gocv.Mat {
	sv := gocv.NewPoint2fVectorFromPoints(point2f(src))
	defer sv.Close()
	dv := gocv.NewPoint2fVectorFromPoints(point2f(dst))
	defer dv.Close()
	return gocv.GetPerspectiveTransform2f(sv, dv)
}

func point2f(pts [4]geometry.Point) []gocv.Point2f {
	out := make([]gocv.Point2f, len(pts))
	for i, p := range pts {
		out[i] = gocv.Point2f{X: float32(p.X), Y: float32(p.Y)}
	}
	return out
}
