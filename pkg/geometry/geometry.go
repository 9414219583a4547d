// Package geometry holds the small amount of planar math the tracker needs:
// points and straight lines in image space.
package geometry

import "math"

// Point is a position in pixel (or travel) coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt is shorthand for Point{x, y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Dist returns the Euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Line is a straight line in the plane. Non-vertical lines are stored as
// y = m*x + b. Vertical lines keep only their x position and report ok=false
// from every query that would need a slope.
type Line struct {
	m, b     float64
	x0       float64
	vertical bool
}

// LineThrough returns the line through p1 and p2. Coincident points yield a
// vertical line.
func LineThrough(p1, p2 Point) Line {
	if p1.X == p2.X {
		return Line{x0: p1.X, vertical: true}
	}
	m := (p2.Y - p1.Y) / (p2.X - p1.X)
	return Line{m: m, b: p1.Y - m*p1.X, x0: p1.X}
}

// LineWithSlope returns the line through p with slope m.
func LineWithSlope(p Point, m float64) Line {
	if math.IsInf(m, 0) || math.IsNaN(m) {
		return Line{x0: p.X, vertical: true}
	}
	return Line{m: m, b: p.Y - m*p.X, x0: p.X}
}

// Vertical reports whether the line has no slope.
func (l Line) Vertical() bool {
	return l.vertical
}

// Slope returns m.
func (l Line) Slope() (float64, bool) {
	if l.vertical {
		return 0, false
	}
	return l.m, true
}

// Intercept returns b.
func (l Line) Intercept() (float64, bool) {
	if l.vertical {
		return 0, false
	}
	return l.b, true
}

// YAt returns the y coordinate of the line at x.
func (l Line) YAt(x float64) (float64, bool) {
	if l.vertical {
		return 0, false
	}
	return l.m*x + l.b, true
}

// XAt returns the x coordinate where the line crosses y.
// Horizontal and vertical lines have no single answer.
func (l Line) XAt(y float64) (float64, bool) {
	if l.vertical || l.m == 0 {
		return 0, false
	}
	return (y - l.b) / l.m, true
}

// Angle returns atan(m) in degrees, in (-90, 90).
func (l Line) Angle() (float64, bool) {
	if l.vertical {
		return 0, false
	}
	return math.Atan(l.m) * 180 / math.Pi, true
}

// Span returns the two points where the line meets y=top and y=bottom,
// or x=0 and x=width for horizontal lines. Used for drawing.
func (l Line) Span(width, height float64) (Point, Point) {
	if l.vertical {
		return Pt(l.x0, 0), Pt(l.x0, height)
	}
	if l.m == 0 {
		return Pt(0, l.b), Pt(width, l.b)
	}
	x1, _ := l.XAt(0)
	x2, _ := l.XAt(height)
	return Pt(x1, 0), Pt(x2, height)
}
