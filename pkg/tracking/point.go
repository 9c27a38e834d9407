// Package tracking follows the bobber between detections and decides when it
// was bitten.
//
// A Trail records the bobber midpoints seen by a successful tracker update.
// The Stabilizer watches the trail: once the bobber comes to rest it arms, and
// the next bounded jump is reported as a strike.
package tracking

import (
	"fmt"
	"image"
)

// Point is a bobber midpoint in frame pixels.
type Point struct {
	X, Y int
}

// Midpoint returns the centre of a box with integer truncation.
func Midpoint(x1, y1, x2, y2 int) Point {
	return Point{X: (x1 + x2) / 2, Y: (y1 + y2) / 2}
}

// RectMidpoint returns the centre of r.
func RectMidpoint(r image.Rectangle) Point {
	return Midpoint(r.Min.X, r.Min.Y, r.Max.X, r.Max.Y)
}

// Delta returns the absolute per-axis distance between p and q.
func (p Point) Delta(q Point) (dx, dy int) {
	return abs(p.X - q.X), abs(p.Y - q.Y)
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Trail is an ordered sequence of points with no two consecutive duplicates.
// It only grows, except for an explicit Clear.
type Trail struct {
	points []Point
}

// Append adds p unless it equals the current last point. It reports whether
// p was added.
func (t *Trail) Append(p Point) bool {
	if n := len(t.points); n > 0 && t.points[n-1] == p {
		return false
	}
	t.points = append(t.points, p)
	return true
}

// Len returns the number of recorded points.
func (t *Trail) Len() int { return len(t.points) }

// Last returns the most recent point.
func (t *Trail) Last() (Point, bool) {
	if len(t.points) == 0 {
		return Point{}, false
	}
	return t.points[len(t.points)-1], true
}

// Previous returns the second-to-last point.
func (t *Trail) Previous() (Point, bool) {
	if len(t.points) < 2 {
		return Point{}, false
	}
	return t.points[len(t.points)-2], true
}

// Clear forgets every point.
func (t *Trail) Clear() {
	t.points = t.points[:0]
}

// Points returns a copy of the recorded points.
func (t *Trail) Points() []Point {
	out := make([]Point, len(t.points))
	copy(out, t.points)
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
