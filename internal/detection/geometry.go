package detection

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sort"
)

// ErrInvalidCorners is returned when a perspective transform is requested with
// a corner count other than four. It signals a programming error in the
// caller, never a property of the photograph.
var ErrInvalidCorners = errors.New("perspective transform requires exactly 4 corners")

// Point2D is a sub-pixel coordinate. Y grows downward.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt converts an integer pixel position to a Point2D.
func Pt(p image.Point) Point2D {
	return Point2D{X: float64(p.X), Y: float64(p.Y)}
}

// Image rounds p to the nearest pixel.
func (p Point2D) Image() image.Point {
	return image.Point{X: int(math.Round(p.X)), Y: int(math.Round(p.Y))}
}

// Quad is an ordered quadrilateral: 0=top-left, 1=top-right, 2=bottom-right,
// 3=bottom-left.
type Quad [4]Point2D

// Slice returns the corners as a slice in TL, TR, BR, BL order.
func (q Quad) Slice() []Point2D {
	return []Point2D{q[0], q[1], q[2], q[3]}
}

// ImagePoints returns the corners rounded to pixel positions.
func (q Quad) ImagePoints() []image.Point {
	return []image.Point{q[0].Image(), q[1].Image(), q[2].Image(), q[3].Image()}
}

// SortCorners orders four points as top-left, top-right, bottom-right,
// bottom-left.
//
// The points are sorted by y (then x); the upper pair is split by x into
// top-left/top-right and the lower pair into bottom-left/bottom-right. This is
// reliable for quadrilaterals tilted less than roughly 45 degrees; steeper
// tilts should use SortCornersByAngle.
//
// Returns ErrInvalidCorners (wrapped) unless exactly four points are given.
func SortCorners(pts []Point2D) (Quad, error) {
	if len(pts) != 4 {
		return Quad{}, fmt.Errorf("%w: got %d", ErrInvalidCorners, len(pts))
	}

	sorted := make([]Point2D, 4)
	copy(sorted, pts)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y < sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	top := sorted[:2]
	bottom := sorted[2:]
	if top[0].X > top[1].X {
		top[0], top[1] = top[1], top[0]
	}
	if bottom[0].X > bottom[1].X {
		bottom[0], bottom[1] = bottom[1], bottom[0]
	}

	return Quad{top[0], top[1], bottom[1], bottom[0]}, nil
}

// SortCornersByAngle orders four points clockwise by their angle around the
// centroid, starting from the point nearest the top-left (smallest x+y).
//
// Unlike SortCorners it keeps the cyclic order of a convex quadrilateral at
// any rotation.
func SortCornersByAngle(pts []Point2D) (Quad, error) {
	if len(pts) != 4 {
		return Quad{}, fmt.Errorf("%w: got %d", ErrInvalidCorners, len(pts))
	}

	var cx, cy float64
	for _, p := range pts {
		cx += p.X
		cy += p.Y
	}
	cx /= 4
	cy /= 4

	sorted := make([]Point2D, 4)
	copy(sorted, pts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return math.Atan2(sorted[i].Y-cy, sorted[i].X-cx) < math.Atan2(sorted[j].Y-cy, sorted[j].X-cx)
	})

	start := 0
	for i := 1; i < 4; i++ {
		if sorted[i].X+sorted[i].Y < sorted[start].X+sorted[start].Y {
			start = i
		}
	}

	var q Quad
	for i := 0; i < 4; i++ {
		q[i] = sorted[(start+i)%4]
	}
	return q, nil
}

func distance(a, b Point2D) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// cross returns the z component of (a-o) x (b-o).
func cross(o, a, b Point2D) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}
