package detection

import (
	"math"
	"sort"
)

// ApproxPolygon simplifies a closed curve with the Douglas-Peucker algorithm.
//
// Every dropped point lies within epsilon of the simplified polygon. The curve
// is first split at two mutually distant points so that the result does not
// depend on where the contour trace happened to start.
func ApproxPolygon(pts []Point2D, epsilon float64) []Point2D {
	n := len(pts)
	if n < 3 {
		return append([]Point2D(nil), pts...)
	}

	b := farthestFrom(pts, pts[0])
	a := farthestFrom(pts, pts[b])
	if a == b {
		return []Point2D{pts[a]}
	}

	chain := func(from, to int) []Point2D {
		out := make([]Point2D, 0, n)
		for i := from; ; i = (i + 1) % n {
			out = append(out, pts[i])
			if i == to {
				break
			}
		}
		return out
	}

	first := simplifyOpen(chain(a, b), epsilon)
	second := simplifyOpen(chain(b, a), epsilon)

	result := make([]Point2D, 0, len(first)+len(second))
	result = append(result, first[:len(first)-1]...)
	result = append(result, second[:len(second)-1]...)
	return result
}

func farthestFrom(pts []Point2D, p Point2D) int {
	best, bestDist := 0, -1.0
	for i, q := range pts {
		if d := distance(p, q); d > bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// simplifyOpen runs Douglas-Peucker on an open polyline, always keeping both
// endpoints.
func simplifyOpen(pts []Point2D, epsilon float64) []Point2D {
	n := len(pts)
	if n <= 2 {
		return pts
	}

	keep := make([]bool, n)
	keep[0], keep[n-1] = true, true

	type span struct{ lo, hi int }
	stack := []span{{0, n - 1}}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if s.hi-s.lo < 2 {
			continue
		}

		idx, maxDist := -1, 0.0
		for i := s.lo + 1; i < s.hi; i++ {
			if d := lineDistance(pts[i], pts[s.lo], pts[s.hi]); d > maxDist {
				idx, maxDist = i, d
			}
		}
		if idx >= 0 && maxDist > epsilon {
			keep[idx] = true
			stack = append(stack, span{s.lo, idx}, span{idx, s.hi})
		}
	}

	out := make([]Point2D, 0, n)
	for i, k := range keep {
		if k {
			out = append(out, pts[i])
		}
	}
	return out
}

// lineDistance is the distance from p to the infinite line through a and b,
// or to a itself when a and b coincide.
func lineDistance(p, a, b Point2D) float64 {
	length := distance(a, b)
	if length == 0 {
		return distance(p, a)
	}
	return math.Abs(cross(a, b, p)) / length
}

// IsConvex reports whether the closed polygon turns consistently in one
// direction. Collinear vertices are tolerated; fewer than three vertices or a
// polygon with no turn at all is not convex.
func IsConvex(pts []Point2D) bool {
	n := len(pts)
	if n < 3 {
		return false
	}
	sign := 0
	for i := 0; i < n; i++ {
		c := cross(pts[i], pts[(i+1)%n], pts[(i+2)%n])
		switch {
		case c > 0:
			if sign < 0 {
				return false
			}
			sign = 1
		case c < 0:
			if sign > 0 {
				return false
			}
			sign = -1
		}
	}
	return sign != 0
}

// PolygonArea returns the unsigned area of a closed polygon.
func PolygonArea(pts []Point2D) float64 {
	n := len(pts)
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return math.Abs(sum) / 2
}

// ConvexHull returns the convex hull of pts using Andrew's monotone chain.
// Collinear points on the hull boundary are dropped.
func ConvexHull(pts []Point2D) []Point2D {
	if len(pts) < 3 {
		return append([]Point2D(nil), pts...)
	}

	sorted := make([]Point2D, len(pts))
	copy(sorted, pts)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].X != sorted[j].X {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Y < sorted[j].Y
	})

	var lower []Point2D
	for _, p := range sorted {
		for len(lower) >= 2 && cross(lower[len(lower)-2], lower[len(lower)-1], p) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, p)
	}

	var upper []Point2D
	for i := len(sorted) - 1; i >= 0; i-- {
		p := sorted[i]
		for len(upper) >= 2 && cross(upper[len(upper)-2], upper[len(upper)-1], p) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, p)
	}

	return append(lower[:len(lower)-1], upper[:len(upper)-1]...)
}

// RotatedRect is a rectangle at an arbitrary orientation.
//
// Angle is in degrees within [0, 90) and gives the direction of the side
// measured by Width; positive angles turn clockwise on screen because y grows
// downward. Height is measured along the perpendicular side.
type RotatedRect struct {
	Center Point2D `json:"center"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Angle  float64 `json:"angle"`
}

// Points returns the four vertices of the rectangle.
func (r RotatedRect) Points() [4]Point2D {
	rad := r.Angle * math.Pi / 180
	ux, uy := math.Cos(rad), math.Sin(rad)
	vx, vy := -uy, ux
	hw, hh := r.Width/2, r.Height/2

	corner := func(sw, sh float64) Point2D {
		return Point2D{
			X: r.Center.X + sw*hw*ux + sh*hh*vx,
			Y: r.Center.Y + sw*hw*uy + sh*hh*vy,
		}
	}
	return [4]Point2D{corner(-1, -1), corner(1, -1), corner(1, 1), corner(-1, 1)}
}

// MinAreaRect returns the smallest-area rectangle enclosing pts.
//
// One side of the optimal rectangle is collinear with a hull edge, so every
// hull edge direction is tried (rotating calipers) and the smallest box kept.
func MinAreaRect(pts []Point2D) RotatedRect {
	hull := ConvexHull(pts)
	switch len(hull) {
	case 0:
		return RotatedRect{}
	case 1:
		return RotatedRect{Center: hull[0]}
	case 2:
		a, b := hull[0], hull[1]
		return normalizeRect(RotatedRect{
			Center: Point2D{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2},
			Width:  distance(a, b),
			Angle:  math.Atan2(b.Y-a.Y, b.X-a.X) * 180 / math.Pi,
		})
	}

	best := RotatedRect{}
	bestArea := math.Inf(1)
	n := len(hull)
	for i := 0; i < n; i++ {
		a, b := hull[i], hull[(i+1)%n]
		length := distance(a, b)
		if length == 0 {
			continue
		}
		ux, uy := (b.X-a.X)/length, (b.Y-a.Y)/length
		vx, vy := -uy, ux

		minU, maxU := math.Inf(1), math.Inf(-1)
		minV, maxV := math.Inf(1), math.Inf(-1)
		for _, p := range hull {
			du := (p.X-a.X)*ux + (p.Y-a.Y)*uy
			dv := (p.X-a.X)*vx + (p.Y-a.Y)*vy
			minU, maxU = math.Min(minU, du), math.Max(maxU, du)
			minV, maxV = math.Min(minV, dv), math.Max(maxV, dv)
		}

		w, h := maxU-minU, maxV-minV
		if area := w * h; area < bestArea {
			bestArea = area
			cu, cv := (minU+maxU)/2, (minV+maxV)/2
			best = RotatedRect{
				Center: Point2D{X: a.X + cu*ux + cv*vx, Y: a.Y + cu*uy + cv*vy},
				Width:  w,
				Height: h,
				Angle:  math.Atan2(uy, ux) * 180 / math.Pi,
			}
		}
	}
	return normalizeRect(best)
}

// normalizeRect brings Angle into [0, 90), swapping Width and Height for every
// quarter turn removed.
func normalizeRect(r RotatedRect) RotatedRect {
	for r.Angle < 0 {
		r.Angle += 90
		r.Width, r.Height = r.Height, r.Width
	}
	for r.Angle >= 90 {
		r.Angle -= 90
		r.Width, r.Height = r.Height, r.Width
	}
	return r
}
