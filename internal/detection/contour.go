package detection

import (
	"image"
	"math"
)

// Contour is the ordered, closed outer boundary of a connected foreground
// region, traced clockwise on screen.
type Contour []image.Point

// mooreDirs lists the 8 neighbours clockwise on screen, starting east.
var mooreDirs = [8]image.Point{
	{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1},
}

// FindExternalContours returns the outer boundary of every outermost
// foreground region of a binary image (non-zero pixels are foreground).
//
// Regions nested inside a hole of another region are skipped, so a card's
// printed frame never competes with the card outline itself.
//
// # Algorithm
//
//  1. Background reachable from the image border is flood-filled with
//     4-connectivity; this is the "outside".
//  2. Foreground is grouped into 8-connected components with an iterative
//     flood fill.
//  3. A component is external when it touches the border or a 4-neighbour of
//     one of its pixels is outside.
//  4. The boundary of each external component is traced with Moore-neighbour
//     tracing from its top-left pixel.
//
// Contour points are in the image's coordinate space.
func FindExternalContours(bin *image.Gray) []Contour {
	return findContours(bin, true)
}

// FindContours is FindExternalContours without the nesting filter: the outer
// boundary of every foreground region is returned, including regions that sit
// inside holes of others.
func FindContours(bin *image.Gray) []Contour {
	return findContours(bin, false)
}

func findContours(bin *image.Gray, externalOnly bool) []Contour {
	b := bin.Bounds()
	width, height := b.Dx(), b.Dy()
	if width == 0 || height == 0 {
		return nil
	}

	fg := func(x, y int) bool {
		if x < 0 || y < 0 || x >= width || y >= height {
			return false
		}
		return bin.Pix[y*bin.Stride+x] != 0
	}
	// Pix indexing above assumes Min is (0,0); rebase otherwise.
	if b.Min != (image.Point{}) {
		rebased := image.NewGray(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			copy(rebased.Pix[y*rebased.Stride:y*rebased.Stride+width], bin.Pix[bin.PixOffset(b.Min.X, b.Min.Y+y):])
		}
		bin = rebased
	}

	var outside []bool
	if externalOnly {
		outside = markOutside(fg, width, height)
	}

	labels := make([]bool, width*height)
	contours := make([]Contour, 0)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if !fg(x, y) || labels[y*width+x] {
				continue
			}
			pixels := floodFill(fg, labels, x, y, width, height)
			if externalOnly && !isExternal(pixels, outside, width, height) {
				continue
			}
			c := traceBoundary(fg, image.Point{X: x, Y: y}, 4*len(pixels)+8)
			if b.Min != (image.Point{}) {
				for i := range c {
					c[i] = c[i].Add(b.Min)
				}
			}
			contours = append(contours, c)
		}
	}

	return contours
}

// markOutside flood-fills background from every border pixel using
// 4-connectivity, the complement of 8-connected foreground.
func markOutside(fg func(x, y int) bool, width, height int) []bool {
	outside := make([]bool, width*height)
	stack := make([]image.Point, 0, 2*(width+height))

	push := func(x, y int) {
		if x < 0 || y < 0 || x >= width || y >= height {
			return
		}
		if outside[y*width+x] || fg(x, y) {
			return
		}
		outside[y*width+x] = true
		stack = append(stack, image.Point{X: x, Y: y})
	}

	for x := 0; x < width; x++ {
		push(x, 0)
		push(x, height-1)
	}
	for y := 0; y < height; y++ {
		push(0, y)
		push(width-1, y)
	}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		push(p.X+1, p.Y)
		push(p.X-1, p.Y)
		push(p.X, p.Y+1)
		push(p.X, p.Y-1)
	}
	return outside
}

// floodFill performs iterative flood-fill from a starting point.
//
// Uses a stack-based approach (not recursive) to avoid stack overflow
// on large regions. Marks visited pixels and returns them.
// Uses 8-connectivity (includes diagonal neighbors).
func floodFill(fg func(x, y int) bool, visited []bool, startX, startY, width, height int) []image.Point {
	stack := []image.Point{{X: startX, Y: startY}}
	region := make([]image.Point, 0, 64)

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.X < 0 || p.X >= width || p.Y < 0 || p.Y >= height {
			continue
		}
		if visited[p.Y*width+p.X] || !fg(p.X, p.Y) {
			continue
		}

		visited[p.Y*width+p.X] = true
		region = append(region, p)

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				stack = append(stack, image.Point{X: p.X + dx, Y: p.Y + dy})
			}
		}
	}
	return region
}

func isExternal(region []image.Point, outside []bool, width, height int) bool {
	for _, p := range region {
		if p.X == 0 || p.Y == 0 || p.X == width-1 || p.Y == height-1 {
			return true
		}
		if outside[p.Y*width+p.X+1] || outside[p.Y*width+p.X-1] ||
			outside[(p.Y+1)*width+p.X] || outside[(p.Y-1)*width+p.X] {
			return true
		}
	}
	return false
}

// traceBoundary walks the outer boundary clockwise starting at start, which
// must be the top-most, then left-most, pixel of its region. Tracing stops
// when start is re-entered in the same direction it was first left
// (Jacob's stopping criterion) or after maxSteps moves.
func traceBoundary(fg func(x, y int) bool, start image.Point, maxSteps int) Contour {
	contour := Contour{start}

	next := func(p image.Point, back int) (int, bool) {
		for i := 1; i <= 8; i++ {
			d := (back + i) % 8
			q := p.Add(mooreDirs[d])
			if fg(q.X, q.Y) {
				return d, true
			}
		}
		return 0, false
	}

	// west of the top-left pixel is always background
	first, ok := next(start, 4)
	if !ok {
		return contour
	}

	p, d := start, first
	for step := 0; step < maxSteps; step++ {
		p = p.Add(mooreDirs[d])
		nd, _ := next(p, backtrack(d))
		if p == start && nd == first {
			break
		}
		if p != start {
			contour = append(contour, p)
		}
		d = nd
	}
	return contour
}

// backtrack returns, relative to the pixel just entered by moving in
// direction d, the direction of the last background pixel examined before
// the move.
func backtrack(d int) int {
	if d%2 == 0 {
		return (d + 6) % 8
	}
	return (d + 5) % 8
}

// Area returns the enclosed area of the contour by the shoelace formula,
// using pixel centres as vertices.
func (c Contour) Area() float64 {
	n := len(c)
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += float64(c[i].X*c[j].Y - c[j].X*c[i].Y)
	}
	return math.Abs(sum) / 2
}

// ArcLength returns the perimeter of the closed contour.
func (c Contour) ArcLength() float64 {
	n := len(c)
	if n < 2 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += math.Hypot(float64(c[j].X-c[i].X), float64(c[j].Y-c[i].Y))
	}
	return sum
}

// BoundingRect returns the smallest rectangle holding every contour pixel.
// Max is exclusive, so a single pixel has a 1x1 rectangle.
func (c Contour) BoundingRect() image.Rectangle {
	if len(c) == 0 {
		return image.Rectangle{}
	}
	r := image.Rectangle{Min: c[0], Max: c[0].Add(image.Pt(1, 1))}
	for _, p := range c[1:] {
		r = r.Union(image.Rectangle{Min: p, Max: p.Add(image.Pt(1, 1))})
	}
	return r
}

// Points returns the contour as sub-pixel points.
func (c Contour) Points() []Point2D {
	pts := make([]Point2D, len(c))
	for i, p := range c {
		pts[i] = Pt(p)
	}
	return pts
}

// largestContour returns the index of the contour with the greatest area,
// preferring the longer one on ties, or -1 for an empty list.
func largestContour(contours []Contour) int {
	best := -1
	var bestArea float64
	for i, c := range contours {
		a := c.Area()
		if best == -1 || a > bestArea || (a == bestArea && len(c) > len(contours[best])) {
			best = i
			bestArea = a
		}
	}
	return best
}
