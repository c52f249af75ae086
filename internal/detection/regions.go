package detection

import (
	"image"

	imgproc "github.com/ironsheep/card-scanner/internal/imaging"
)

// Region is an axis-aligned box on a normalized card, in the card's pixel
// coordinates.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect converts the region to an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Empty reports whether the region has no area. Callers must check this
// before cropping the artwork region.
func (r Region) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Regions is the full set of named regions of one card.
type Regions struct {
	Name            Region `json:"name"`
	CollectorNumber Region `json:"collector_number"`
	SetCode         Region `json:"set_code"`
	TextBox         Region `json:"text_box"`
	Art             Region `json:"art"`
}

// FractionalRegion scales ratio to a card occupying bounds.
//
// Each coordinate is the product of the card dimension and its ratio,
// truncated toward zero. The result is clamped so that it lies on the card and
// is at least one pixel in each direction; an empty card yields an empty
// Region.
func FractionalRegion(bounds image.Rectangle, ratio RegionRatio) Region {
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return Region{}
	}

	x := int(float64(w) * ratio.Left)
	y := int(float64(h) * ratio.Top)
	rw := int(float64(w) * ratio.Width)
	rh := int(float64(h) * ratio.Height)

	x = min(max(x, 0), w-1)
	y = min(max(y, 0), h-1)
	rw = min(max(rw, 1), w-x)
	rh = min(max(rh, 1), h-y)

	return Region{X: bounds.Min.X + x, Y: bounds.Min.Y + y, Width: rw, Height: rh}
}

// RegionExtractor maps a layout onto normalized cards. It holds only the
// immutable layout and is safe for concurrent use.
type RegionExtractor struct {
	layout Layout
}

// NewRegionExtractor validates layout and returns an extractor for it.
func NewRegionExtractor(layout Layout) (*RegionExtractor, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	return &RegionExtractor{layout: layout}, nil
}

// Layout returns a copy of the extractor's layout.
func (e *RegionExtractor) Layout() Layout {
	return e.layout
}

// Name returns the card title box.
func (e *RegionExtractor) Name(card image.Image) Region {
	return FractionalRegion(card.Bounds(), e.layout.CardName)
}

// CollectorNumber returns the collector number box in the bottom-left corner.
func (e *RegionExtractor) CollectorNumber(card image.Image) Region {
	return FractionalRegion(card.Bounds(), e.layout.CollectorNumber)
}

// SetCode returns the set code box below the collector number.
func (e *RegionExtractor) SetCode(card image.Image) Region {
	return FractionalRegion(card.Bounds(), e.layout.SetCode)
}

// TextBox returns the rules text box.
func (e *RegionExtractor) TextBox(card image.Image) Region {
	return FractionalRegion(card.Bounds(), e.layout.TextBox)
}

// All computes every region of card, including the artwork search.
func (e *RegionExtractor) All(card image.Image) Regions {
	return Regions{
		Name:            e.Name(card),
		CollectorNumber: e.CollectorNumber(card),
		SetCode:         e.SetCode(card),
		TextBox:         e.TextBox(card),
		Art:             e.Art(card),
	}
}

const (
	artBlurSize  = 5
	artApproxEps = 0.02
	artCannyLow  = 50
	artCannyHigh = 150
)

// Art locates the artwork frame by its content rather than by fixed ratios.
//
// # Algorithm
//
//  1. Grayscale and Gaussian blur
//  2. Canny edges and the outline of every edge component
//  3. Douglas-Peucker simplification; keep convex quadrilaterals whose
//     bounding box aspect lies in [MinAspect, MaxAspect] and whose area is at
//     least MinAreaFraction of the card
//  4. Score each by contour area over bounding box area (1.0 for a perfect
//     axis-aligned rectangle) and keep the best, larger area breaking ties
//
// Returns the bounding box of the winner, or an empty Region when no
// candidate qualifies.
func (e *RegionExtractor) Art(card image.Image) Region {
	b := card.Bounds()
	if b.Empty() {
		return Region{}
	}

	gray := imgproc.GaussianBlur(imgproc.Grayscale(card), artBlurSize)
	edges := imgproc.Canny(gray, artCannyLow, artCannyHigh)
	contours := FindContours(edges)

	cfg := e.layout.Artwork
	minArea := cfg.MinAreaFraction * float64(b.Dx()*b.Dy())

	var best image.Rectangle
	bestScore, bestArea := 0.0, 0.0
	for _, c := range contours {
		area := c.Area()
		if area < minArea || area == 0 {
			continue
		}
		approx := ApproxPolygon(c.Points(), artApproxEps*c.ArcLength())
		if len(approx) != 4 || !IsConvex(approx) {
			continue
		}
		box := c.BoundingRect()
		aspect := float64(box.Dx()) / float64(box.Dy())
		if aspect < cfg.MinAspect || aspect > cfg.MaxAspect {
			continue
		}
		score := area / float64(box.Dx()*box.Dy())
		if score > bestScore || (score == bestScore && area > bestArea) {
			best, bestScore, bestArea = box, score, area
		}
	}

	if best.Empty() {
		return Region{}
	}
	return Region{
		X:      b.Min.X + best.Min.X,
		Y:      b.Min.Y + best.Min.Y,
		Width:  best.Dx(),
		Height: best.Dy(),
	}
}
