package detection

import (
	"errors"
	"fmt"
	"image"
	"math"

	imgproc "github.com/ironsheep/card-scanner/internal/imaging"
)

// ErrNotFound is returned when no card-shaped region survives the area and
// aspect filters, or the source image is empty. It is not transient: the same
// photograph will never yield a card.
var ErrNotFound = errors.New("no card detected")

// MinImageDim is the shortest image side the detector accepts. Below it the
// adaptive threshold window shrinks to a single pixel.
const MinImageDim = 20

// Detector locates a single trading card in a photograph and warps it to an
// upright, fixed-size image.
//
// A Detector holds only immutable configuration and is safe for concurrent
// use.
type Detector struct {
	cfg        DetectorConfig
	calibrator Calibrator
}

// Option customizes a Detector.
type Option func(*Detector)

// WithCalibrator installs a lens correction applied before detection.
func WithCalibrator(c Calibrator) Option {
	return func(d *Detector) {
		if c != nil {
			d.calibrator = c
		}
	}
}

// NewDetector validates cfg and returns a Detector using it.
func NewDetector(cfg DetectorConfig, opts ...Option) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Detector{cfg: cfg, calibrator: PassThrough{}}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Config returns a copy of the detector's configuration.
func (d *Detector) Config() DetectorConfig {
	return d.cfg
}

// Candidate describes the card outline chosen by DetectQuad.
type Candidate struct {
	// Corners are ordered TL, TR, BR, BL in source image coordinates.
	Corners Quad `json:"corners"`

	// Contour is the external boundary the corners were derived from.
	Contour Contour `json:"-"`

	// Area is the contour's enclosed area in square pixels.
	Area float64 `json:"area"`

	// Fallback is true when the corners come from the minimum-area rectangle
	// because polygon approximation did not yield a convex quadrilateral.
	Fallback bool `json:"fallback"`
}

// kernelSizes derives the filter sizes from the shorter image side so that the
// same physical card is processed alike at any resolution.
func kernelSizes(minDim int) (blur, dilate, block int) {
	blur = ((minDim/100+1)/2)*2 + 1
	dilate = int(math.Floor(float64(minDim)/67 + 0.5))
	block = ((minDim/20+1)/2)*2 + 1
	return blur, dilate, block
}

// Binarize runs the detector's preprocessing chain and returns the closed,
// inverted binary image contours are taken from. Exposed for diagnostics.
func (d *Detector) Binarize(img image.Image) *image.Gray {
	b := img.Bounds()
	minDim := min(b.Dx(), b.Dy())
	blurSize, dilateSize, blockSize := kernelSizes(minDim)

	gray := imgproc.Grayscale(img)
	gray = imgproc.MedianBlur(gray, blurSize)
	gray = imgproc.GaussianBlur(gray, blurSize)
	bin := imgproc.AdaptiveThresholdInv(gray, blockSize, d.cfg.ThresholdOffset)
	bin = imgproc.Dilate(bin, dilateSize)
	return imgproc.Erode(bin, dilateSize)
}

// DetectQuad finds the corners of the most card-like region in img.
//
// Parameters:
//   - img: Source photograph in any colour model.
//
// Returns:
//   - *Candidate: Ordered corners in img's coordinate space, plus the contour
//     they came from.
//   - error: ErrNotFound for an empty image, one whose shorter side is under
//     MinImageDim, or when no contour passes the area and aspect filters.
//
// # Algorithm
//
//  1. Optional lens correction via the configured Calibrator
//  2. Grayscale, median blur, Gaussian blur with size-adaptive kernels
//  3. Inverted adaptive threshold, then a morphological closing
//  4. External contours filtered by area (> MinAreaFraction x minDim²) and
//     bounding box aspect (within AspectTolerance of TargetAspect)
//  5. The largest survivor is simplified with Douglas-Peucker; a convex
//     4-vertex result gives the corners, otherwise the minimum-area rotated
//     rectangle does
func (d *Detector) DetectQuad(img image.Image) (*Candidate, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty image", ErrNotFound)
	}
	img = d.calibrator.Undistort(img)
	b := img.Bounds()
	if min(b.Dx(), b.Dy()) < MinImageDim {
		return nil, fmt.Errorf("%w: image %dx%d below %dpx", ErrNotFound, b.Dx(), b.Dy(), MinImageDim)
	}

	bin := d.Binarize(img)
	contours := FindExternalContours(bin)

	minDim := float64(min(b.Dx(), b.Dy()))
	minArea := d.cfg.MinAreaFraction * minDim * minDim

	survivors := make([]Contour, 0, len(contours))
	for _, c := range contours {
		if c.Area() <= minArea {
			continue
		}
		box := c.BoundingRect()
		aspect := float64(box.Dx()) / float64(box.Dy())
		if math.Abs(aspect-d.cfg.TargetAspect) >= d.cfg.AspectTolerance {
			continue
		}
		survivors = append(survivors, c)
	}

	best := largestContour(survivors)
	if best < 0 {
		return nil, fmt.Errorf("%w: %d contours, none card-shaped", ErrNotFound, len(contours))
	}
	contour := survivors[best]

	pts := contour.Points()
	corners := ApproxPolygon(pts, d.cfg.ApproxEpsilon*contour.ArcLength())
	fallback := false
	if len(corners) != 4 || !IsConvex(corners) {
		rect := MinAreaRect(pts)
		box := rect.Points()
		corners = box[:]
		fallback = true
	}

	// Contour coordinates are relative to the rebased binary image.
	for i := range corners {
		corners[i].X += float64(b.Min.X)
		corners[i].Y += float64(b.Min.Y)
	}

	quad, err := d.order(corners)
	if err != nil {
		return nil, err
	}

	return &Candidate{
		Corners:  quad,
		Contour:  contour,
		Area:     contour.Area(),
		Fallback: fallback,
	}, nil
}

// Detect finds the card in img and returns it warped to the configured
// target size. The error wraps ErrNotFound when no card is present.
func (d *Detector) Detect(img image.Image) (*image.NRGBA, error) {
	c, err := d.DetectQuad(img)
	if err != nil {
		return nil, err
	}
	return d.Warp(img, c)
}

// Warp normalizes the card described by c out of img.
func (d *Detector) Warp(img image.Image, c *Candidate) (*image.NRGBA, error) {
	card, err := Warp(d.calibrator.Undistort(img), c.Corners, d.cfg.TargetWidth, d.cfg.TargetHeight)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize card: %w", err)
	}
	return card, nil
}

func (d *Detector) order(corners []Point2D) (Quad, error) {
	if d.cfg.CornerOrder == CornerOrderAngle {
		return SortCornersByAngle(corners)
	}
	return SortCorners(corners)
}
