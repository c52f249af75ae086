//go:build gocv

package cvdetect

import (
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/ironsheep/card-scanner/internal/detection"
	imgproc "github.com/ironsheep/card-scanner/internal/imaging"
)

const (
	bilateralDiameter = 11
	bilateralSigma    = 17
)

// Detector finds cards with OpenCV. It is safe for concurrent use; every
// call allocates and frees its own Mats.
type Detector struct {
	cfg detection.DetectorConfig
}

// NewDetector validates cfg and returns a detector.
func NewDetector(cfg detection.DetectorConfig) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Detector{cfg: cfg}, nil
}

// filterSizes scales the blur, closing and threshold block sizes with the
// shorter image side.
func filterSizes(minDim int) (closing, block int) {
	closing = max(int(math.Floor(float64(minDim)/67+0.5)), 1)
	block = ((minDim/20+1)/2)*2 + 1
	return closing, max(block, 3)
}

// binarize returns the closed, inverted binary Mat. The caller closes it.
func (d *Detector) binarize(src gocv.Mat) gocv.Mat {
	minDim := min(src.Cols(), src.Rows())
	closing, block := filterSizes(minDim)

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)

	smooth := gocv.NewMat()
	defer smooth.Close()
	gocv.BilateralFilter(gray, &smooth, bilateralDiameter, bilateralSigma, bilateralSigma)

	bin := gocv.NewMat()
	defer bin.Close()
	gocv.AdaptiveThreshold(smooth, &bin, 255, gocv.AdaptiveThresholdMean, gocv.ThresholdBinaryInv, block, float32(d.cfg.ThresholdOffset))

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: closing, Y: closing})
	defer kernel.Close()

	closed := gocv.NewMat()
	gocv.MorphologyEx(bin, &closed, gocv.MorphClose, kernel)
	return closed
}

// DetectQuad finds the corners of the most card-like contour in img. The
// filters match detection.Detector.DetectQuad.
func (d *Detector) DetectQuad(img image.Image) (*detection.Candidate, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty image", detection.ErrNotFound)
	}
	b := img.Bounds()
	if min(b.Dx(), b.Dy()) < detection.MinImageDim {
		return nil, fmt.Errorf("%w: image %dx%d below %dpx", detection.ErrNotFound, b.Dx(), b.Dy(), detection.MinImageDim)
	}

	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer src.Close()

	bin := d.binarize(src)
	defer bin.Close()

	contours := gocv.FindContours(bin, gocv.RetrievalExternal, gocv.ChainApproxNone)
	defer contours.Close()

	minDim := float64(min(b.Dx(), b.Dy()))
	minArea := d.cfg.MinAreaFraction * minDim * minDim

	best, bestArea := -1, 0.0
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		area := gocv.ContourArea(c)
		if area <= minArea {
			continue
		}
		box := gocv.BoundingRect(c)
		aspect := float64(box.Dx()) / float64(box.Dy())
		if math.Abs(aspect-d.cfg.TargetAspect) >= d.cfg.AspectTolerance {
			continue
		}
		if area > bestArea {
			best, bestArea = i, area
		}
	}
	if best < 0 {
		return nil, fmt.Errorf("%w: %d contours, none card-shaped", detection.ErrNotFound, contours.Size())
	}

	contour := contours.At(best)
	approx := gocv.ApproxPolyDP(contour, d.cfg.ApproxEpsilon*gocv.ArcLength(contour, true), true)
	defer approx.Close()

	corners := toPoints(approx.ToPoints(), b.Min)
	fallback := false
	if len(corners) != 4 || !detection.IsConvex(corners) {
		corners = toPoints(gocv.MinAreaRect(contour).Points, b.Min)
		fallback = true
	}

	var quad detection.Quad
	if d.cfg.CornerOrder == detection.CornerOrderAngle {
		quad, err = detection.SortCornersByAngle(corners)
	} else {
		quad, err = detection.SortCorners(corners)
	}
	if err != nil {
		return nil, err
	}

	return &detection.Candidate{Corners: quad, Area: bestArea, Fallback: fallback}, nil
}

// toPoints converts Mat coordinates back into the source image's space.
func toPoints(pts []image.Point, origin image.Point) []detection.Point2D {
	out := make([]detection.Point2D, len(pts))
	for i, p := range pts {
		out[i] = detection.Point2D{X: float64(p.X + origin.X), Y: float64(p.Y + origin.Y)}
	}
	return out
}

// Warp maps the quadrilateral c out of img onto the configured target size.
func (d *Detector) Warp(img image.Image, c *detection.Candidate) (*image.NRGBA, error) {
	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer src.Close()

	b := img.Bounds()
	w, h := float32(d.cfg.TargetWidth), float32(d.cfg.TargetHeight)

	from := make([]gocv.Point2f, 4)
	for i, p := range c.Corners {
		from[i] = gocv.Point2f{X: float32(p.X) - float32(b.Min.X), Y: float32(p.Y) - float32(b.Min.Y)}
	}
	to := []gocv.Point2f{{X: 0, Y: 0}, {X: w, Y: 0}, {X: w, Y: h}, {X: 0, Y: h}}

	fromVec := gocv.NewPoint2fVectorFromPoints(from)
	defer fromVec.Close()
	toVec := gocv.NewPoint2fVectorFromPoints(to)
	defer toVec.Close()

	m := gocv.GetPerspectiveTransform2f(fromVec, toVec)
	defer m.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.WarpPerspective(src, &dst, m, image.Point{X: d.cfg.TargetWidth, Y: d.cfg.TargetHeight})

	out, err := dst.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to normalize card: %w", err)
	}
	return imgproc.Clone(out), nil
}

// Detect finds the card in img and returns it warped to the target size.
func (d *Detector) Detect(img image.Image) (*image.NRGBA, error) {
	c, err := d.DetectQuad(img)
	if err != nil {
		return nil, err
	}
	return d.Warp(img, c)
}
