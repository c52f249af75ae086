package detection

import (
	"image"
	"math"

	imgproc "github.com/ironsheep/card-scanner/internal/imaging"
)

const (
	tiltCannyLow  = 50
	tiltCannyHigh = 150

	// Skews smaller than this are not worth resampling the card for.
	minSkewDegrees = 0.01

	// An outline enclosing less than this share of the image is text or art
	// detail, not the card border.
	minTiltContourFraction = 0.05
)

// EstimateSkew measures the residual rotation of a normalized card.
//
// The largest external edge contour is taken as the card border and fitted
// with a minimum-area rectangle. The returned angle is in degrees within
// (-45, 45]; positive means the card is turned clockwise on screen. ok is false
// when no usable outline was found.
func EstimateSkew(card image.Image) (skew float64, ok bool) {
	b := card.Bounds()
	if b.Empty() {
		return 0, false
	}

	edges := imgproc.Canny(card, tiltCannyLow, tiltCannyHigh)
	contours := FindExternalContours(edges)
	best := largestContour(contours)
	if best < 0 {
		return 0, false
	}

	rect := MinAreaRect(contours[best].Points())
	if rect.Width*rect.Height < minTiltContourFraction*float64(b.Dx()*b.Dy()) {
		return 0, false
	}

	angle := rect.Angle
	if rect.Width < rect.Height {
		angle += 90
	}
	for angle > 45 {
		angle -= 90
	}
	for angle <= -45 {
		angle += 90
	}
	return angle, true
}

// CorrectTilt removes residual rotation left by the perspective warp.
//
// The card is rotated about its centre by the negative of EstimateSkew; areas
// uncovered by the rotation are black and the size is unchanged. This is a
// best-effort refinement: when no outline is found an unmodified copy of card
// is returned. An outline whose rectangle covers under 5% of the card counts
// as no outline. The input is never modified.
func CorrectTilt(card image.Image) *image.NRGBA {
	skew, ok := EstimateSkew(card)
	if !ok || math.Abs(skew) < minSkewDegrees {
		return imgproc.Clone(card)
	}
	return imgproc.Rotate(card, -skew)
}
