package detection

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/makiuchi-d/gozxing/common"
)

// Normalize warps the quadrilateral described by corners onto an upright
// width x height image.
//
// Parameters:
//   - src: The photograph the corners were found in.
//   - corners: Exactly four points in any order; they are ordered with
//     SortCorners before the transform is built.
//   - width, height: Size of the output card, e.g. 480x680.
//
// Returns:
//   - *image.NRGBA: The canonical card face. Output pixels that map outside
//     src are black.
//   - error: ErrInvalidCorners (wrapped) for a corner count other than four or
//     a non-positive output size.
func Normalize(src image.Image, corners []Point2D, width, height int) (*image.NRGBA, error) {
	quad, err := SortCorners(corners)
	if err != nil {
		return nil, err
	}
	return Warp(src, quad, width, height)
}

// Warp maps an already ordered quadrilateral onto a width x height image.
// quad is in src's coordinate space.
//
// # Algorithm
//
// A projective transform is built from the destination rectangle to the
// source quadrilateral, so every output pixel is pulled from the source
// (inverse mapping) and no holes appear. Points are transformed a row at a
// time and sampled bilinearly.
func Warp(src image.Image, quad Quad, width, height int) (*image.NRGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: invalid output size %dx%d", ErrInvalidCorners, width, height)
	}

	// Clone rebases the source at (0,0); the corners follow it.
	in := imaging.Clone(src)
	origin := src.Bounds().Min
	for i := range quad {
		quad[i].X -= float64(origin.X)
		quad[i].Y -= float64(origin.Y)
	}
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))

	w1, h1 := float64(width-1), float64(height-1)
	transform := common.PerspectiveTransform_QuadrilateralToQuadrilateral(
		0, 0, w1, 0, w1, h1, 0, h1,
		quad[0].X, quad[0].Y, quad[1].X, quad[1].Y,
		quad[2].X, quad[2].Y, quad[3].X, quad[3].Y,
	)

	row := make([]float64, 2*width)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			row[2*x] = float64(x)
			row[2*x+1] = float64(y)
		}
		transform.TransformPoints(row)
		for x := 0; x < width; x++ {
			dst.SetNRGBA(x, y, bilinear(in, row[2*x], row[2*x+1]))
		}
	}
	return dst, nil
}

// bilinear samples src at a sub-pixel position. Positions outside the image
// are opaque black; the outermost ring of pixels is blended with black.
func bilinear(src *image.NRGBA, fx, fy float64) color.NRGBA {
	if math.IsNaN(fx) || math.IsNaN(fy) {
		return color.NRGBA{A: 255}
	}
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	if fx < -1 || fy < -1 || fx > float64(w) || fy > float64(h) {
		return color.NRGBA{A: 255}
	}

	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	ax := fx - float64(x0)
	ay := fy - float64(y0)

	at := func(x, y int) [3]float64 {
		if x < 0 || y < 0 || x >= w || y >= h {
			return [3]float64{}
		}
		i := y*src.Stride + x*4
		return [3]float64{float64(src.Pix[i]), float64(src.Pix[i+1]), float64(src.Pix[i+2])}
	}

	p00, p10 := at(x0, y0), at(x0+1, y0)
	p01, p11 := at(x0, y0+1), at(x0+1, y0+1)

	var out [3]uint8
	for c := 0; c < 3; c++ {
		top := p00[c]*(1-ax) + p10[c]*ax
		bottom := p01[c]*(1-ax) + p11[c]*ax
		out[c] = uint8(math.Round(top*(1-ay) + bottom*ay))
	}
	return color.NRGBA{R: out[0], G: out[1], B: out[2], A: 255}
}
