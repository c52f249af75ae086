package imaging

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/segment"
	"github.com/anthonynsimon/bild/transform"
	"github.com/disintegration/imaging"
)

// Grayscale returns a single-channel copy of img, rebased so that its bounds
// start at (0,0).
func Grayscale(img image.Image) *image.Gray {
	return toGray(effect.Grayscale(img))
}

// MedianBlur replaces every pixel with the median of its ksize x ksize
// neighbourhood. Kernel sizes below 3 return an unmodified copy.
func MedianBlur(src *image.Gray, ksize int) *image.Gray {
	if ksize < 3 {
		return cloneGray(src)
	}
	return toGray(effect.Median(src, float64(ksize/2)))
}

// GaussianBlur smooths src with a Gaussian whose sigma is derived from the
// kernel size the same way OpenCV derives it when sigma is left at zero.
func GaussianBlur(src *image.Gray, ksize int) *image.Gray {
	if ksize < 3 {
		return cloneGray(src)
	}
	return toGray(blur.Gaussian(src, gaussianSigma(ksize)))
}

func gaussianSigma(ksize int) float64 {
	return 0.3*(float64(ksize-1)*0.5-1) + 0.8
}

// Dilate grows foreground (white) areas of a binary image by a kernel of the
// given size. Sizes below 2 return an unmodified copy.
func Dilate(src *image.Gray, ksize int) *image.Gray {
	if ksize < 2 {
		return cloneGray(src)
	}
	return segment.Threshold(effect.Dilate(src, float64(ksize)/2), 128)
}

// Erode shrinks foreground (white) areas of a binary image by a kernel of the
// given size. Sizes below 2 return an unmodified copy.
func Erode(src *image.Gray, ksize int) *image.Gray {
	if ksize < 2 {
		return cloneGray(src)
	}
	return segment.Threshold(effect.Erode(src, float64(ksize)/2), 128)
}

// Threshold maps pixels at or above level to white and the rest to black.
func Threshold(src image.Image, level uint8) *image.Gray {
	return segment.Threshold(src, level)
}

// Invert returns the photographic negative of a grayscale image.
func Invert(src *image.Gray) *image.Gray {
	return toGray(effect.Invert(src))
}

// AdaptiveThresholdInv binarizes src against a local mean.
//
// A pixel becomes foreground (255) when it is at most mean-c, where mean is
// the average of the block x block window centred on it. Windows are clipped at
// the image border. Dark ink and card borders against a lighter surround come
// out white, uniform areas come out black.
func AdaptiveThresholdInv(src *image.Gray, block int, c float64) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return dst
	}
	if block < 3 {
		block = 3
	}
	r := block / 2

	// integral[y+1][x+1] = sum of src over [0..x] x [0..y]
	stride := w + 1
	integral := make([]int64, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		var row int64
		for x := 0; x < w; x++ {
			row += int64(src.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			integral[(y+1)*stride+x+1] = integral[y*stride+x+1] + row
		}
	}

	for y := 0; y < h; y++ {
		y0 := max(y-r, 0)
		y1 := min(y+r, h-1) + 1
		for x := 0; x < w; x++ {
			x0 := max(x-r, 0)
			x1 := min(x+r, w-1) + 1
			sum := integral[y1*stride+x1] - integral[y0*stride+x1] - integral[y1*stride+x0] + integral[y0*stride+x0]
			mean := float64(sum) / float64((x1-x0)*(y1-y0))
			if float64(src.GrayAt(b.Min.X+x, b.Min.Y+y).Y) <= mean-c {
				dst.Pix[y*dst.Stride+x] = 255
			}
		}
	}
	return dst
}

// OtsuLevel returns the global threshold that maximizes between-class
// variance of the histogram of src.
func OtsuLevel(src *image.Gray) uint8 {
	var hist [256]int
	b := src.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			hist[src.GrayAt(x, y).Y]++
		}
	}

	total := b.Dx() * b.Dy()
	if total == 0 {
		return 128
	}
	var sum float64
	for i, n := range hist {
		sum += float64(i * n)
	}

	var (
		sumB, best float64
		wB         int
		level      int
	)
	for t := 0; t < 256; t++ {
		wB += hist[t]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t * hist[t])
		mB := sumB / float64(wB)
		mF := (sum - sumB) / float64(wF)
		between := float64(wB) * float64(wF) * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			level = t
		}
	}
	// pixels equal to the Otsu level belong to the dark class
	if level < 255 {
		level++
	}
	return uint8(level)
}

// WhiteFraction reports the share of pixels in a binary image that are set.
func WhiteFraction(src *image.Gray) float64 {
	b := src.Bounds()
	total := b.Dx() * b.Dy()
	if total == 0 {
		return 0
	}
	white := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if src.GrayAt(x, y).Y > 127 {
				white++
			}
		}
	}
	return float64(white) / float64(total)
}

// Rotate turns img about its centre by degrees (positive is clockwise on
// screen) without resizing. Areas uncovered by the rotation are black.
func Rotate(img image.Image, degrees float64) *image.NRGBA {
	rotated := transform.Rotate(img, degrees, &transform.RotationOptions{ResizeBounds: false})
	b := rotated.Bounds()
	return imaging.Overlay(imaging.New(b.Dx(), b.Dy(), color.Black), rotated, image.Pt(0, 0), 1.0)
}

// Clone returns an opaque NRGBA copy of img rebased at (0,0).
func Clone(img image.Image) *image.NRGBA {
	return imaging.Clone(img)
}

func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	if g, ok := img.(*image.Gray); ok && b.Min == (image.Point{}) {
		return g
	}
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

func cloneGray(src *image.Gray) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
