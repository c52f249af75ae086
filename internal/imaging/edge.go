package imaging

import (
	"image"
	"math"
)

const cannyBlurSize = 5

// tan(22.5°) and tan(67.5°) split gradient directions into four sectors.
var (
	tan22 = math.Tan(math.Pi / 8)
	tan67 = math.Tan(3 * math.Pi / 8)
)

// Canny returns the binary edge map of img: 255 on edges, 0 elsewhere, with
// bounds rebased at (0,0).
//
// Parameters:
//   - img: Source image (color or grayscale).
//   - low, high: Hysteresis thresholds on the Sobel gradient magnitude of
//     the 8-bit luminance. Pixels above high seed edges; pixels above low
//     join an edge only when 8-connected to a seed. The tilt corrector and
//     artwork finder use 50 and 150.
//
// # Algorithm
//
//  1. Luminance, then a 5x5 Gaussian blur
//  2. Sobel gradients; magnitude is the L2 norm
//  3. Non-maximum suppression along the gradient direction, quantized to
//     0°, 45°, 90° or 135°
//  4. Hysteresis by flood fill from the strong pixels
func Canny(img image.Image, low, high int) *image.Gray {
	gray := GaussianBlur(Grayscale(img), cannyBlurSize)
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return out
	}

	mag, sector := sobel(gray)
	nms := suppress(mag, sector, w, h)
	hysteresis(out, nms, float32(low), float32(high))
	return out
}

// sobel returns the gradient magnitude and direction sector of every pixel.
// Borders replicate the edge pixel.
func sobel(g *image.Gray) ([]float32, []uint8) {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	mag := make([]float32, w*h)
	sector := make([]uint8, w*h)

	at := func(x, y int) float64 {
		x = min(max(x, 0), w-1)
		y = min(max(y, 0), h-1)
		return float64(g.Pix[y*g.Stride+x])
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			tl, t, tr := at(x-1, y-1), at(x, y-1), at(x+1, y-1)
			l, r := at(x-1, y), at(x+1, y)
			bl, bm, br := at(x-1, y+1), at(x, y+1), at(x+1, y+1)

			gx := (tr + 2*r + br) - (tl + 2*l + bl)
			gy := (bl + 2*bm + br) - (tl + 2*t + tr)

			i := y*w + x
			mag[i] = float32(math.Hypot(gx, gy))
			sector[i] = directionSector(gx, gy)
		}
	}
	return mag, sector
}

// directionSector maps a gradient onto 0 (horizontal), 1 (45°), 2 (vertical)
// or 3 (135°). Image y grows downward.
func directionSector(gx, gy float64) uint8 {
	ax, ay := math.Abs(gx), math.Abs(gy)
	switch {
	case ay <= ax*tan22:
		return 0
	case ay >= ax*tan67:
		return 2
	case (gx > 0) == (gy > 0):
		return 1
	default:
		return 3
	}
}

// suppress keeps only pixels that are local maxima across the edge. The
// one-pixel border is always zero.
func suppress(mag []float32, sector []uint8, w, h int) []float32 {
	out := make([]float32, w*h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			var a, b float32
			switch sector[i] {
			case 0:
				a, b = mag[i-1], mag[i+1]
			case 1:
				a, b = mag[i-w-1], mag[i+w+1]
			case 2:
				a, b = mag[i-w], mag[i+w]
			default:
				a, b = mag[i-w+1], mag[i+w-1]
			}
			if mag[i] >= a && mag[i] >= b {
				out[i] = mag[i]
			}
		}
	}
	return out
}

// hysteresis marks strong pixels and every weak pixel reachable from one.
func hysteresis(dst *image.Gray, nms []float32, low, high float32) {
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()
	stack := make([]int, 0, 256)

	for seed, v := range nms {
		if v < high || dst.Pix[(seed/w)*dst.Stride+seed%w] != 0 {
			continue
		}
		dst.Pix[(seed/w)*dst.Stride+seed%w] = 255
		stack = append(stack, seed)

		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			px, py := p%w, p/w
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					x, y := px+dx, py+dy
					if x < 0 || y < 0 || x >= w || y >= h {
						continue
					}
					j := y*w + x
					if nms[j] < low || dst.Pix[y*dst.Stride+x] != 0 {
						continue
					}
					dst.Pix[y*dst.Stride+x] = 255
					stack = append(stack, j)
				}
			}
		}
	}
}
