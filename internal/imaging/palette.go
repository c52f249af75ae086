package imaging

import (
	"fmt"
	"image"
	"sort"

	"github.com/lucasb-eyer/go-colorful"
)

// ColorFrequency represents a color and its occurrence frequency in a region.
type ColorFrequency struct {
	Hex        string  `json:"hex"`        // Hex color "#rrggbb" (quantized)
	Percentage float64 `json:"percentage"` // Percentage of pixels with this color (0-100)
	Hue        int     `json:"hue"`        // 0-360
	Saturation int     `json:"saturation"` // 0-100
	Lightness  int     `json:"lightness"`  // 0-100
}

// DominantColors extracts the N most common colors from a region of an image.
//
// The workflow samples the card border with it to report frame colours, which
// helps a human tell apart printings that share a name.
//
// Parameters:
//   - img: The source image to analyze.
//   - count: Maximum number of colors to return.
//   - region: Rectangle to analyze; it is clipped to the image bounds.
//
// Returns:
//   - []ColorFrequency: Colors sorted by frequency, most common first.
//   - error: Non-nil if the clipped region is empty.
//
// # Color Quantization
//
// RGB components are quantized to multiples of 16 before counting, so colors
// within 16 units of each other (per component) are grouped together.
func DominantColors(img image.Image, count int, region image.Rectangle) ([]ColorFrequency, error) {
	bounds := region.Intersect(img.Bounds())
	if bounds.Empty() {
		return nil, fmt.Errorf("region %v does not overlap image bounds %v", region, img.Bounds())
	}

	counts := make(map[[3]uint8]int)
	total := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			key := [3]uint8{uint8((r >> 8) / 16 * 16), uint8((g >> 8) / 16 * 16), uint8((b >> 8) / 16 * 16)}
			counts[key]++
			total++
		}
	}

	colors := make([]ColorFrequency, 0, len(counts))
	for rgb, n := range counts {
		c := colorful.Color{R: float64(rgb[0]) / 255, G: float64(rgb[1]) / 255, B: float64(rgb[2]) / 255}
		h, s, l := c.Hsl()
		colors = append(colors, ColorFrequency{
			Hex:        c.Hex(),
			Percentage: float64(n) / float64(total) * 100,
			Hue:        int(h),
			Saturation: int(s * 100),
			Lightness:  int(l * 100),
		})
	}

	sort.Slice(colors, func(i, j int) bool {
		if colors[i].Percentage == colors[j].Percentage {
			return colors[i].Hex < colors[j].Hex
		}
		return colors[i].Percentage > colors[j].Percentage
	})

	if count > 0 && len(colors) > count {
		colors = colors[:count]
	}
	return colors, nil
}
