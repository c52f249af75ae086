package imaging

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Box is a labelled rectangle drawn by DrawBoxes.
type Box struct {
	Label string
	Rect  image.Rectangle
	Color color.Color
}

// Hue returns a fully saturated, full-value colour for a hue in degrees.
// Overlay colours are picked by hue so that they stay distinguishable on
// card art of any palette.
func Hue(degrees float64) color.RGBA {
	r, g, b := colorful.Hsv(degrees, 1, 1).Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// DrawBoxes returns a copy of img with each box outlined and labelled.
//
// Boxes are clipped to the image; empty boxes are skipped. The label is
// drawn just above the box, or inside it when there is no room above.
func DrawBoxes(img image.Image, boxes []Box, thickness int) *image.NRGBA {
	dst := Clone(img)
	if thickness < 1 {
		thickness = 1
	}
	for _, box := range boxes {
		r := box.Rect.Intersect(dst.Bounds())
		if r.Empty() {
			continue
		}
		c := box.Color
		if c == nil {
			c = Hue(0)
		}
		strokeRect(dst, r, c, thickness)
		if box.Label != "" {
			drawLabel(dst, r.Min.X, r.Min.Y, box.Label, c)
		}
	}
	return dst
}

// DrawPolygon returns a copy of img with the closed polygon pts outlined.
func DrawPolygon(img image.Image, pts []image.Point, c color.Color, thickness int) *image.NRGBA {
	dst := Clone(img)
	for i := range pts {
		drawLine(dst, pts[i], pts[(i+1)%len(pts)], c, thickness)
	}
	return dst
}

func strokeRect(dst draw.Image, r image.Rectangle, c color.Color, thickness int) {
	src := image.NewUniform(c)
	t := thickness
	draw.Draw(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, min(r.Min.Y+t, r.Max.Y)), src, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(r.Min.X, max(r.Max.Y-t, r.Min.Y), r.Max.X, r.Max.Y), src, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(r.Min.X, r.Min.Y, min(r.Min.X+t, r.Max.X), r.Max.Y), src, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(max(r.Max.X-t, r.Min.X), r.Min.Y, r.Max.X, r.Max.Y), src, image.Point{}, draw.Src)
}

// drawLine uses Bresenham's algorithm with a square pen.
func drawLine(dst draw.Image, a, b image.Point, c color.Color, thickness int) {
	bounds := dst.Bounds()
	half := thickness / 2
	plot := func(x, y int) {
		for dy := -half; dy <= half; dy++ {
			for dx := -half; dx <= half; dx++ {
				p := image.Pt(x+dx, y+dy)
				if p.In(bounds) {
					dst.Set(p.X, p.Y, c)
				}
			}
		}
	}

	dx := abs(b.X - a.X)
	dy := -abs(b.Y - a.Y)
	sx, sy := 1, 1
	if a.X > b.X {
		sx = -1
	}
	if a.Y > b.Y {
		sy = -1
	}
	err := dx + dy
	x, y := a.X, a.Y
	for {
		plot(x, y)
		if x == b.X && y == b.Y {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

// drawLabel writes text with the 7x13 basic font on a dark backing strip.
func drawLabel(dst draw.Image, x, y int, text string, fg color.Color) {
	face := basicfont.Face7x13
	const lineHeight = 13
	width := font.MeasureString(face, text).Ceil()

	top := y - lineHeight - 2
	if top < dst.Bounds().Min.Y {
		top = y + 2
	}
	bg := image.Rect(x, top, x+width+2, top+lineHeight+1).Intersect(dst.Bounds())
	draw.Draw(dst, bg, image.NewUniform(color.RGBA{0, 0, 0, 200}), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(fg),
		Face: face,
		Dot:  fixed.P(x+1, top+face.Ascent),
	}
	d.DrawString(text)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
