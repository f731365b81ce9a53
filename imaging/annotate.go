package imaging

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const strokeWidth = 2

// Box is one labelled rectangle to draw on the preview.
type Box struct {
	Rect  image.Rectangle
	Label string
	Color [3]uint8
}

// Annotate returns a copy of img with each box outlined and labelled in its
// dominant colour.
func Annotate(img image.Image, boxes []Box) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, img, b.Min, draw.Src)

	for _, box := range boxes {
		c := color.RGBA{R: box.Color[0], G: box.Color[1], B: box.Color[2], A: 255}
		outline(out, box.Rect.Intersect(b), c)
		label(out, box, c)
	}
	return out
}

func outline(dst *image.RGBA, r image.Rectangle, c color.RGBA) {
	if r.Empty() {
		return
	}
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+strokeWidth),
		image.Rect(r.Min.X, r.Max.Y-strokeWidth, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+strokeWidth, r.Max.Y),
		image.Rect(r.Max.X-strokeWidth, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(r), src, image.Point{}, draw.Src)
	}
}

// label writes the name just above the box, or inside it at the top edge.
func label(dst *image.RGBA, box Box, c color.RGBA) {
	if box.Label == "" {
		return
	}
	face := basicfont.Face7x13
	y := box.Rect.Min.Y - 4
	if y < face.Ascent {
		y = box.Rect.Min.Y + face.Ascent + strokeWidth
	}
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(box.Rect.Min.X+strokeWidth, y),
	}
	d.DrawString(box.Label)
}
