package detection

import (
	"image"
	"image/color"
	"image/draw"
	"math"
)

// boxColor is the outline color for detection boxes.
var boxColor = color.RGBA{R: 0, G: 255, B: 0, A: 255}

const boxThickness = 2

// Annotate returns a copy of img with an outline drawn around every box.
// Boxes are clipped to the image bounds; malformed boxes are skipped.
func Annotate(img image.Image, boxes [][]float64) *image.RGBA {
	bounds := img.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, img, bounds.Min, draw.Src)

	src := image.NewUniform(boxColor)
	for _, box := range boxes {
		if len(box) != 4 {
			continue
		}
		r := image.Rect(
			int(math.Round(box[0])), int(math.Round(box[1])),
			int(math.Round(box[2])), int(math.Round(box[3])),
		).Add(bounds.Min).Intersect(bounds)
		if r.Empty() {
			continue
		}

		edges := []image.Rectangle{
			image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+boxThickness), // top
			image.Rect(r.Min.X, r.Max.Y-boxThickness, r.Max.X, r.Max.Y), // bottom
			image.Rect(r.Min.X, r.Min.Y, r.Min.X+boxThickness, r.Max.Y), // left
			image.Rect(r.Max.X-boxThickness, r.Min.Y, r.Max.X, r.Max.Y), // right
		}
		for _, e := range edges {
			draw.Draw(out, e.Intersect(r), src, image.Point{}, draw.Src)
		}
	}
	return out
}
