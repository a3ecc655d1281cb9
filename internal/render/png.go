package render

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"github.com/pkg/errors"

	"spiral-forge/internal/dataset"
)

// Source is what RenderPNG needs from a training session. Every method must
// describe the same state, so pass a snapshot rather than a session that can
// be trained or re-initialized while the image is drawn.
type Source interface {
	Predictor
	NumClasses() int
	Dataset() *dataset.Dataset
}

// PointRadius is the radius in pixels of a data point marker.
const PointRadius = 2

// RenderPNG encodes the decision boundary of src with its data points on top.
func RenderPNG(w io.Writer, src Source, vp Viewport) error {
	return RenderPNGWith(&defaultAllocator, w, src, vp)
}

// RenderPNGWith is RenderPNG drawing into a canvas taken from alloc. The
// canvas is released before returning.
func RenderPNGWith(alloc *Allocator, w io.Writer, src Source, vp Viewport) error {
	if err := vp.Validate(); err != nil {
		return err
	}
	canvas := alloc.Alloc(vp.Width * vp.Height * BytesPerPixel)
	defer alloc.Release(canvas)

	numClasses := src.NumClasses()
	if err := DrawPrediction(src, numClasses, canvas, vp); err != nil {
		return err
	}
	img := &image.RGBA{
		Pix:    canvas,
		Stride: vp.Width * BytesPerPixel,
		Rect:   image.Rect(0, 0, vp.Width, vp.Height),
	}

	data := src.Dataset()
	DrawPoints(data.Points, data.Labels, numClasses, vp, func(x, y uint32, labelRatio float32) {
		c := Hue(labelRatio)
		c.A = 0x7f
		marker := &disc{center: image.Pt(int(x), int(y)), radius: PointRadius}
		draw.DrawMask(img, marker.Bounds(), image.NewUniform(c), image.Point{}, marker, marker.Bounds().Min, draw.Over)
	})

	return errors.Wrap(png.Encode(w, img), "render: encode png")
}

// Hue maps a ratio in [0, 1) onto the fully saturated color wheel.
func Hue(ratio float32) color.NRGBA {
	h := 6 * float64(ratio)
	sector := math.Floor(h)
	up := uint8(math.Round((h - sector) * 255))
	down := 255 - up
	switch int(sector) {
	case 0:
		return color.NRGBA{R: 0xFF, G: up, A: 0xFF}
	case 1:
		return color.NRGBA{R: down, G: 0xFF, A: 0xFF}
	case 2:
		return color.NRGBA{G: 0xFF, B: up, A: 0xFF}
	case 3:
		return color.NRGBA{G: down, B: 0xFF, A: 0xFF}
	case 4:
		return color.NRGBA{R: up, B: 0xFF, A: 0xFF}
	default:
		return color.NRGBA{R: 0xFF, B: down, A: 0xFF}
	}
}

// disc is an alpha mask covering a filled circle.
type disc struct {
	center image.Point
	radius int
}

func (d *disc) ColorModel() color.Model { return color.AlphaModel }

func (d *disc) Bounds() image.Rectangle {
	return image.Rect(d.center.X-d.radius, d.center.Y-d.radius, d.center.X+d.radius+1, d.center.Y+d.radius+1)
}

func (d *disc) At(x, y int) color.Color {
	dx, dy := x-d.center.X, y-d.center.Y
	if dx*dx+dy*dy <= d.radius*d.radius {
		return color.Alpha{A: 0xFF}
	}
	return color.Alpha{}
}
