package render

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// BytesPerPixel is the RGBA stride of a canvas.
const BytesPerPixel = 4

// Predictor maps query points to class indices.
type Predictor interface {
	PredictGrid(query *mat.Dense) ([]int, error)
}

// Palette returns the RGB color of every class. Channels ramp linearly from
// black to (200, 240, 255) across the classes.
func Palette(numClasses int) [][3]uint8 {
	r := linspace(0, 200, numClasses)
	g := linspace(0, 240, numClasses)
	b := linspace(0, 255, numClasses)
	out := make([][3]uint8, numClasses)
	for i := range out {
		out[i] = [3]uint8{uint8(r[i]), uint8(g[i]), uint8(b[i])}
	}
	return out
}

// Viewport maps a width×height canvas onto the plane so that the shorter side
// covers spanLeast units centered on the origin.
type Viewport struct {
	Width, Height int
	SpanLeast     float64
}

// Validate rejects empty or negative canvases, non-positive spans and sizes
// whose RGBA buffer would not fit in an int.
func (v Viewport) Validate() error {
	if v.Width <= 0 || v.Height <= 0 || !(v.SpanLeast > 0) {
		return errors.Errorf("render: invalid viewport %dx%d span %v", v.Width, v.Height, v.SpanLeast)
	}
	if v.Width > math.MaxInt/BytesPerPixel/v.Height {
		return errors.Errorf("render: viewport %dx%d is too large", v.Width, v.Height)
	}
	return nil
}

// PixelsPerUnit returns the scale between plane units and pixels.
func (v Viewport) PixelsPerUnit() float64 {
	return float64(min(v.Width, v.Height)) / v.SpanLeast
}

// Grid returns one query row per pixel in row-major order (y outer, x inner).
func (v Viewport) Grid() *mat.Dense {
	unitsPerPixel := v.SpanLeast / float64(min(v.Width, v.Height))
	spanW := float64(v.Width) * unitsPerPixel
	spanH := float64(v.Height) * unitsPerPixel
	xs := linspace(-spanW/2, spanW/2, v.Width)
	ys := linspace(-spanH/2, spanH/2, v.Height)

	grid := mat.NewDense(v.Width*v.Height, 2, nil)
	for y, py := range ys {
		for x, px := range xs {
			row := grid.RawRowView(y*v.Width + x)
			row[0], row[1] = px, py
		}
	}
	return grid
}

// DrawPrediction paints the predicted class of every pixel into canvas as
// opaque RGBA. canvas must hold width*height*BytesPerPixel bytes.
func DrawPrediction(p Predictor, numClasses int, canvas []byte, vp Viewport) error {
	if err := vp.Validate(); err != nil {
		return err
	}
	if need := vp.Width * vp.Height * BytesPerPixel; len(canvas) < need {
		return errors.Errorf("render: canvas has %d bytes, need %d", len(canvas), need)
	}
	labels, err := predictChunks(p, vp.Grid(), predictWorkers(), gridChunkRows)
	if err != nil {
		return errors.WithMessage(err, "render: predict grid")
	}
	palette := Palette(numClasses)
	for i, label := range labels {
		if label < 0 || label >= numClasses {
			return errors.Errorf("render: predicted class %d outside %d classes", label, numClasses)
		}
		c := palette[label]
		px := canvas[i*BytesPerPixel : (i+1)*BytesPerPixel]
		px[0], px[1], px[2], px[3] = c[0], c[1], c[2], 0xFF
	}
	return nil
}

func linspace(lo, hi float64, n int) []float64 {
	switch {
	case n <= 0:
		return nil
	case n == 1:
		return []float64{lo}
	}
	return floats.Span(make([]float64, n), lo, hi)
}
