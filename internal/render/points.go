package render

import "gonum.org/v1/gonum/mat"

// DrawPointFunc receives the pixel position of a visible data point and its
// label as a fraction of the class count.
type DrawPointFunc func(x, y uint32, labelRatio float32)

// DrawPoints calls draw once for every point that lands on the canvas.
// Pixel coordinates are truncated toward zero and offset to the canvas center.
func DrawPoints(points mat.Matrix, labels []int, numClasses int, vp Viewport, draw DrawPointFunc) int {
	pixelPerUnit := vp.PixelsPerUnit()
	width, height := int64(vp.Width), int64(vp.Height)
	drawn := 0
	for i, label := range labels {
		x := int64(points.At(i, 0)*pixelPerUnit) + width/2
		y := int64(points.At(i, 1)*pixelPerUnit) + height/2
		if x < 0 || x >= width || y < 0 || y >= height {
			continue
		}
		draw(uint32(x), uint32(y), float32(label)/float32(numClasses))
		drawn++
	}
	return drawn
}
