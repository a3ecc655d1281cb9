package dataset

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"spiral-forge/internal/rng"
)

// PlaneDimension is the width of every point row.
const PlaneDimension = 2

// Dataset is a labeled point cloud. Row i of Points carries label Labels[i].
type Dataset struct {
	Points *mat.Dense
	Labels []int
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	return len(d.Labels)
}

// Generate builds numClasses spiral arms of samplesPerClass points each.
// Arm i starts at angle i*2π/numClasses and sweeps back by span radians while
// the radius grows linearly from 0 to radius. Angular noise is randMax times a
// standard normal draw from src, taken from one sequence that continues across
// arms, so each arm gets different noise. Class i occupies rows
// [i*samplesPerClass, (i+1)*samplesPerClass).
func Generate(numClasses, samplesPerClass int, radius, span, randMax float64, src *rng.Normal) *Dataset {
	total := numClasses * samplesPerClass
	if total <= 0 {
		return &Dataset{Points: &mat.Dense{}}
	}
	points := mat.NewDense(total, PlaneDimension, nil)
	labels := make([]int, total)

	rho := linspace(0, radius, samplesPerClass)
	noise := make([]float64, samplesPerClass)
	for i := 0; i < numClasses; i++ {
		begin := float64(i) * (2 * math.Pi / float64(numClasses))
		theta := linspace(begin, begin-span, samplesPerClass)
		floats.Add(theta, src.Fill(noise, randMax))

		offset := i * samplesPerClass
		for j := 0; j < samplesPerClass; j++ {
			points.Set(offset+j, 0, math.Sin(theta[j])*rho[j])
			points.Set(offset+j, 1, math.Cos(theta[j])*rho[j])
			labels[offset+j] = i
		}
	}
	return &Dataset{Points: points, Labels: labels}
}

// linspace returns n evenly spaced values from lo to hi inclusive.
func linspace(lo, hi float64, n int) []float64 {
	switch {
	case n <= 0:
		return nil
	case n == 1:
		return []float64{lo}
	}
	return floats.Span(make([]float64, n), lo, hi)
}
