package model

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// affine returns x·w + b with the 1×c bias b broadcast over rows.
func affine(x mat.Matrix, w, b *mat.Dense) *mat.Dense {
	out := &mat.Dense{}
	out.Mul(x, w)
	bias := b.RawRowView(0)
	r, _ := out.Dims()
	for i := 0; i < r; i++ {
		floats.Add(out.RawRowView(i), bias)
	}
	return out
}

func relu(_, _ int, v float64) float64 {
	if v > 0 {
		return v
	}
	return 0
}

// softmaxRows normalizes each row of m in place to exp(v)/sum(exp(row)).
func softmaxRows(m *mat.Dense) {
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		row := m.RawRowView(i)
		for j, v := range row {
			row[j] = math.Exp(v)
		}
		floats.Scale(1/floats.Sum(row), row)
	}
}

// columnSum returns the 1×c row vector of column totals.
func columnSum(m *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(1, c, nil)
	sum := out.RawRowView(0)
	for i := 0; i < r; i++ {
		floats.Add(sum, m.RawRowView(i))
	}
	return out
}

// addScaled computes dst += alpha*m.
func addScaled(dst *mat.Dense, alpha float64, m *mat.Dense) {
	var scaled mat.Dense
	scaled.Scale(alpha, m)
	dst.Add(dst, &scaled)
}

func sumSquares(m *mat.Dense) float64 {
	var sq mat.Dense
	sq.MulElem(m, m)
	return mat.Sum(&sq)
}
