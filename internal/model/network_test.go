package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"spiral-forge/internal/rng"
)

func smallBatch() Batch {
	return Batch{
		Points: mat.NewDense(4, 2, []float64{
			0.3, -0.7,
			-0.5, 0.2,
			0.9, 0.4,
			-0.1, -0.8,
		}),
		Labels: []int{0, 1, 1, 0},
	}
}

func params(n *Network) []*mat.Dense {
	return []*mat.Dense{n.W1, n.B1, n.W2, n.B2}
}

func flatten(n *Network) []float64 {
	var out []float64
	for _, p := range params(n) {
		out = append(out, p.RawMatrix().Data...)
	}
	return out
}

func load(n *Network, x []float64) {
	for _, p := range params(n) {
		data := p.RawMatrix().Data
		copy(data, x[:len(data)])
		x = x[len(data):]
	}
}

func TestNewNetworkShapes(t *testing.T) {
	n := NewNetwork(2, 5, 3, 0.1, rng.New())
	require.Equal(t, 2, n.InputDim())
	require.Equal(t, 5, n.HiddenDim())
	require.Equal(t, 3, n.OutputDim())
	r, c := n.B1.Dims()
	require.Equal(t, [2]int{1, 5}, [2]int{r, c})
	r, c = n.B2.Dims()
	require.Equal(t, [2]int{1, 3}, [2]int{r, c})
}

func TestInitIsReproducibleAndReplaces(t *testing.T) {
	a := NewNetwork(2, 4, 3, 0.1, rng.New())
	b := NewNetwork(2, 4, 3, 0.1, rng.New())
	require.Equal(t, flatten(a), flatten(b))

	b.Descent(Gradients{
		DW1: mat.NewDense(2, 4, nil), DB1: mat.NewDense(1, 4, []float64{1, 1, 1, 1}),
		DW2: mat.NewDense(4, 3, nil), DB2: mat.NewDense(1, 3, nil),
	}, 1)
	require.NotEqual(t, flatten(a), flatten(b))

	b.Init(2, 4, 3, 0.1, rng.New())
	require.Equal(t, flatten(a), flatten(b))
}

func TestInitDrawOrder(t *testing.T) {
	n := NewNetwork(2, 3, 2, 1, rng.New())
	draws := rng.New().Fill(make([]float64, 6+6+3+2), 1)
	require.Equal(t, draws[0:6], n.W1.RawMatrix().Data)
	require.Equal(t, draws[6:12], n.W2.RawMatrix().Data)
	require.Equal(t, draws[12:15], n.B1.RawMatrix().Data)
	require.Equal(t, draws[15:17], n.B2.RawMatrix().Data)
}

func TestForwardSoftmaxRowsSumToOne(t *testing.T) {
	n := NewNetwork(2, 16, 4, 0.5, rng.New())
	hidden, probs := n.Forward(smallBatch().Points)
	r, c := hidden.Dims()
	require.Equal(t, 4, r)
	require.Equal(t, 16, c)
	for _, v := range hidden.RawMatrix().Data {
		require.GreaterOrEqual(t, v, 0.0)
	}
	rows, _ := probs.Dims()
	for i := 0; i < rows; i++ {
		row := probs.RawRowView(i)
		for _, p := range row {
			require.GreaterOrEqual(t, p, 0.0)
		}
		assert.InDelta(t, 1.0, floats.Sum(row), 1e-12)
	}
}

func TestForwardKnownValues(t *testing.T) {
	n := &Network{
		W1: mat.NewDense(2, 2, []float64{1, -1, 0, 1}),
		B1: mat.NewDense(1, 2, []float64{0, 0.5}),
		W2: mat.NewDense(2, 2, []float64{1, 0, 0, 1}),
		B2: mat.NewDense(1, 2, []float64{0, 0}),
	}
	hidden, probs := n.Forward(mat.NewDense(1, 2, []float64{2, 1}))
	// pre-activation: [2, -2+1+0.5] = [2, -0.5]
	require.Equal(t, []float64{2, 0}, hidden.RawRowView(0))
	e2 := math.Exp(2)
	assert.InDelta(t, e2/(e2+1), probs.At(0, 0), 1e-15)
	assert.InDelta(t, 1/(e2+1), probs.At(0, 1), 1e-15)
}

func TestForwardOverflowIsNotStabilized(t *testing.T) {
	n := &Network{
		W1: mat.NewDense(2, 1, []float64{1, 0}),
		B1: mat.NewDense(1, 1, []float64{0}),
		W2: mat.NewDense(1, 2, []float64{1000, 0}),
		B2: mat.NewDense(1, 2, []float64{0, 0}),
	}
	_, probs := n.Forward(mat.NewDense(1, 2, []float64{1, 0}))
	require.True(t, math.IsNaN(probs.At(0, 0)), "exp overflow should surface as NaN, got %v", probs.At(0, 0))
}

func TestForwardPanicsOnWrongWidth(t *testing.T) {
	n := NewNetwork(2, 3, 2, 0.1, rng.New())
	require.Panics(t, func() { n.Forward(mat.NewDense(2, 3, nil)) })
}

func TestLossTerms(t *testing.T) {
	n := &Network{
		W1: mat.NewDense(2, 1, []float64{1, 2}),
		B1: mat.NewDense(1, 1, []float64{5}),
		W2: mat.NewDense(1, 2, []float64{3, 0}),
		B2: mat.NewDense(1, 2, []float64{7, 7}),
	}
	probs := mat.NewDense(2, 2, []float64{
		0.25, 0.75,
		0.5, 0.5,
	})
	dataLoss, regLoss := n.Loss(probs, []int{1, 0}, 0.1)
	assert.InDelta(t, (-math.Log(0.75)-math.Log(0.5))/2, dataLoss, 1e-15)
	// biases are not penalized
	assert.InDelta(t, 0.5*0.1*(1+4+9), regLoss, 1e-15)
}

func TestLossZeroProbabilityIsInfinite(t *testing.T) {
	n := NewNetwork(2, 1, 2, 0.1, rng.New())
	dataLoss, _ := n.Loss(mat.NewDense(1, 2, []float64{0, 1}), []int{0}, 0)
	require.True(t, math.IsInf(dataLoss, 1))
}

func TestBackwardMatchesFiniteDifferences(t *testing.T) {
	const regularRate = 0.01
	batch := smallBatch()
	n := NewNetwork(2, 3, 2, 0.5, rng.New())

	hidden, probs := n.Forward(batch.Points)
	g := n.Backward(batch.Points, hidden, probs, batch.Labels, regularRate)
	analytic := flatten(&Network{W1: g.DW1, B1: g.DB1, W2: g.DW2, B2: g.DB2})

	probe := n.Clone()
	loss := func(x []float64) float64 {
		load(probe, x)
		_, p := probe.Forward(batch.Points)
		dataLoss, regLoss := probe.Loss(p, batch.Labels, regularRate)
		return dataLoss + regLoss
	}
	numeric := fd.Gradient(nil, loss, flatten(n), &fd.Settings{Formula: fd.Central, Step: 1e-6})

	require.Len(t, numeric, len(analytic))
	for i := range analytic {
		diff := math.Abs(numeric[i] - analytic[i])
		scale := math.Max(math.Abs(numeric[i]), math.Abs(analytic[i]))
		if diff > 1e-3*scale+1e-7 {
			t.Fatalf("param %d grad mismatch: num=%.8g ana=%.8g", i, numeric[i], analytic[i])
		}
	}
}

func TestBackwardMasksDeadUnits(t *testing.T) {
	batch := smallBatch()
	n := NewNetwork(2, 3, 2, 0.5, rng.New())
	// column 1 of the hidden layer is dead for every input
	n.W1.Set(0, 1, 0)
	n.W1.Set(1, 1, 0)
	n.B1.Set(0, 1, -1)

	hidden, probs := n.Forward(batch.Points)
	g := n.Backward(batch.Points, hidden, probs, batch.Labels, 0)
	require.Zero(t, g.DW1.At(0, 1))
	require.Zero(t, g.DW1.At(1, 1))
	require.Zero(t, g.DB1.At(0, 1))
	require.Zero(t, g.DW2.At(1, 0))
	require.Zero(t, g.DW2.At(1, 1))
}

func TestBackwardPanicsOnMismatchedCache(t *testing.T) {
	batch := smallBatch()
	n := NewNetwork(2, 3, 2, 0.5, rng.New())
	hidden, probs := n.Forward(batch.Points)
	other := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	require.Panics(t, func() { n.Backward(other, hidden, probs, batch.Labels, 0) })
	require.Panics(t, func() { n.Backward(batch.Points, hidden, probs, batch.Labels[:3], 0) })
}

func TestDescentUpdatesInPlace(t *testing.T) {
	n := NewNetwork(2, 2, 2, 0.1, rng.New())
	before := n.Clone()
	w1 := n.W1
	g := Gradients{
		DW1: mat.NewDense(2, 2, []float64{1, 2, 3, 4}),
		DB1: mat.NewDense(1, 2, []float64{1, 1}),
		DW2: mat.NewDense(2, 2, []float64{-1, 0, 0, -1}),
		DB2: mat.NewDense(1, 2, []float64{0.5, 0.5}),
	}
	n.Descent(g, 0.5)
	require.Same(t, w1, n.W1)
	assert.InDelta(t, before.W1.At(1, 1)-2, n.W1.At(1, 1), 1e-15)
	assert.InDelta(t, before.B1.At(0, 0)-0.5, n.B1.At(0, 0), 1e-15)
	assert.InDelta(t, before.W2.At(0, 0)+0.5, n.W2.At(0, 0), 1e-15)
	assert.InDelta(t, before.B2.At(0, 1)-0.25, n.B2.At(0, 1), 1e-15)
}

func TestTrainStepReducesLoss(t *testing.T) {
	batch := smallBatch()
	n := NewNetwork(2, 8, 2, 0.1, rng.New())
	hp := Hyperparameters{DescentRate: 0.5, RegularRate: 0.001}
	first := n.TrainStep(batch, hp)
	var last StepLoss
	for i := 0; i < 200; i++ {
		last = n.TrainStep(batch, hp)
	}
	if last.Total() >= first.Total() {
		t.Fatalf("expected loss to decrease; first=%f last=%f", first.Total(), last.Total())
	}
}

func TestPredictTiesGoToLowestIndex(t *testing.T) {
	n := &Network{
		W1: mat.NewDense(2, 1, []float64{0, 0}),
		B1: mat.NewDense(1, 1, []float64{0}),
		W2: mat.NewDense(1, 3, []float64{0, 0, 0}),
		B2: mat.NewDense(1, 3, []float64{0, 1, 1}),
	}
	got := n.Predict(mat.NewDense(2, 2, []float64{1, 1, -1, 3}))
	require.Equal(t, []int{1, 1}, got)
}
