package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"spiral-forge/internal/rng"
)

// Network is a two-layer classifier: affine, ReLU, affine, softmax.
// W1 is input×hidden, B1 is 1×hidden, W2 is hidden×output and B2 is 1×output.
type Network struct {
	W1 *mat.Dense
	B1 *mat.Dense
	W2 *mat.Dense
	B2 *mat.Dense
}

// Gradients holds the loss derivative for each parameter matrix.
type Gradients struct {
	DW1 *mat.Dense
	DB1 *mat.Dense
	DW2 *mat.Dense
	DB2 *mat.Dense
}

// NewNetwork constructs a randomly initialized network.
func NewNetwork(inputDim, hiddenDim, outputDim int, randMax float64, src *rng.Normal) *Network {
	n := &Network{}
	n.Init(inputDim, hiddenDim, outputDim, randMax, src)
	return n
}

// Init replaces every parameter with standard normal draws scaled by randMax.
// Draw order is W1, W2, B1, B2.
func (n *Network) Init(inputDim, hiddenDim, outputDim int, randMax float64, src *rng.Normal) {
	w1 := randomDense(inputDim, hiddenDim, randMax, src)
	w2 := randomDense(hiddenDim, outputDim, randMax, src)
	b1 := randomDense(1, hiddenDim, randMax, src)
	b2 := randomDense(1, outputDim, randMax, src)
	*n = Network{W1: w1, B1: b1, W2: w2, B2: b2}
}

func randomDense(r, c int, scale float64, src *rng.Normal) *mat.Dense {
	return mat.NewDense(r, c, src.Fill(make([]float64, r*c), scale))
}

// InputDim returns the expected point width.
func (n *Network) InputDim() int {
	r, _ := n.W1.Dims()
	return r
}

// HiddenDim returns the width of the hidden layer.
func (n *Network) HiddenDim() int {
	_, c := n.W1.Dims()
	return c
}

// OutputDim returns the number of classes.
func (n *Network) OutputDim() int {
	_, c := n.W2.Dims()
	return c
}

// Forward returns the hidden ReLU activations and the row-wise softmax of the
// output scores. The scores are exponentiated as-is, so very large scores
// overflow to Inf/NaN. Forward panics if points does not have InputDim columns.
func (n *Network) Forward(points mat.Matrix) (hidden, probs *mat.Dense) {
	if _, c := points.Dims(); c != n.InputDim() {
		panic(fmt.Sprintf("model: points have %d columns, network expects %d", c, n.InputDim()))
	}
	hidden = affine(points, n.W1, n.B1)
	hidden.Apply(relu, hidden)
	probs = affine(hidden, n.W2, n.B2)
	softmaxRows(probs)
	return hidden, probs
}

// Loss returns the mean negative log-likelihood of the true labels and the L2
// penalty on W1 and W2. A zero probability for a true label yields +Inf.
func (n *Network) Loss(probs *mat.Dense, labels []int, regularRate float64) (dataLoss, regLoss float64) {
	rows, _ := probs.Dims()
	if rows != len(labels) {
		panic(fmt.Sprintf("model: %d probability rows for %d labels", rows, len(labels)))
	}
	for i, label := range labels {
		dataLoss -= math.Log(probs.At(i, label))
	}
	dataLoss /= float64(rows)
	regLoss = 0.5 * regularRate * (sumSquares(n.W1) + sumSquares(n.W2))
	return dataLoss, regLoss
}

// Backward computes the analytic gradients of Loss. hidden and probs must be
// the pair returned by Forward for the same points.
func (n *Network) Backward(points mat.Matrix, hidden, probs *mat.Dense, labels []int, regularRate float64) Gradients {
	rows, _ := probs.Dims()
	pr, _ := points.Dims()
	hr, hc := hidden.Dims()
	if rows != len(labels) || pr != rows || hr != rows || hc != n.HiddenDim() {
		panic(fmt.Sprintf("model: backward shape mismatch: points=%d hidden=%dx%d probs=%d labels=%d",
			pr, hr, hc, rows, len(labels)))
	}

	dScores := mat.DenseCopyOf(probs)
	for i, label := range labels {
		dScores.Set(i, label, dScores.At(i, label)-1)
	}
	dScores.Scale(1/float64(rows), dScores)

	dW2 := &mat.Dense{}
	dW2.Mul(hidden.T(), dScores)
	addScaled(dW2, regularRate, n.W2)
	db2 := columnSum(dScores)

	dHidden := &mat.Dense{}
	dHidden.Mul(dScores, n.W2.T())
	dHidden.Apply(func(i, j int, v float64) float64 {
		if hidden.At(i, j) == 0 {
			return 0
		}
		return v
	}, dHidden)

	dW1 := &mat.Dense{}
	dW1.Mul(points.T(), dHidden)
	addScaled(dW1, regularRate, n.W1)
	db1 := columnSum(dHidden)

	return Gradients{DW1: dW1, DB1: db1, DW2: dW2, DB2: db2}
}

// Descent applies param -= rate*grad to every parameter in place.
func (n *Network) Descent(g Gradients, rate float64) {
	addScaled(n.W1, -rate, g.DW1)
	addScaled(n.B1, -rate, g.DB1)
	addScaled(n.W2, -rate, g.DW2)
	addScaled(n.B2, -rate, g.DB2)
}

// TrainStep runs forward, loss, backward and descent over the whole batch.
func (n *Network) TrainStep(batch Batch, hp Hyperparameters) StepLoss {
	hidden, probs := n.Forward(batch.Points)
	dataLoss, regLoss := n.Loss(probs, batch.Labels, hp.RegularRate)
	grads := n.Backward(batch.Points, hidden, probs, batch.Labels, hp.RegularRate)
	n.Descent(grads, hp.DescentRate)
	return StepLoss{DataLoss: dataLoss, RegLoss: regLoss}
}

// Predict returns the most probable class per row. Ties go to the lowest index.
func (n *Network) Predict(points mat.Matrix) []int {
	_, probs := n.Forward(points)
	rows, _ := probs.Dims()
	out := make([]int, rows)
	for i := range out {
		out[i] = floats.MaxIdx(probs.RawRowView(i))
	}
	return out
}

// Clone returns a deep copy of the parameters.
func (n *Network) Clone() *Network {
	return &Network{
		W1: mat.DenseCopyOf(n.W1),
		B1: mat.DenseCopyOf(n.B1),
		W2: mat.DenseCopyOf(n.W2),
		B2: mat.DenseCopyOf(n.B2),
	}
}
