package model

import "gonum.org/v1/gonum/mat"

// Batch represents the full set of points and labels fed to a train step.
type Batch struct {
	Points *mat.Dense
	Labels []int
}

// Hyperparameters are read-only once a session is initialized.
type Hyperparameters struct {
	DescentRate float64
	RegularRate float64
}

// StepLoss reports the two loss terms of a train step separately.
type StepLoss struct {
	DataLoss float64
	RegLoss  float64
}

// Total returns the combined loss.
func (l StepLoss) Total() float64 {
	return l.DataLoss + l.RegLoss
}
