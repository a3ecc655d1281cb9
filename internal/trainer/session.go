package trainer

import (
	"sync"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"spiral-forge/internal/dataset"
	"spiral-forge/internal/model"
	"spiral-forge/internal/rng"
)

var (
	// ErrInvalidParams is returned when a session cannot be built from its parameters.
	ErrInvalidParams = errors.New("trainer: invalid session parameters")
	// ErrQueryShape is returned when grid query points do not have two columns.
	ErrQueryShape = errors.New("trainer: query points must have 2 columns")
)

// SessionParams captures everything needed to build a dataset and a network.
type SessionParams struct {
	Radius         float64
	Span           float64
	TotalSamples   int
	NumClasses     int
	DataRandMax    float64
	NetworkRandMax float64
	HiddenSize     int
	DescentRate    float64
	RegularRate    float64
}

// Validate rejects parameters that would divide by zero or truncate samples.
func (p SessionParams) Validate() error {
	switch {
	case p.NumClasses <= 0:
		return errors.Wrapf(ErrInvalidParams, "num_classes must be > 0 (got %d)", p.NumClasses)
	case p.TotalSamples <= 0:
		return errors.Wrapf(ErrInvalidParams, "total_samples must be > 0 (got %d)", p.TotalSamples)
	case p.TotalSamples%p.NumClasses != 0:
		return errors.Wrapf(ErrInvalidParams, "total_samples %d is not divisible by num_classes %d",
			p.TotalSamples, p.NumClasses)
	case p.HiddenSize <= 0:
		return errors.Wrapf(ErrInvalidParams, "hidden_size must be > 0 (got %d)", p.HiddenSize)
	}
	return nil
}

// MetaData holds the read-only shape and optimizer settings of a session.
type MetaData struct {
	Samples     int
	HiddenSize  int
	NumClasses  int
	DescentRate float64
	RegularRate float64
}

// StepResult describes one completed train step.
type StepResult struct {
	Step     int
	DataLoss float64
	RegLoss  float64
}

// Total returns the combined loss of the step.
func (r StepResult) Total() float64 {
	return r.DataLoss + r.RegLoss
}

// Session owns one dataset and one network. All methods are safe for
// concurrent use; train steps are serialized by an exclusive lock.
type Session struct {
	mu    sync.RWMutex
	meta  MetaData
	data  *dataset.Dataset
	net   *model.Network
	steps int
}

// NewSession builds and initializes a session.
func NewSession(p SessionParams) (*Session, error) {
	s := &Session{}
	if _, err := s.Initialize(p); err != nil {
		return nil, err
	}
	return s, nil
}

// Initialize replaces the dataset and network and returns the metadata of the
// new session. On error the previous state is left untouched. The dataset and
// the network each draw from their own generator seeded with the same fixed seed.
func (s *Session) Initialize(p SessionParams) (MetaData, error) {
	if err := p.Validate(); err != nil {
		return MetaData{}, err
	}
	data := dataset.Generate(p.NumClasses, p.TotalSamples/p.NumClasses, p.Radius, p.Span, p.DataRandMax, rng.New())
	net := model.NewNetwork(dataset.PlaneDimension, p.HiddenSize, p.NumClasses, p.NetworkRandMax, rng.New())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta = MetaData{
		Samples:     data.Len(),
		HiddenSize:  p.HiddenSize,
		NumClasses:  p.NumClasses,
		DescentRate: p.DescentRate,
		RegularRate: p.RegularRate,
	}
	s.data = data
	s.net = net
	s.steps = 0
	return s.meta, nil
}

// TrainStep runs one full-batch forward, loss, backward and descent pass and
// returns the combined loss measured before the update.
func (s *Session) TrainStep() float64 {
	return s.TrainStepDetailed().Total()
}

// TrainStepDetailed is TrainStep reporting both loss terms.
func (s *Session) TrainStepDetailed() StepResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	loss := s.net.TrainStep(
		model.Batch{Points: s.data.Points, Labels: s.data.Labels},
		model.Hyperparameters{DescentRate: s.meta.DescentRate, RegularRate: s.meta.RegularRate},
	)
	s.steps++
	return StepResult{Step: s.steps, DataLoss: loss.DataLoss, RegLoss: loss.RegLoss}
}

// PredictGrid returns the most probable class for each query row.
func (s *Session) PredictGrid(query *mat.Dense) ([]int, error) {
	if query == nil || query.IsEmpty() {
		return []int{}, nil
	}
	if _, c := query.Dims(); c != dataset.PlaneDimension {
		return nil, errors.Wrapf(ErrQueryShape, "got %d columns", c)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.net.Predict(query), nil
}

// Accuracy returns the fraction of training points classified correctly.
func (s *Session) Accuracy() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	predicted := s.net.Predict(s.data.Points)
	correct := 0
	for i, label := range s.data.Labels {
		if predicted[i] == label {
			correct++
		}
	}
	return float64(correct) / float64(len(predicted))
}

// Dataset returns a copy of the training points and labels.
func (s *Session) Dataset() *dataset.Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &dataset.Dataset{
		Points: mat.DenseCopyOf(s.data.Points),
		Labels: append([]int(nil), s.data.Labels...),
	}
}

// Network returns a copy of the current parameters.
func (s *Session) Network() *model.Network {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.net.Clone()
}

// Samples returns the number of training points.
func (s *Session) Samples() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Len()
}

// NumClasses returns the number of classes of the session.
func (s *Session) NumClasses() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta.NumClasses
}

// Meta returns the session metadata.
func (s *Session) Meta() MetaData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta
}

// Steps returns the number of train steps since the last Initialize.
func (s *Session) Steps() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.steps
}

// Snapshot is a consistent copy of a session taken under one read lock. It is
// immutable and safe for concurrent use.
type Snapshot struct {
	Step int
	meta MetaData
	data *dataset.Dataset
	net  *model.Network
}

// Snapshot copies the dataset, the parameters and the metadata at once.
func (s *Session) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &Snapshot{
		Step: s.steps,
		meta: s.meta,
		data: &dataset.Dataset{
			Points: mat.DenseCopyOf(s.data.Points),
			Labels: append([]int(nil), s.data.Labels...),
		},
		net: s.net.Clone(),
	}
}

// PredictGrid is Session.PredictGrid against the copied parameters.
func (sn *Snapshot) PredictGrid(query *mat.Dense) ([]int, error) {
	if query == nil || query.IsEmpty() {
		return []int{}, nil
	}
	if _, c := query.Dims(); c != dataset.PlaneDimension {
		return nil, errors.Wrapf(ErrQueryShape, "got %d columns", c)
	}
	return sn.net.Predict(query), nil
}

func (sn *Snapshot) NumClasses() int { return sn.meta.NumClasses }

func (sn *Snapshot) Meta() MetaData { return sn.meta }

// Dataset returns the copied dataset. Callers must not modify it.
func (sn *Snapshot) Dataset() *dataset.Dataset { return sn.data }
