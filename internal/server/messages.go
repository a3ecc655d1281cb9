package server

import "spiral-forge/internal/trainer"

type InitializeRequest struct {
	Radius         float64 `json:"radius"`
	Span           float64 `json:"span"`
	TotalSamples   int     `json:"total_samples"`
	NumClasses     int     `json:"num_classes"`
	DataRandMax    float64 `json:"data_rand_max"`
	NetworkRandMax float64 `json:"network_rand_max"`
	HiddenSize     int     `json:"hidden_size"`
	DescentRate    float64 `json:"descent_rate"`
	RegularRate    float64 `json:"regular_rate"`
}

// Params converts the request into session parameters.
func (r *InitializeRequest) Params() trainer.SessionParams {
	return trainer.SessionParams{
		Radius:         r.Radius,
		Span:           r.Span,
		TotalSamples:   r.TotalSamples,
		NumClasses:     r.NumClasses,
		DataRandMax:    r.DataRandMax,
		NetworkRandMax: r.NetworkRandMax,
		HiddenSize:     r.HiddenSize,
		DescentRate:    r.DescentRate,
		RegularRate:    r.RegularRate,
	}
}

// InitializeRequestFromParams is the inverse of Params.
func InitializeRequestFromParams(p trainer.SessionParams) *InitializeRequest {
	return &InitializeRequest{
		Radius:         p.Radius,
		Span:           p.Span,
		TotalSamples:   p.TotalSamples,
		NumClasses:     p.NumClasses,
		DataRandMax:    p.DataRandMax,
		NetworkRandMax: p.NetworkRandMax,
		HiddenSize:     p.HiddenSize,
		DescentRate:    p.DescentRate,
		RegularRate:    p.RegularRate,
	}
}

type InitializeResponse struct {
	Samples    int `json:"samples"`
	NumClasses int `json:"num_classes"`
}

// TrainStepRequest runs Steps train steps; zero means one.
type TrainStepRequest struct {
	Steps int `json:"steps"`
}

// TrainStepResponse reports the last step run.
type TrainStepResponse struct {
	Step     int     `json:"step"`
	DataLoss float64 `json:"data_loss"`
	RegLoss  float64 `json:"reg_loss"`
	Loss     float64 `json:"loss"`
}

type PredictGridRequest struct {
	Points [][2]float64 `json:"points"`
}

type PredictGridResponse struct {
	Labels []int `json:"labels"`
}

type DatasetRequest struct{}

type DatasetResponse struct {
	Points [][2]float64 `json:"points"`
	Labels []int        `json:"labels"`
}

type RenderRequest struct {
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	SpanLeast float64 `json:"span_least"`
}

// RenderResponse holds an encoded PNG image.
type RenderResponse struct {
	PNG []byte `json:"png"`
}
