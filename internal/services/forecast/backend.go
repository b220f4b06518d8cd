package forecast

import (
	"context"
)

// Capability reports what the numeric runtime in this process can do. It is
// injected at construction so tests and callers can force either backend
// deterministically instead of consulting a process-wide flag.
type Capability struct {
	Trainable bool
}

// CapabilityProbe resolves the runtime capability once, at construction.
type CapabilityProbe func() Capability

// NativeCapability reports the in-process trainable backend as available.
// This is the default probe.
func NativeCapability() Capability { return Capability{Trainable: true} }

// SimulatedCapability forces the simulation backend.
func SimulatedCapability() Capability { return Capability{} }

// InferenceMode selects how a point forecast pass treats dropout.
type InferenceMode int

const (
	// Deterministic disables dropout and uses running statistics.
	Deterministic InferenceMode = iota
	// StochasticDropout keeps dropout active over frozen weights, as used
	// for Monte-Carlo uncertainty sampling.
	StochasticDropout
)

// TrainOptions configure one training run.
type TrainOptions struct {
	Epochs         int
	BatchSize      int
	XVal           [][][]float64
	YVal           []float64
	CheckpointPath string
	Verbose        bool
}

// History is the per-epoch loss record of a training run.
type History struct {
	Loss    []float64 `json:"loss"`
	ValLoss []float64 `json:"val_loss"`
}

// Metadata describes a produced bundle. Simulated bundles carry only
// {mode, mae} alongside the timestamp.
type Metadata struct {
	TrainedAt      string  `json:"trained_at,omitempty"`
	Mode           string  `json:"mode,omitempty"`
	Epochs         int     `json:"epochs,omitempty"`
	TrainLoss      float64 `json:"train_loss,omitempty"`
	TrainMAE       float64 `json:"train_mae,omitempty"`
	ValLoss        float64 `json:"val_loss,omitempty"`
	ValMAE         float64 `json:"val_mae,omitempty"`
	MAE            float64 `json:"mae,omitempty"`
	SequenceLength int     `json:"sequence_length,omitempty"`
	LSTMUnits      []int   `json:"lstm_units,omitempty"`
}

// Prediction is one batch of backend output. Scaled output still needs an
// inverse transform through the model's scaler; simulated output is already
// in gauge units and tagged so callers can tell it apart.
type Prediction struct {
	Levels     []float64
	Confidence []float64
	Scaled     bool
	Simulated  bool
}

// Backend runs training and inference. Implementations must keep Predict
// safe for concurrent callers over frozen weights; Train holds exclusive
// ownership of the weights for the duration of the call.
type Backend interface {
	Train(ctx context.Context, x [][][]float64, y []float64, opts TrainOptions) (*History, Metadata, error)
	Predict(x [][][]float64, mode InferenceMode, withConfidence bool) (*Prediction, error)
}
