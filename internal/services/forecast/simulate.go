package forecast

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

const (
	simulatedMAE        = 2.5
	simulatedNoiseStd   = 0.05
	simulatedConfidence = 0.75
)

// SimulationBackend stands in when no trainable numeric backend is
// available. It preserves the Backend contract: Train fabricates run
// metadata without fitting anything, Predict echoes the last observed river
// level perturbed by Gaussian noise. Output is tagged Simulated so callers
// can tell it apart from learned forecasts.
type SimulationBackend struct {
	scaler *MinMaxScaler

	mu  sync.Mutex
	rng *rand.Rand
}

func newSimulationBackend(scaler *MinMaxScaler, seed int64) *SimulationBackend {
	return &SimulationBackend{scaler: scaler, rng: rand.New(rand.NewSource(seed))}
}

func (b *SimulationBackend) Train(ctx context.Context, x [][][]float64, y []float64, opts TrainOptions) (*History, Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, Metadata{}, err
	}
	meta := Metadata{
		TrainedAt: time.Now().Format(time.RFC3339),
		Mode:      "simulated",
		MAE:       simulatedMAE,
	}
	return &History{Loss: []float64{0.1}, ValLoss: []float64{0.12}}, meta, nil
}

// Predict returns the last observed river level of each window perturbed by
// independent noise with standard deviation 5% of the value, in gauge units.
func (b *SimulationBackend) Predict(x [][][]float64, mode InferenceMode, withConfidence bool) (*Prediction, error) {
	levels := make([]float64, len(x))
	for i, w := range x {
		if len(w) == 0 || len(w[0]) <= levelColumn {
			return nil, configErrorf("n_features", "window %d has no river-level channel", i)
		}
		last := w[len(w)-1][levelColumn]
		if b.scaler != nil && b.scaler.Fitted() {
			inv, err := b.scaler.InverseColumn(levelColumn, []float64{last})
			if err != nil {
				return nil, err
			}
			last = inv[0]
		}
		levels[i] = last * (1 + b.norm()*simulatedNoiseStd)
	}
	p := &Prediction{Levels: levels, Simulated: true}
	if withConfidence {
		conf := make([]float64, len(x))
		for i := range conf {
			conf[i] = simulatedConfidence
		}
		p.Confidence = conf
	}
	return p, nil
}

func (b *SimulationBackend) norm() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rng.NormFloat64()
}

var _ Backend = (*SimulationBackend)(nil)
var _ Backend = (*nativeBackend)(nil)
