package forecast

import (
	"math/rand"

	"gonum.org/v1/gonum/stat"
)

const (
	confidenceSamples = 10
	confidenceFloor   = 0.5
	confidenceCeil    = 0.95
)

// Predict runs inference in scaled space over frozen weights. With
// confidence requested it adds Monte-Carlo dropout: independent stochastic
// forward passes with dropout kept active, each with its own RNG so
// concurrent callers never share mutable state. Higher variance across
// samples yields lower confidence.
func (b *nativeBackend) Predict(x [][][]float64, mode InferenceMode, withConfidence bool) (*Prediction, error) {
	if len(x) == 0 {
		return &Prediction{Scaled: true}, nil
	}
	for i, w := range x {
		if len(w) == 0 || len(w[0]) != b.net.nFeatures {
			return nil, configErrorf("n_features", "window %d does not match %d input features", i, b.net.nFeatures)
		}
	}

	var levels []float64
	switch mode {
	case StochasticDropout:
		rng := rand.New(rand.NewSource(rand.Int63()))
		levels, _ = b.net.forwardBatch(x, passSample, rng)
	default:
		levels, _ = b.net.forwardBatch(x, passInfer, nil)
	}

	p := &Prediction{Levels: levels, Scaled: true}
	if withConfidence {
		p.Confidence = b.sampleConfidence(x)
	}
	return p, nil
}

// sampleConfidence maps per-window predictive variance across stochastic
// passes to 1/(1+variance), clamped to [confidenceFloor, confidenceCeil].
func (b *nativeBackend) sampleConfidence(x [][][]float64) []float64 {
	samples := make([][]float64, confidenceSamples)
	for s := range samples {
		rng := rand.New(rand.NewSource(rand.Int63()))
		samples[s], _ = b.net.forwardBatch(x, passSample, rng)
	}
	conf := make([]float64, len(x))
	col := make([]float64, confidenceSamples)
	for i := range x {
		for s := range samples {
			col[s] = samples[s][i]
		}
		variance := stat.Variance(col, nil)
		c := 1 / (1 + variance)
		if c < confidenceFloor {
			c = confidenceFloor
		}
		if c > confidenceCeil {
			c = confidenceCeil
		}
		conf[i] = c
	}
	return conf
}
