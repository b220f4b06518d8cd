package forecast

import (
	"context"
	"math"
	"testing"
)

func TestSimulationTrainMetadata(t *testing.T) {
	b := newSimulationBackend(NewMinMaxScaler(), 1)
	hist, meta, err := b.Train(context.Background(), nil, nil, TrainOptions{})
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if meta.Mode != "simulated" {
		t.Fatalf("mode %q, want simulated", meta.Mode)
	}
	if meta.MAE != simulatedMAE {
		t.Fatalf("mae %v, want %v", meta.MAE, simulatedMAE)
	}
	if len(hist.Loss) != 1 || len(hist.ValLoss) != 1 {
		t.Fatalf("fabricated history should hold one epoch")
	}
}

func TestSimulationPredictNearLastLevel(t *testing.T) {
	b := newSimulationBackend(NewMinMaxScaler(), 1)
	const last = 4.2
	x := [][][]float64{{{1.0, 3.9}, {1.5, 4.0}, {0.2, last}}}

	p, err := b.Predict(x, Deterministic, true)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if !p.Simulated {
		t.Fatalf("prediction must be tagged simulated")
	}
	if p.Scaled {
		t.Fatalf("simulated output is already in gauge units")
	}
	if rel := math.Abs(p.Levels[0]-last) / last; rel > 0.25 {
		t.Fatalf("prediction %v strays %v from last level %v", p.Levels[0], rel, last)
	}
	if p.Confidence[0] != simulatedConfidence {
		t.Fatalf("confidence %v, want %v", p.Confidence[0], simulatedConfidence)
	}
}

func TestSimulationPredictInverseTransforms(t *testing.T) {
	scaler := NewMinMaxScaler()
	if err := scaler.Fit([][]float64{{0, 2.0}, {10, 6.0}}); err != nil {
		t.Fatalf("fit: %v", err)
	}
	b := newSimulationBackend(scaler, 1)

	// scaled level 0.5 maps back to 4.0 gauge units
	x := [][][]float64{{{0.3, 0.2}, {0.1, 0.5}}}
	p, err := b.Predict(x, Deterministic, false)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if rel := math.Abs(p.Levels[0]-4.0) / 4.0; rel > 0.25 {
		t.Fatalf("prediction %v not near 4.0 gauge units", p.Levels[0])
	}
}

func TestSimulationPredictMissingLevelChannel(t *testing.T) {
	b := newSimulationBackend(NewMinMaxScaler(), 1)
	if _, err := b.Predict([][][]float64{{{1.0}}}, Deterministic, false); err == nil {
		t.Fatalf("expected error for window without river-level channel")
	}
}
