package forecast

import (
	"context"
	"math"
	"path/filepath"
	"testing"
)

// gaugeSeries fabricates correlated rainfall and river-level history.
func gaugeSeries(rows int) (rainfall, level []float64) {
	rainfall = make([]float64, rows)
	level = make([]float64, rows)
	for i := range rainfall {
		phase := float64(i) / 3
		rainfall[i] = 5 + 4*math.Sin(phase)
		level[i] = 3 + 0.8*math.Sin(phase-0.5)
	}
	return rainfall, level
}

func newTestModel(t *testing.T, opts ...Option) *Model {
	t.Helper()
	m, err := New(Config{SequenceLength: 3, LSTMUnits: []int{4, 3}, Seed: 1}, opts...)
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	return m
}

func TestModelTrainAndPredict(t *testing.T) {
	m := newTestModel(t)
	rain, level := gaugeSeries(14)

	x, y, err := m.PrepareSequences(rain, level, true)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if len(x) != 14-3-1 {
		t.Fatalf("got %d windows, want %d", len(x), 14-3-1)
	}

	hist, err := m.Train(context.Background(), x, y, TrainOptions{Epochs: 2, BatchSize: 4})
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if len(hist.Loss) == 0 {
		t.Fatalf("empty training history")
	}
	if m.Metadata().Mode != "lstm" {
		t.Fatalf("mode %q, want lstm", m.Metadata().Mode)
	}
	if m.Simulated() {
		t.Fatalf("native model must not report simulated")
	}

	res, err := m.Predict(x, PredictOptions{ReturnConfidence: true})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if len(res.Levels) != len(x) || len(res.Confidence) != len(x) {
		t.Fatalf("got %d levels %d confidences for %d windows", len(res.Levels), len(res.Confidence), len(x))
	}
	if res.Simulated {
		t.Fatalf("native forecast tagged simulated")
	}
	// forecasts come back in gauge units, not [0,1] scaled space
	for i, v := range res.Levels {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("forecast %d is %v", i, v)
		}
	}
}

func TestModelPrepareWindow(t *testing.T) {
	m := newTestModel(t)
	rain, level := gaugeSeries(14)
	if _, _, err := m.PrepareSequences(rain, level, true); err != nil {
		t.Fatalf("prepare: %v", err)
	}

	x, err := m.PrepareWindow(rain, level)
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if len(x) != 1 || len(x[0]) != 3 {
		t.Fatalf("expected one window of 3 rows, got %dx%d", len(x), len(x[0]))
	}

	if _, err := m.PrepareWindow(rain[:2], level[:2]); err == nil {
		t.Fatalf("expected error for history shorter than sequence length")
	}
}

func TestModelSimulationFallback(t *testing.T) {
	m := newTestModel(t, WithCapabilityProbe(SimulatedCapability))
	if !m.Simulated() {
		t.Fatalf("expected simulation backend")
	}

	rain, level := gaugeSeries(14)
	x, y, err := m.PrepareSequences(rain, level, true)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if _, err := m.Train(context.Background(), x, y, TrainOptions{}); err != nil {
		t.Fatalf("simulated train must succeed: %v", err)
	}
	if m.Metadata().Mode != "simulated" {
		t.Fatalf("mode %q, want simulated", m.Metadata().Mode)
	}

	res, err := m.Predict(x, PredictOptions{ReturnConfidence: true})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if !res.Simulated {
		t.Fatalf("simulated forecast not tagged")
	}
	// simulated output is anchored to the last level of each window, so it
	// must sit in gauge range rather than scaled space
	for i, v := range res.Levels {
		if v < 1 || v > 6 {
			t.Fatalf("simulated forecast %d = %v outside plausible gauge range", i, v)
		}
	}
}

func TestModelSaveLoadRoundTrip(t *testing.T) {
	base := filepath.Join(t.TempDir(), "river_model")
	m := newTestModel(t)
	rain, level := gaugeSeries(14)
	x, y, err := m.PrepareSequences(rain, level, true)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if _, err := m.Train(context.Background(), x, y, TrainOptions{Epochs: 1, BatchSize: 4}); err != nil {
		t.Fatalf("train: %v", err)
	}
	if err := m.Save(base); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := New(Config{SequenceLength: 3, LSTMUnits: []int{4, 3}, Seed: 1, ModelPath: base})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Metadata().Mode != "lstm" {
		t.Fatalf("loaded mode %q", loaded.Metadata().Mode)
	}

	want, err := m.Predict(x, PredictOptions{})
	if err != nil {
		t.Fatalf("predict original: %v", err)
	}
	got, err := loaded.Predict(x, PredictOptions{})
	if err != nil {
		t.Fatalf("predict loaded: %v", err)
	}
	for i := range want.Levels {
		if want.Levels[i] != got.Levels[i] {
			t.Fatalf("forecast %d differs after reload: %v vs %v", i, want.Levels[i], got.Levels[i])
		}
	}
}

func TestModelConfigValidation(t *testing.T) {
	if _, err := New(Config{SequenceLength: -1}); err == nil {
		t.Fatalf("expected error for negative sequence length")
	}
	if _, err := New(Config{DropoutRate: 1.5}); err == nil {
		t.Fatalf("expected error for dropout rate >= 1")
	}
}

func TestModelSeriesLengthMismatch(t *testing.T) {
	m := newTestModel(t)
	rain, level := gaugeSeries(14)
	if _, _, err := m.PrepareSequences(rain[:10], level, true); err == nil {
		t.Fatalf("expected error for unequal series")
	}
}
