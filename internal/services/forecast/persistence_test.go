package forecast

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func testBundle(t *testing.T) *Bundle {
	t.Helper()
	net := newNetwork(2, []int{4, 3}, 0.2, 1)
	scaler := NewMinMaxScaler()
	if err := scaler.Fit([][]float64{{0, 2.0}, {30, 5.5}}); err != nil {
		t.Fatalf("fit: %v", err)
	}
	return &Bundle{
		Weights: net.state(3),
		Scaler:  scaler.State(),
		Meta:    Metadata{Mode: "lstm", Epochs: 12, SequenceLength: 3, LSTMUnits: []int{4, 3}},
	}
}

func TestBundleRoundTrip(t *testing.T) {
	base := filepath.Join(t.TempDir(), "river_model")
	b := testBundle(t)
	if err := SaveBundle(b, base); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !BundleExists(base) {
		t.Fatalf("bundle should exist after save")
	}

	got, err := LoadBundle(base, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Meta.Epochs != 12 || got.Meta.Mode != "lstm" {
		t.Fatalf("metadata lost in round trip: %+v", got.Meta)
	}
	if got.Scaler == nil || !got.Scaler.Fitted {
		t.Fatalf("scaler lost in round trip")
	}

	// restored weights must produce identical deterministic forecasts
	orig, err := newNetworkFromState(b.Weights, 1)
	if err != nil {
		t.Fatalf("rebuild original: %v", err)
	}
	restored, err := newNetworkFromState(got.Weights, 1)
	if err != nil {
		t.Fatalf("rebuild restored: %v", err)
	}
	x, _ := trainingData(t, 12, 3)
	want, _ := orig.forwardBatch(x, passInfer, nil)
	have, _ := restored.forwardBatch(x, passInfer, nil)
	for i := range want {
		if want[i] != have[i] {
			t.Fatalf("forecast %d differs after round trip: %v vs %v", i, want[i], have[i])
		}
	}
}

func TestLoadBundleMissingWeightsFatal(t *testing.T) {
	base := filepath.Join(t.TempDir(), "river_model")
	if _, err := LoadBundle(base, nil); err == nil {
		t.Fatalf("expected error on missing weights")
	} else {
		var perr *PersistenceError
		if !errors.As(err, &perr) {
			t.Fatalf("expected PersistenceError, got %T", err)
		}
	}
}

func TestLoadBundleMissingScalerDegrades(t *testing.T) {
	base := filepath.Join(t.TempDir(), "river_model")
	if err := SaveBundle(testBundle(t), base); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := os.Remove(base + scalerSuffix); err != nil {
		t.Fatalf("remove scaler: %v", err)
	}
	got, err := LoadBundle(base, nil)
	if err != nil {
		t.Fatalf("load without scaler should degrade, got %v", err)
	}
	if got.Scaler != nil {
		t.Fatalf("expected nil scaler state")
	}
	if got.Weights == nil {
		t.Fatalf("weights must survive")
	}
}

func TestLoadBundleMissingMetadataDegrades(t *testing.T) {
	base := filepath.Join(t.TempDir(), "river_model")
	if err := SaveBundle(testBundle(t), base); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := os.Remove(base + metadataSuffix); err != nil {
		t.Fatalf("remove metadata: %v", err)
	}
	got, err := LoadBundle(base, nil)
	if err != nil {
		t.Fatalf("load without metadata should degrade, got %v", err)
	}
	if got.Meta.Mode != "" {
		t.Fatalf("expected zero metadata, got %+v", got.Meta)
	}
}

func TestSaveBundleWithoutWeights(t *testing.T) {
	base := filepath.Join(t.TempDir(), "sim_model")
	b := testBundle(t)
	b.Weights = nil
	if err := SaveBundle(b, base); err != nil {
		t.Fatalf("save simulated bundle: %v", err)
	}
	if BundleExists(base) {
		t.Fatalf("weights artifact should not exist for simulated bundle")
	}
	if _, err := os.Stat(base + metadataSuffix); err != nil {
		t.Fatalf("metadata artifact missing: %v", err)
	}
}
