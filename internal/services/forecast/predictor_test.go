package forecast

import "testing"

func TestPredictDeterministicRepeatable(t *testing.T) {
	x, _ := trainingData(t, 20, 3)
	net := newNetwork(2, []int{4, 3}, 0.2, 1)
	b := newNativeBackend(net, 3, nil)

	p1, err := b.Predict(x, Deterministic, false)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	p2, err := b.Predict(x, Deterministic, false)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if len(p1.Levels) != len(x) {
		t.Fatalf("got %d predictions for %d windows", len(p1.Levels), len(x))
	}
	if !p1.Scaled || p1.Simulated {
		t.Fatalf("native prediction should be scaled and not simulated")
	}
	for i := range p1.Levels {
		if p1.Levels[i] != p2.Levels[i] {
			t.Fatalf("deterministic predictions differ at %d: %v vs %v", i, p1.Levels[i], p2.Levels[i])
		}
	}
}

func TestPredictConfidenceBounds(t *testing.T) {
	x, _ := trainingData(t, 20, 3)
	net := newNetwork(2, []int{4}, 0.3, 1)
	b := newNativeBackend(net, 3, nil)

	p, err := b.Predict(x, Deterministic, true)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if len(p.Confidence) != len(x) {
		t.Fatalf("got %d confidences for %d windows", len(p.Confidence), len(x))
	}
	for i, c := range p.Confidence {
		if c < confidenceFloor || c > confidenceCeil {
			t.Fatalf("confidence[%d] = %v outside [%v, %v]", i, c, confidenceFloor, confidenceCeil)
		}
	}
}

func TestPredictSampleDoesNotMutateState(t *testing.T) {
	x, _ := trainingData(t, 20, 3)
	net := newNetwork(2, []int{4}, 0.3, 1)
	b := newNativeBackend(net, 3, nil)

	before, _ := b.Predict(x, Deterministic, false)
	if _, err := b.Predict(x, StochasticDropout, true); err != nil {
		t.Fatalf("stochastic predict: %v", err)
	}
	after, _ := b.Predict(x, Deterministic, false)
	for i := range before.Levels {
		if before.Levels[i] != after.Levels[i] {
			t.Fatalf("stochastic passes mutated inference state at %d", i)
		}
	}
}

func TestPredictWindowWidthMismatch(t *testing.T) {
	net := newNetwork(2, []int{4}, 0.2, 1)
	b := newNativeBackend(net, 3, nil)
	bad := [][][]float64{{{0.1, 0.2, 0.3}, {0.4, 0.5, 0.6}, {0.7, 0.8, 0.9}}}
	if _, err := b.Predict(bad, Deterministic, false); err == nil {
		t.Fatalf("expected error for window width mismatch")
	}
}

func TestPredictEmptyInput(t *testing.T) {
	net := newNetwork(2, []int{4}, 0.2, 1)
	b := newNativeBackend(net, 3, nil)
	p, err := b.Predict(nil, Deterministic, true)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if len(p.Levels) != 0 {
		t.Fatalf("expected empty prediction")
	}
}
