package forecast

import (
	"context"
	"math"
	"path/filepath"
	"testing"
)

func TestImprovementMonitor(t *testing.T) {
	m := newImprovementMonitor(3)
	if !m.observe(1.0) {
		t.Fatalf("first observation must improve")
	}
	if !m.observe(0.5) {
		t.Fatalf("lower loss must improve")
	}
	for i := 0; i < 3; i++ {
		if m.observe(0.6) {
			t.Fatalf("observation %d should not improve", i)
		}
	}
	if !m.exhausted() {
		t.Fatalf("expected exhaustion after patience stale epochs")
	}
	m.reset()
	if m.exhausted() {
		t.Fatalf("reset must clear staleness")
	}
	if !m.observe(0.4) {
		t.Fatalf("best must survive reset")
	}
}

// trainingData builds a small deterministic scaled series and its windows.
func trainingData(t *testing.T, rows, seqLen int) ([][][]float64, []float64) {
	t.Helper()
	m := make([][]float64, rows)
	for i := range m {
		phase := float64(i) / 4
		m[i] = []float64{
			0.5 + 0.4*math.Sin(phase),
			0.5 + 0.3*math.Cos(phase),
		}
	}
	x, y, err := BuildSequences(m, seqLen)
	if err != nil {
		t.Fatalf("build sequences: %v", err)
	}
	return x, y
}

func TestTrainRunsAndRecordsHistory(t *testing.T) {
	x, y := trainingData(t, 30, 4)
	net := newNetwork(2, []int{5, 3}, 0.2, 1)
	b := newNativeBackend(net, 4, nil)

	hist, meta, err := b.Train(context.Background(), x, y, TrainOptions{Epochs: 3, BatchSize: 8})
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if len(hist.Loss) == 0 || len(hist.Loss) > 3 {
		t.Fatalf("history has %d epochs, want 1..3", len(hist.Loss))
	}
	if len(hist.Loss) != len(hist.ValLoss) {
		t.Fatalf("loss and val_loss lengths differ: %d vs %d", len(hist.Loss), len(hist.ValLoss))
	}
	if meta.Mode != "lstm" {
		t.Fatalf("mode %q, want lstm", meta.Mode)
	}
	if meta.Epochs != len(hist.Loss) {
		t.Fatalf("metadata epochs %d, history %d", meta.Epochs, len(hist.Loss))
	}
	if meta.SequenceLength != 4 {
		t.Fatalf("metadata sequence length %d, want 4", meta.SequenceLength)
	}
	for i, l := range hist.Loss {
		if math.IsNaN(l) || math.IsInf(l, 0) {
			t.Fatalf("epoch %d loss is %v", i, l)
		}
	}
}

func TestTrainEarlyStopsOnStaleValidation(t *testing.T) {
	x, y := trainingData(t, 40, 4)

	// Validation targets sit far below anything the network can emit, so
	// validation loss stops making new minima once training converges.
	xVal, _ := trainingData(t, 20, 4)
	yVal := make([]float64, len(xVal))
	for i := range yVal {
		yVal[i] = -1000
	}

	net := newNetwork(2, []int{5, 3}, 0.2, 1)
	b := newNativeBackend(net, 4, nil)

	const maxEpochs = 200
	hist, meta, err := b.Train(context.Background(), x, y, TrainOptions{
		Epochs:    maxEpochs,
		BatchSize: 8,
		XVal:      xVal,
		YVal:      yVal,
	})
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if len(hist.Loss) >= maxEpochs {
		t.Fatalf("ran all %d epochs, expected the patience window to stop training", maxEpochs)
	}

	bestIdx := 0
	for i, v := range hist.ValLoss {
		if v < hist.ValLoss[bestIdx] {
			bestIdx = i
		}
	}
	// Training halts exactly patience epochs after the last improvement.
	want := bestIdx + 1 + earlyStopPatience
	if len(hist.Loss) != want {
		t.Fatalf("trained %d epochs, want best epoch %d plus patience %d = %d",
			len(hist.Loss), bestIdx+1, earlyStopPatience, want)
	}
	if meta.Epochs != len(hist.Loss) {
		t.Fatalf("metadata epochs %d, history %d", meta.Epochs, len(hist.Loss))
	}
}

func TestTrainValidatesInput(t *testing.T) {
	net := newNetwork(2, []int{3}, 0.2, 1)
	b := newNativeBackend(net, 3, nil)
	x, y := trainingData(t, 20, 3)

	if _, _, err := b.Train(context.Background(), x, y[:len(y)-1], TrainOptions{}); err == nil {
		t.Fatalf("expected error for mismatched windows and targets")
	}
	if _, _, err := b.Train(context.Background(), x[:1], y[:1], TrainOptions{}); err == nil {
		t.Fatalf("expected error for fewer than 2 windows")
	}
}

func TestTrainContextCancelled(t *testing.T) {
	x, y := trainingData(t, 20, 3)
	net := newNetwork(2, []int{3}, 0.2, 1)
	b := newNativeBackend(net, 3, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := b.Train(ctx, x, y, TrainOptions{Epochs: 5}); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestTrainWritesCheckpoint(t *testing.T) {
	x, y := trainingData(t, 20, 3)
	net := newNetwork(2, []int{3}, 0.2, 1)
	b := newNativeBackend(net, 3, nil)

	cp := filepath.Join(t.TempDir(), "ckpt.json")
	if _, _, err := b.Train(context.Background(), x, y, TrainOptions{Epochs: 2, BatchSize: 4, CheckpointPath: cp}); err != nil {
		t.Fatalf("train: %v", err)
	}
	var st NetworkState
	if err := readJSONFile(cp, &st); err != nil {
		t.Fatalf("read checkpoint: %v", err)
	}
	if st.SequenceLength != 3 || st.NFeatures != 2 {
		t.Fatalf("checkpoint shape %d/%d, want 3/2", st.SequenceLength, st.NFeatures)
	}
}

func TestTrainRestoresBestWeights(t *testing.T) {
	x, y := trainingData(t, 30, 4)
	net := newNetwork(2, []int{4}, 0.2, 1)
	b := newNativeBackend(net, 4, nil)

	hist, _, err := b.Train(context.Background(), x, y, TrainOptions{Epochs: 5, BatchSize: 8})
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	bestVal := hist.ValLoss[0]
	for _, v := range hist.ValLoss {
		if v < bestVal {
			bestVal = v
		}
	}
	split := len(x) * 9 / 10
	got, _ := net.evaluate(x[split:], y[split:])
	if math.Abs(got-bestVal) > 1e-9 {
		t.Fatalf("final weights evaluate to %v on validation, best epoch was %v", got, bestVal)
	}
}
