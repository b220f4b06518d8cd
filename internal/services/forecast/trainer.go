package forecast

import (
	"context"
	"time"

	applogger "FloodCast/pkg/logger"
)

const (
	defaultEpochs    = 100
	defaultBatchSize = 32

	earlyStopPatience = 15
	plateauPatience   = 5
	plateauFactor     = 0.5
	minLearningRate   = 1e-6
)

// improvementMonitor tracks a monitored loss and how many observations have
// passed since its best value. It backs both early stopping and learning
// rate plateau reduction and is deliberately unit-testable on its own.
type improvementMonitor struct {
	patience int
	best     float64
	stale    int
	seen     bool
}

func newImprovementMonitor(patience int) *improvementMonitor {
	return &improvementMonitor{patience: patience}
}

// observe records v and reports whether it improved on the best seen.
func (m *improvementMonitor) observe(v float64) bool {
	if !m.seen || v < m.best {
		m.best = v
		m.stale = 0
		m.seen = true
		return true
	}
	m.stale++
	return false
}

func (m *improvementMonitor) exhausted() bool { return m.stale >= m.patience }

func (m *improvementMonitor) reset() { m.stale = 0 }

// nativeBackend trains and serves the in-process recurrent network.
type nativeBackend struct {
	net    *network
	seqLen int
	logger *applogger.Logger
}

func newNativeBackend(net *network, seqLen int, logger *applogger.Logger) *nativeBackend {
	return &nativeBackend{net: net, seqLen: seqLen, logger: logger}
}

// Train runs the optimization loop with validation monitoring. When no
// validation split is supplied the trailing 10% of the training set is held
// out in original temporal order; validation data is never drawn from a
// shuffled pool because it must sit causally after the training rows.
func (b *nativeBackend) Train(ctx context.Context, x [][][]float64, y []float64, opts TrainOptions) (*History, Metadata, error) {
	if len(x) != len(y) {
		return nil, Metadata{}, configErrorf("train", "have %d windows but %d targets", len(x), len(y))
	}
	if len(x) < 2 {
		return nil, Metadata{}, configErrorf("train", "need at least 2 windows, got %d", len(x))
	}
	epochs := opts.Epochs
	if epochs <= 0 {
		epochs = defaultEpochs
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	xTrain, yTrain := x, y
	xVal, yVal := opts.XVal, opts.YVal
	if len(xVal) == 0 {
		split := len(x) * 9 / 10
		if split == len(x) {
			split = len(x) - 1
		}
		if split < 1 {
			split = 1
		}
		xTrain, yTrain = x[:split], y[:split]
		xVal, yVal = x[split:], y[split:]
	}

	b.net.lr = baseLearningRate
	stopper := newImprovementMonitor(earlyStopPatience)
	plateau := newImprovementMonitor(plateauPatience)
	best := b.net.captureWeights()
	hist := &History{}

	order := make([]int, len(xTrain))
	for i := range order {
		order[i] = i
	}

	for epoch := 0; epoch < epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			b.net.restoreWeights(best)
			return hist, Metadata{}, err
		}
		// shuffle mini-batch order within the training partition only
		b.net.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		var epochLoss float64
		batches := 0
		for start := 0; start < len(order); start += batchSize {
			end := start + batchSize
			if end > len(order) {
				end = len(order)
			}
			bx := make([][][]float64, end-start)
			by := make([]float64, end-start)
			for i, idx := range order[start:end] {
				bx[i] = xTrain[idx]
				by[i] = yTrain[idx]
			}
			loss, _ := b.net.trainBatch(bx, by)
			epochLoss += loss
			batches++
		}
		epochLoss /= float64(batches)
		valLoss, _ := b.net.evaluate(xVal, yVal)
		hist.Loss = append(hist.Loss, epochLoss)
		hist.ValLoss = append(hist.ValLoss, valLoss)

		if stopper.observe(valLoss) {
			best = b.net.captureWeights()
			if opts.CheckpointPath != "" {
				if err := writeJSONFile(opts.CheckpointPath, b.net.state(b.seqLen)); err != nil {
					return hist, Metadata{}, &PersistenceError{Op: "checkpoint", Path: opts.CheckpointPath, Err: err}
				}
			}
		}
		if opts.Verbose && b.logger != nil {
			b.logger.Info("epoch complete",
				applogger.Int("epoch", epoch+1),
				applogger.Any("loss", epochLoss),
				applogger.Any("val_loss", valLoss),
				applogger.Any("lr", b.net.lr),
			)
		}
		if stopper.exhausted() {
			if b.logger != nil {
				b.logger.Info("early stopping", applogger.Int("epoch", epoch+1))
			}
			break
		}
		if !plateau.observe(valLoss) && plateau.exhausted() {
			lr := b.net.lr * plateauFactor
			if lr < minLearningRate {
				lr = minLearningRate
			}
			b.net.lr = lr
			plateau.reset()
			if b.logger != nil {
				b.logger.Info("reducing learning rate", applogger.Any("lr", lr))
			}
		}
	}

	b.net.restoreWeights(best)

	trainLoss, trainMAE := b.net.evaluate(xTrain, yTrain)
	valLoss, valMAE := b.net.evaluate(xVal, yVal)
	meta := Metadata{
		TrainedAt:      time.Now().Format(time.RFC3339),
		Mode:           "lstm",
		Epochs:         len(hist.Loss),
		TrainLoss:      trainLoss,
		TrainMAE:       trainMAE,
		ValLoss:        valLoss,
		ValMAE:         valMAE,
		SequenceLength: b.seqLen,
		LSTMUnits:      append([]int(nil), b.net.units...),
	}
	return hist, meta, nil
}
