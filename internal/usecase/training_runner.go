package usecase

import (
	"context"
	"fmt"
	"time"

	domrepo "FloodCast/internal/domain/repository"
	"FloodCast/internal/services/features"
	"FloodCast/internal/services/forecast"
	applogger "FloodCast/pkg/logger"
)

// TrainingRunner pulls historical readings out of storage, fits the model,
// and persists the resulting bundle.
type TrainingRunner struct {
	store domrepo.ReadingStore
	model *forecast.Model
	l     *applogger.Logger

	station        string
	res            domrepo.Resolution
	historyRows    int
	epochs         int
	batchSize      int
	checkpointPath string
	modelPath      string
	timeout        time.Duration
}

type TrainingRunnerParams struct {
	Station        string
	Resolution     domrepo.Resolution
	HistoryRows    int
	Epochs         int
	BatchSize      int
	CheckpointPath string
	ModelPath      string
	Timeout        time.Duration
}

func NewTrainingRunner(store domrepo.ReadingStore, model *forecast.Model, l *applogger.Logger, p TrainingRunnerParams) *TrainingRunner {
	if p.HistoryRows <= 0 {
		p.HistoryRows = 5000
	}
	if p.Timeout <= 0 {
		p.Timeout = time.Hour
	}
	if !domrepo.IsValidResolution(p.Resolution) {
		p.Resolution = domrepo.DefaultResolution()
	}
	return &TrainingRunner{
		store:          store,
		model:          model,
		l:              l,
		station:        p.Station,
		res:            p.Resolution,
		historyRows:    p.HistoryRows,
		epochs:         p.Epochs,
		batchSize:      p.BatchSize,
		checkpointPath: p.CheckpointPath,
		modelPath:      p.ModelPath,
		timeout:        p.Timeout,
	}
}

// Run executes one full training cycle and saves the bundle to the model path.
func (r *TrainingRunner) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	to := time.Now().UTC()
	from := to.Add(-time.Duration(r.historyRows) * r.res.Step())
	readings, err := r.store.GetReadings(ctx, r.station, from, to, r.res)
	if err != nil {
		return fmt.Errorf("fetch history: %w", err)
	}
	seqLen := r.model.Config().SequenceLength
	if len(readings) < seqLen+2 {
		return fmt.Errorf("station %s: need at least %d readings to train, have %d", r.station, seqLen+2, len(readings))
	}
	if r.l != nil {
		r.l.Info("training started",
			applogger.String("station", r.station),
			applogger.String("res", string(r.res)),
			applogger.Int("readings", len(readings)),
		)
	}

	rain, level := features.ReadingsToSeries(readings)
	x, y, err := r.model.PrepareSequences(rain, level, true)
	if err != nil {
		return fmt.Errorf("prepare sequences: %w", err)
	}

	hist, err := r.model.Train(ctx, x, y, forecast.TrainOptions{
		Epochs:         r.epochs,
		BatchSize:      r.batchSize,
		CheckpointPath: r.checkpointPath,
		Verbose:        true,
	})
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}

	if err := r.model.Save(r.modelPath); err != nil {
		return fmt.Errorf("save bundle: %w", err)
	}
	if r.l != nil {
		meta := r.model.Metadata()
		fields := []applogger.Field{
			applogger.String("station", r.station),
			applogger.Int("windows", len(y)),
			applogger.String("mode", meta.Mode),
			applogger.Duration("duration", time.Since(start)),
		}
		if hist != nil && len(hist.Loss) > 0 {
			fields = append(fields,
				applogger.Int("epochs_run", len(hist.Loss)),
				applogger.Any("final_loss", hist.Loss[len(hist.Loss)-1]),
			)
		}
		r.l.Info("training finished", fields...)
	}
	return nil
}
