package usecase

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"FloodCast/internal/domain/models"
	domrepo "FloodCast/internal/domain/repository"
	"FloodCast/internal/services/forecast"
)

// rangeRecordingStore serves synthetic readings and records the range the
// runner asked for.
type rangeRecordingStore struct {
	rows     int
	from, to time.Time
	res      domrepo.Resolution
	calls    int
}

func (s *rangeRecordingStore) GetReadings(ctx context.Context, station string, from, to time.Time, res domrepo.Resolution) ([]models.Reading, error) {
	s.calls++
	s.from, s.to, s.res = from, to, res
	out := make([]models.Reading, s.rows)
	base := to.Add(-time.Duration(s.rows) * time.Hour)
	for i := range out {
		phase := float64(i) / 3
		out[i] = models.Reading{
			Timestamp:   base.Add(time.Duration(i) * time.Hour),
			RainfallMM:  5 + 4*math.Sin(phase),
			RiverLevelM: 3 + 0.8*math.Sin(phase-0.5),
			Station:     station,
		}
	}
	return out, nil
}

func (s *rangeRecordingStore) GetLatestNReadings(ctx context.Context, station string, n int, res domrepo.Resolution) ([]models.Reading, error) {
	return nil, nil
}

func TestTrainingRunnerFetchesBoundedHistory(t *testing.T) {
	model, err := forecast.New(forecast.Config{SequenceLength: 3, LSTMUnits: []int{4, 3}, Seed: 1})
	if err != nil {
		t.Fatalf("new model: %v", err)
	}

	store := &rangeRecordingStore{rows: 30}
	modelPath := filepath.Join(t.TempDir(), "model")
	const historyRows = 48
	r := NewTrainingRunner(store, model, nil, TrainingRunnerParams{
		Station:     "thu-bon-01",
		Resolution:  domrepo.Res1h,
		HistoryRows: historyRows,
		Epochs:      2,
		BatchSize:   8,
		ModelPath:   modelPath,
	})

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if store.calls != 1 {
		t.Fatalf("store queried %d times, want 1", store.calls)
	}
	if store.res != domrepo.Res1h {
		t.Fatalf("queried resolution %s, want %s", store.res, domrepo.Res1h)
	}
	span := store.to.Sub(store.from)
	want := time.Duration(historyRows) * time.Hour
	if span != want {
		t.Fatalf("queried span %s, want %s", span, want)
	}
	if !store.to.After(store.from) {
		t.Fatalf("range inverted: from %s, to %s", store.from, store.to)
	}

	if _, err := os.Stat(modelPath + "_weights.json"); err != nil {
		t.Fatalf("bundle not written: %v", err)
	}
}

func TestTrainingRunnerShortHistory(t *testing.T) {
	model, err := forecast.New(forecast.Config{SequenceLength: 6, LSTMUnits: []int{4}, Seed: 1})
	if err != nil {
		t.Fatalf("new model: %v", err)
	}

	store := &rangeRecordingStore{rows: 4}
	r := NewTrainingRunner(store, model, nil, TrainingRunnerParams{
		Station:    "thu-bon-01",
		Resolution: domrepo.Res1h,
	})
	if err := r.Run(context.Background()); err == nil {
		t.Fatal("expected error when history is shorter than one training window")
	}
}
