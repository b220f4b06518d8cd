package forecast

import (
	"context"
	"fmt"
	"sync"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	applogger "FloodCast/pkg/logger"
)

// Config is the construction configuration of a forecaster.
type Config struct {
	SequenceLength int     `yaml:"sequence_length" default:"7" validate:"gt=0"`
	NFeatures      int     `yaml:"n_features" default:"2" validate:"gte=2"`
	LSTMUnits      []int   `yaml:"lstm_units" default:"[64,32]" validate:"min=1,dive,gt=0"`
	DropoutRate    float64 `yaml:"dropout_rate" default:"0.2" validate:"gte=0,lt=1"`
	ModelPath      string  `yaml:"model_path"`
	Seed           int64   `yaml:"seed" default:"1"`
}

// PredictOptions control one inference call.
type PredictOptions struct {
	Mode             InferenceMode
	ReturnConfidence bool
}

// Result is a batch of forecasts in gauge units. Simulated marks output
// produced by the simulation backend.
type Result struct {
	Levels     []float64
	Confidence []float64
	Simulated  bool
}

type modelOptions struct {
	logger *applogger.Logger
	probe  CapabilityProbe
}

// Option customizes model construction.
type Option func(*modelOptions)

// WithLogger attaches a structured logger.
func WithLogger(l *applogger.Logger) Option {
	return func(o *modelOptions) { o.logger = l }
}

// WithCapabilityProbe injects the runtime capability check used to choose
// between the native and simulation backends.
func WithCapabilityProbe(p CapabilityProbe) Option {
	return func(o *modelOptions) { o.probe = p }
}

// Model ties the scaler, sequence builder, backend and persistence into the
// river-level forecaster. The scaler is fitted on the first training call
// unless a bundle was loaded; after training completes or a bundle loads,
// weights and scaler are immutable and concurrent Predict calls are safe.
type Model struct {
	cfg        Config
	scaler     *MinMaxScaler
	backend    Backend
	capability Capability
	meta       Metadata
	history    *History
	logger     *applogger.Logger

	// trainMu serializes training runs: one run holds exclusive write
	// access to the weights at a time.
	trainMu sync.Mutex
}

// New builds a model from config, applying defaults and validation. When
// cfg.ModelPath points at an existing bundle it is loaded; otherwise a
// fresh (or simulated) backend is constructed.
func New(cfg Config, opts ...Option) (*Model, error) {
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("apply config defaults: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, &ConfigError{Msg: err.Error()}
	}

	o := &modelOptions{probe: func() Capability { return NativeCapability() }}
	for _, opt := range opts {
		opt(o)
	}

	m := &Model{
		cfg:        cfg,
		scaler:     NewMinMaxScaler(),
		capability: o.probe(),
		logger:     o.logger,
	}

	if cfg.ModelPath != "" && BundleExists(cfg.ModelPath) {
		if err := m.Load(cfg.ModelPath); err != nil {
			return nil, err
		}
		return m, nil
	}
	m.initBackend()
	return m, nil
}

func (m *Model) initBackend() {
	if m.capability.Trainable {
		net := newNetwork(m.cfg.NFeatures, m.cfg.LSTMUnits, m.cfg.DropoutRate, m.cfg.Seed)
		m.backend = newNativeBackend(net, m.cfg.SequenceLength, m.logger)
		return
	}
	if m.logger != nil {
		m.logger.Warn("falling back to simulation mode", applogger.Error(ErrBackendUnavailable))
	}
	m.backend = newSimulationBackend(m.scaler, m.cfg.Seed)
}

// PrepareSequences column-stacks rainfall and river level, scales them, and
// builds training windows. fitScaler refits the scaler from this series;
// pass false to reuse frozen parameters (e.g. for held-out evaluation).
func (m *Model) PrepareSequences(rainfall, riverLevel []float64, fitScaler bool) ([][][]float64, []float64, error) {
	if m.cfg.NFeatures != 2 {
		return nil, nil, configErrorf("n_features", "series input provides 2 features, model expects %d", m.cfg.NFeatures)
	}
	if len(rainfall) != len(riverLevel) {
		return nil, nil, configErrorf("series", "rainfall has %d rows, river level %d", len(rainfall), len(riverLevel))
	}
	features := make([][]float64, len(rainfall))
	for i := range rainfall {
		features[i] = []float64{rainfall[i], riverLevel[i]}
	}
	if fitScaler {
		if err := m.scaler.Fit(features); err != nil {
			return nil, nil, err
		}
	}
	scaled, err := m.scaler.Transform(features)
	if err != nil {
		return nil, nil, err
	}
	return BuildSequences(scaled, m.cfg.SequenceLength)
}

// PrepareWindow scales the trailing SequenceLength rows of the series into a
// single inference window. The scaler must already be fitted (or loaded).
func (m *Model) PrepareWindow(rainfall, riverLevel []float64) ([][][]float64, error) {
	if len(rainfall) != len(riverLevel) {
		return nil, configErrorf("series", "rainfall has %d rows, river level %d", len(rainfall), len(riverLevel))
	}
	if len(rainfall) < m.cfg.SequenceLength {
		return nil, configErrorf("series", "need at least %d rows, got %d", m.cfg.SequenceLength, len(rainfall))
	}
	offset := len(rainfall) - m.cfg.SequenceLength
	features := make([][]float64, m.cfg.SequenceLength)
	for i := range features {
		features[i] = []float64{rainfall[offset+i], riverLevel[offset+i]}
	}
	if !m.scaler.fitted {
		// Simulation without a fitted scaler works on raw gauge units.
		return [][][]float64{features}, nil
	}
	scaled, err := m.scaler.Transform(features)
	if err != nil {
		return nil, err
	}
	return [][][]float64{scaled}, nil
}

// Train runs one synchronous training run and records its metadata on the
// model. Backend unavailability never surfaces here; the simulation backend
// fulfills the same contract.
func (m *Model) Train(ctx context.Context, x [][][]float64, y []float64, opts TrainOptions) (*History, error) {
	m.trainMu.Lock()
	defer m.trainMu.Unlock()

	hist, meta, err := m.backend.Train(ctx, x, y, opts)
	if err != nil {
		return hist, err
	}
	m.history = hist
	m.meta = meta
	return hist, nil
}

// Predict produces point forecasts in gauge units, with per-window
// confidence when requested.
func (m *Model) Predict(x [][][]float64, opts PredictOptions) (*Result, error) {
	p, err := m.backend.Predict(x, opts.Mode, opts.ReturnConfidence)
	if err != nil {
		return nil, err
	}
	levels := p.Levels
	if p.Scaled {
		levels, err = m.scaler.InverseColumn(levelColumn, levels)
		if err != nil {
			return nil, err
		}
	}
	return &Result{Levels: levels, Confidence: p.Confidence, Simulated: p.Simulated}, nil
}

// Save persists the current bundle under basePath.
func (m *Model) Save(basePath string) error {
	b := &Bundle{Scaler: m.scaler.State(), Meta: m.meta}
	if nb, ok := m.backend.(*nativeBackend); ok {
		b.Weights = nb.net.state(m.cfg.SequenceLength)
	}
	return SaveBundle(b, basePath)
}

// Load replaces the model's bundle wholesale from basePath.
func (m *Model) Load(basePath string) error {
	b, err := LoadBundle(basePath, m.logger)
	if err != nil {
		return err
	}
	m.scaler = NewMinMaxScalerFromState(b.Scaler)
	m.meta = b.Meta
	if b.Weights.SequenceLength > 0 {
		m.cfg.SequenceLength = b.Weights.SequenceLength
	}
	m.cfg.NFeatures = b.Weights.NFeatures
	m.cfg.LSTMUnits = append([]int(nil), b.Weights.Units...)
	m.cfg.DropoutRate = b.Weights.DropoutRate

	if !m.capability.Trainable {
		if m.logger != nil {
			m.logger.Warn("bundle loaded without trainable backend, serving simulated forecasts",
				applogger.Error(ErrBackendUnavailable))
		}
		m.backend = newSimulationBackend(m.scaler, m.cfg.Seed)
		return nil
	}
	net, err := newNetworkFromState(b.Weights, m.cfg.Seed)
	if err != nil {
		return &PersistenceError{Op: "load", Path: basePath, Err: err}
	}
	m.backend = newNativeBackend(net, m.cfg.SequenceLength, m.logger)
	return nil
}

// Metadata returns the metadata of the current bundle.
func (m *Model) Metadata() Metadata { return m.meta }

// History returns the most recent training history, or nil.
func (m *Model) History() *History { return m.history }

// Simulated reports whether forecasts come from the simulation backend.
func (m *Model) Simulated() bool {
	_, ok := m.backend.(*SimulationBackend)
	return ok
}

// Config returns the effective configuration after defaults and any load.
func (m *Model) Config() Config { return m.cfg }
