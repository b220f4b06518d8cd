package forecast

import (
	"gonum.org/v1/gonum/floats"
)

// MinMaxScaler maps each feature column linearly into [0,1] using the
// minimum and maximum observed at fit time. Parameters are frozen after
// Fit and reused identically for every transform until an explicit refit.
type MinMaxScaler struct {
	min    []float64
	max    []float64
	fitted bool
}

// ScalerState is the serializable form of a fitted scaler.
type ScalerState struct {
	Min    []float64 `json:"min"`
	Max    []float64 `json:"max"`
	Fitted bool      `json:"fitted"`
}

func NewMinMaxScaler() *MinMaxScaler { return &MinMaxScaler{} }

// NewMinMaxScalerFromState restores a scaler from persisted state.
func NewMinMaxScalerFromState(s *ScalerState) *MinMaxScaler {
	if s == nil || !s.Fitted {
		return &MinMaxScaler{}
	}
	return &MinMaxScaler{
		min:    append([]float64(nil), s.Min...),
		max:    append([]float64(nil), s.Max...),
		fitted: true,
	}
}

// Fit computes per-column min/max over the given matrix.
func (s *MinMaxScaler) Fit(m [][]float64) error {
	if len(m) == 0 || len(m[0]) == 0 {
		return configErrorf("scaler", "cannot fit on empty matrix")
	}
	width := len(m[0])
	s.min = make([]float64, width)
	s.max = make([]float64, width)
	col := make([]float64, len(m))
	for j := 0; j < width; j++ {
		for i, row := range m {
			if len(row) != width {
				return configErrorf("scaler", "ragged matrix: row %d has %d columns, want %d", i, len(row), width)
			}
			col[i] = row[j]
		}
		s.min[j] = floats.Min(col)
		s.max[j] = floats.Max(col)
	}
	s.fitted = true
	return nil
}

// Fitted reports whether fit parameters are present.
func (s *MinMaxScaler) Fitted() bool { return s.fitted }

// Transform maps each column into [0,1]. Constant columns map to 0 so the
// zero range never divides.
func (s *MinMaxScaler) Transform(m [][]float64) ([][]float64, error) {
	if !s.fitted {
		return nil, ErrNotFitted
	}
	out := make([][]float64, len(m))
	for i, row := range m {
		if len(row) != len(s.min) {
			return nil, configErrorf("scaler", "row has %d columns, scaler fitted on %d", len(row), len(s.min))
		}
		o := make([]float64, len(row))
		for j, v := range row {
			span := s.max[j] - s.min[j]
			if span == 0 {
				o[j] = 0
				continue
			}
			o[j] = (v - s.min[j]) / span
		}
		out[i] = o
	}
	return out, nil
}

// InverseTransform is the exact algebraic inverse of Transform.
func (s *MinMaxScaler) InverseTransform(m [][]float64) ([][]float64, error) {
	if !s.fitted {
		return nil, ErrNotFitted
	}
	out := make([][]float64, len(m))
	for i, row := range m {
		if len(row) != len(s.min) {
			return nil, configErrorf("scaler", "row has %d columns, scaler fitted on %d", len(row), len(s.min))
		}
		o := make([]float64, len(row))
		for j, v := range row {
			o[j] = v*(s.max[j]-s.min[j]) + s.min[j]
		}
		out[i] = o
	}
	return out, nil
}

// InverseColumn inverse-transforms a single feature channel, used to map
// scaled river-level forecasts back to gauge units.
func (s *MinMaxScaler) InverseColumn(col int, vals []float64) ([]float64, error) {
	if !s.fitted {
		return nil, ErrNotFitted
	}
	if col < 0 || col >= len(s.min) {
		return nil, configErrorf("scaler", "column %d out of range (%d fitted)", col, len(s.min))
	}
	out := make([]float64, len(vals))
	span := s.max[col] - s.min[col]
	for i, v := range vals {
		out[i] = v*span + s.min[col]
	}
	return out, nil
}

// State returns a copy of the fitted parameters for persistence.
func (s *MinMaxScaler) State() *ScalerState {
	return &ScalerState{
		Min:    append([]float64(nil), s.min...),
		Max:    append([]float64(nil), s.max...),
		Fitted: s.fitted,
	}
}
