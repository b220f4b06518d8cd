package forecast

import (
	"errors"
	"math"
	"testing"
)

func TestScalerRoundTrip(t *testing.T) {
	m := [][]float64{
		{0, 2.5},
		{12.5, 3.1},
		{4.2, 2.9},
		{50, 4.8},
	}
	s := NewMinMaxScaler()
	if err := s.Fit(m); err != nil {
		t.Fatalf("fit: %v", err)
	}
	scaled, err := s.Transform(m)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	for i, row := range scaled {
		for j, v := range row {
			if v < 0 || v > 1 {
				t.Fatalf("scaled[%d][%d] = %v outside [0,1]", i, j, v)
			}
		}
	}
	back, err := s.InverseTransform(scaled)
	if err != nil {
		t.Fatalf("inverse: %v", err)
	}
	for i := range m {
		for j := range m[i] {
			if math.Abs(back[i][j]-m[i][j]) > 1e-9 {
				t.Fatalf("round trip [%d][%d]: got %v want %v", i, j, back[i][j], m[i][j])
			}
		}
	}
}

func TestScalerConstantColumn(t *testing.T) {
	m := [][]float64{
		{7, 1},
		{7, 2},
		{7, 3},
	}
	s := NewMinMaxScaler()
	if err := s.Fit(m); err != nil {
		t.Fatalf("fit: %v", err)
	}
	scaled, err := s.Transform(m)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	for i := range scaled {
		if scaled[i][0] != 0 {
			t.Fatalf("constant column row %d: got %v want 0", i, scaled[i][0])
		}
	}
}

func TestScalerNotFitted(t *testing.T) {
	s := NewMinMaxScaler()
	if _, err := s.Transform([][]float64{{1, 2}}); !errors.Is(err, ErrNotFitted) {
		t.Fatalf("expected ErrNotFitted, got %v", err)
	}
	if _, err := s.InverseColumn(1, []float64{0.5}); !errors.Is(err, ErrNotFitted) {
		t.Fatalf("expected ErrNotFitted, got %v", err)
	}
}

func TestScalerStateRestore(t *testing.T) {
	m := [][]float64{
		{0, 2.5},
		{20, 5.0},
	}
	s := NewMinMaxScaler()
	if err := s.Fit(m); err != nil {
		t.Fatalf("fit: %v", err)
	}
	restored := NewMinMaxScalerFromState(s.State())
	if !restored.Fitted() {
		t.Fatalf("restored scaler not fitted")
	}
	want, _ := s.Transform(m)
	got, err := restored.Transform(m)
	if err != nil {
		t.Fatalf("restored transform: %v", err)
	}
	for i := range want {
		for j := range want[i] {
			if got[i][j] != want[i][j] {
				t.Fatalf("restored transform [%d][%d]: got %v want %v", i, j, got[i][j], want[i][j])
			}
		}
	}
}

func TestScalerFitEmpty(t *testing.T) {
	s := NewMinMaxScaler()
	if err := s.Fit(nil); err == nil {
		t.Fatalf("expected error for empty matrix")
	}
}
