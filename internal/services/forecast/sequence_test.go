package forecast

import "testing"

func seriesMatrix(n int) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = []float64{float64(i), 100 + float64(i)}
	}
	return m
}

func TestBuildSequencesCountAndTarget(t *testing.T) {
	const rows, seqLen = 20, 7
	x, y, err := BuildSequences(seriesMatrix(rows), seqLen)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	wantWindows := rows - seqLen - 1
	if len(x) != wantWindows || len(y) != wantWindows {
		t.Fatalf("got %d windows %d targets, want %d", len(x), len(y), wantWindows)
	}

	// first window covers rows 0..6, its target is the river level two
	// steps past the window end, i.e. row 8
	if len(x[0]) != seqLen {
		t.Fatalf("window length %d, want %d", len(x[0]), seqLen)
	}
	if x[0][0][0] != 0 || x[0][seqLen-1][0] != 6 {
		t.Fatalf("first window spans rows %v..%v, want 0..6", x[0][0][0], x[0][seqLen-1][0])
	}
	if y[0] != 108 {
		t.Fatalf("first target %v, want 108", y[0])
	}

	// last window ends at row 18, target is row 19
	last := len(x) - 1
	if x[last][seqLen-1][0] != 17 {
		t.Fatalf("last window ends at row %v, want 17", x[last][seqLen-1][0])
	}
	if y[last] != 119 {
		t.Fatalf("last target %v, want 119", y[last])
	}
}

func TestBuildSequencesWindowsAreCopies(t *testing.T) {
	m := seriesMatrix(10)
	x, _, err := BuildSequences(m, 3)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	m[0][0] = -999
	if x[0][0][0] == -999 {
		t.Fatalf("window aliases input matrix")
	}
}

func TestBuildSequencesTooShort(t *testing.T) {
	if _, _, err := BuildSequences(seriesMatrix(8), 7); err == nil {
		t.Fatalf("expected error for series shorter than seqLen+2")
	}
	// exactly seqLen+2 rows yields one window
	x, y, err := BuildSequences(seriesMatrix(9), 7)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(x) != 1 || len(y) != 1 {
		t.Fatalf("got %d windows, want 1", len(x))
	}
}

func TestBuildSequencesValidation(t *testing.T) {
	if _, _, err := BuildSequences(seriesMatrix(10), 0); err == nil {
		t.Fatalf("expected error for non-positive sequence length")
	}
	narrow := [][]float64{{1}, {2}, {3}, {4}, {5}, {6}}
	if _, _, err := BuildSequences(narrow, 3); err == nil {
		t.Fatalf("expected error for missing river-level channel")
	}
	ragged := seriesMatrix(10)
	ragged[4] = []float64{1}
	if _, _, err := BuildSequences(ragged, 3); err == nil {
		t.Fatalf("expected error for ragged matrix")
	}
}
