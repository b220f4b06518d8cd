package forecast

// levelColumn is the river-level channel in the feature matrix; column 0
// carries rainfall.
const levelColumn = 1

// BuildSequences turns an N x F normalized feature matrix into fixed-length
// input windows and scalar targets. The window ending at row `end` covers
// rows [end-seqLen, end); its target is the river level at row end+1, one
// step beyond the row that immediately follows the window. That two-step
// horizon is part of the trained contract, so callers evaluating against
// held-out data must align on it.
//
// Output order follows input order; temporal order is never shuffled here.
func BuildSequences(features [][]float64, seqLen int) ([][][]float64, []float64, error) {
	if seqLen <= 0 {
		return nil, nil, configErrorf("sequence_length", "must be positive, got %d", seqLen)
	}
	if len(features) < seqLen+2 {
		return nil, nil, configErrorf("sequence_length", "series of %d rows too short for sequence length %d", len(features), seqLen)
	}
	width := len(features[0])
	if width <= levelColumn {
		return nil, nil, configErrorf("n_features", "need at least %d feature columns, got %d", levelColumn+1, width)
	}
	for i, row := range features {
		if len(row) != width {
			return nil, nil, configErrorf("n_features", "ragged matrix: row %d has %d columns, want %d", i, len(row), width)
		}
	}

	n := len(features) - seqLen - 1
	x := make([][][]float64, 0, n)
	y := make([]float64, 0, n)
	for end := seqLen; end <= len(features)-2; end++ {
		window := make([][]float64, seqLen)
		for t := 0; t < seqLen; t++ {
			window[t] = append([]float64(nil), features[end-seqLen+t]...)
		}
		x = append(x, window)
		y = append(y, features[end+1][levelColumn])
	}
	return x, y, nil
}
