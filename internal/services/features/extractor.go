package features

import (
	"FloodCast/internal/domain/models"
)

// ReadingsToSeries splits readings into parallel rainfall and river-level
// series, oldest first. Both slices share the readings' order.
func ReadingsToSeries(readings []models.Reading) (rainfall, level []float64) {
	if len(readings) == 0 {
		return nil, nil
	}
	rainfall = make([]float64, len(readings))
	level = make([]float64, len(readings))
	for i, r := range readings {
		rainfall[i] = r.RainfallMM
		level[i] = r.RiverLevelM
	}
	return rainfall, level
}

// LastLevel returns the most recent river level, or 0 for empty input.
func LastLevel(readings []models.Reading) float64 {
	if len(readings) == 0 {
		return 0
	}
	return readings[len(readings)-1].RiverLevelM
}
