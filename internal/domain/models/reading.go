package models

import "time"

// Reading is one time-aligned gauge observation: rainfall accumulated over
// the interval plus the river level at the end of it.
type Reading struct {
	Timestamp   time.Time `json:"timestamp"`
	RainfallMM  float64   `json:"rainfall_mm"`
	RiverLevelM float64   `json:"river_level_m"`
	Station     string    `json:"station,omitempty"`
	Source      string    `json:"source,omitempty"`
}

// Forecast is a published river-level prediction two intervals ahead of the
// newest reading it was computed from.
type Forecast struct {
	Station     string    `json:"station,omitempty"`
	IssuedAt    time.Time `json:"issued_at"`
	BasedOn     time.Time `json:"based_on"`
	RiverLevelM float64   `json:"river_level_m"`
	Confidence  float64   `json:"confidence"`
	Simulated   bool      `json:"simulated"`
}
