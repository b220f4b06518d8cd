package repository

import (
	"context"
	"time"

	"FloodCast/internal/domain/models"
)

type Resolution string

const (
	Res15m Resolution = "15m"
	Res1h  Resolution = "1h"
	Res1d  Resolution = "1d"
)

// ReadingStore provides read-only access to gauge readings for forecasting.
type ReadingStore interface {
	GetReadings(ctx context.Context, station string, from, to time.Time, res Resolution) ([]models.Reading, error)
	GetLatestNReadings(ctx context.Context, station string, n int, res Resolution) ([]models.Reading, error)
}

// IsValidResolution returns true if res is a supported resolution.
func IsValidResolution(res Resolution) bool {
	switch res {
	case Res15m, Res1h, Res1d:
		return true
	default:
		return false
	}
}

// Step returns the bucket width of the resolution.
func (r Resolution) Step() time.Duration {
	switch r {
	case Res15m:
		return 15 * time.Minute
	case Res1d:
		return 24 * time.Hour
	default:
		return time.Hour
	}
}

// DefaultResolution returns the default resolution.
func DefaultResolution() Resolution { return Res1h }

// NormalizeResolution converts raw string to a valid resolution (or default).
func NormalizeResolution(s string) Resolution {
	if s == "" {
		return DefaultResolution()
	}
	res := Resolution(s)
	if IsValidResolution(res) {
		return res
	}
	return DefaultResolution()
}
