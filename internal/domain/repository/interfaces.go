package repository

import (
	"context"
	"time"

	"FloodCast/internal/domain/models"
)

type Publisher interface {
	Publish(ctx context.Context, f *models.Forecast) error
	Close() error
}

type Storage interface {
	Init(ctx context.Context) error // ensure tables, health checks
	Store(ctx context.Context, r *models.Reading) error
	StoreBatch(ctx context.Context, readings []*models.Reading) error
	Query(ctx context.Context, station string, from, to time.Time, limit int) ([]*models.Reading, error)
	Health(ctx context.Context) error // ping
	Close() error
}

type Metrics interface {
	RecordMessageSent(backend, station string)
	RecordError(kind string)
	RecordRiverLevel(station string, level float64)
	RecordLatency(op string, seconds float64)
}
