package repository

import (
	"context"
	"fmt"
	"time"

	"FloodCast/internal/domain/models"
	"FloodCast/internal/domain/repository"
	pkgch "FloodCast/pkg/clickhouse"
	pkgkafka "FloodCast/pkg/kafka"
)

var readingCols = []string{"ts", "station", "rainfall_mm", "river_level_m", "source", "event_id"}

// ClickHouseStorage implements Storage for ClickHouse.
type ClickHouseStorage struct {
	ch    *pkgch.Client
	table string
}

// NewClickHouseStorage creates ClickHouse storage over the given qualified table.
func NewClickHouseStorage(ch *pkgch.Client, table string) repository.Storage {
	return &ClickHouseStorage{ch: ch, table: table}
}

func (s *ClickHouseStorage) Init(ctx context.Context) error {
	return nil // Schema init in pkg
}

func (s *ClickHouseStorage) Store(ctx context.Context, r *models.Reading) error {
	return s.StoreBatch(ctx, []*models.Reading{r})
}

func (s *ClickHouseStorage) StoreBatch(ctx context.Context, readings []*models.Reading) error {
	if len(readings) == 0 {
		return nil
	}
	const chunkSize = 2000
	for start := 0; start < len(readings); start += chunkSize {
		end := start + chunkSize
		if end > len(readings) {
			end = len(readings)
		}

		rows := make([][]interface{}, 0, end-start)
		for _, r := range readings[start:end] {
			if r == nil || r.Station == "" || r.Timestamp.IsZero() {
				continue
			}
			rows = append(rows, readingRow(r))
		}
		if err := s.ch.InsertRows(ctx, s.table, readingCols, rows); err != nil {
			return err
		}
	}
	return nil
}

// readingRow orders a reading's fields to match readingCols. The event id is
// an idempotency key derived from station+timestamp.
func readingRow(r *models.Reading) []interface{} {
	eventID := fmt.Sprintf("%s-%d", r.Station, r.Timestamp.Unix())
	return []interface{}{r.Timestamp, r.Station, r.RainfallMM, r.RiverLevelM, r.Source, eventID}
}

func (s *ClickHouseStorage) Query(ctx context.Context, station string, from, to time.Time, limit int) ([]*models.Reading, error) {
	q := fmt.Sprintf("SELECT station, ts, rainfall_mm, river_level_m, source FROM %s WHERE station = ? AND ts >= ? AND ts <= ? ORDER BY ts DESC LIMIT ?", s.table)
	rows, err := s.ch.DB().QueryContext(ctx, q, station, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []*models.Reading
	for rows.Next() {
		var r models.Reading
		if err := rows.Scan(&r.Station, &r.Timestamp, &r.RainfallMM, &r.RiverLevelM, &r.Source); err != nil {
			return nil, err
		}
		readings = append(readings, &r)
	}
	return readings, rows.Err()
}

func (s *ClickHouseStorage) Health(ctx context.Context) error {
	return s.ch.Health(ctx)
}

func (s *ClickHouseStorage) Close() error {
	return nil // Managed by pkg
}

// KafkaPublisher implements Publisher for Kafka.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	forecast *pkgkafka.TopicProducer
}

// NewKafkaPublisher creates a publisher bound to the forecast topic.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) repository.Publisher {
	return &KafkaPublisher{producer: producer, forecast: producer.Topic(topic)}
}

func (p *KafkaPublisher) Publish(ctx context.Context, f *models.Forecast) error {
	return p.forecast.Publish(ctx, []byte(f.Station), map[string]interface{}{
		"station":       f.Station,
		"issued_at":     f.IssuedAt.Unix(),
		"based_on":      f.BasedOn.Unix(),
		"river_level_m": f.RiverLevelM,
		"confidence":    f.Confidence,
		"simulated":     f.Simulated,
	})
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
