package usecase

import (
	"context"
	"encoding/json"
	"time"

	"FloodCast/internal/domain/models"
	domrepo "FloodCast/internal/domain/repository"
	pkgkafka "FloodCast/pkg/kafka"
)

// KafkaReadingsHandler consumes gauge readings from Kafka and writes to storage.
type KafkaReadingsHandler struct {
	topic   string
	storage domrepo.Storage
	metrics domrepo.Metrics
}

func NewKafkaReadingsHandler(topic string, storage domrepo.Storage, metrics domrepo.Metrics) *KafkaReadingsHandler {
	return &KafkaReadingsHandler{topic: topic, storage: storage, metrics: metrics}
}

func (h *KafkaReadingsHandler) Topic() string { return h.topic }

// incoming message schema: {station, t, rain_mm, level_m, source}
func (h *KafkaReadingsHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Station string  `json:"station"`
		T       int64   `json:"t"`
		RainMM  float64 `json:"rain_mm"`
		LevelM  float64 `json:"level_m"`
		Source  string  `json:"source"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if m.T > 1e11 { // ms
		m.T = m.T / 1000
	}
	// E2E latency from event time to now (approx)
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(time.Unix(m.T, 0)).Seconds())

	start := time.Now()
	err := h.storage.Store(ctx, &models.Reading{
		Station:     m.Station,
		Timestamp:   time.Unix(m.T, 0).UTC(),
		RainfallMM:  m.RainMM,
		RiverLevelM: m.LevelM,
		Source:      m.Source,
	})
	h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordMessageSent("clickhouse", m.Station)
	h.metrics.RecordRiverLevel(m.Station, m.LevelM)
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaReadingsHandler)(nil)
