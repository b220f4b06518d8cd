package di

import (
	"context"
	"fmt"
	"time"

	"FloodCast/internal/domain/repository"
	internalrepo "FloodCast/internal/repository"
	svccache "FloodCast/internal/service/cache"
	svcmetrics "FloodCast/internal/service/metrics"
	"FloodCast/internal/services/forecast"
	"FloodCast/internal/usecase"
	pkgch "FloodCast/pkg/clickhouse"
	"FloodCast/pkg/config"
	pkgkafka "FloodCast/pkg/kafka"
	applogger "FloodCast/pkg/logger"
	"FloodCast/pkg/metrics"
	"FloodCast/pkg/server"
)

// ProvideLogger creates the application logger. In production the warn/error
// stream is aggregated and shipped to the logs topic when one is configured.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	format := "console"
	if cfg.Environment == "production" {
		format = "json"
	}
	l, err := applogger.New(&applogger.Config{Level: "info", Format: format, Output: "stdout"})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Kafka.LogsTopic != "" && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.LogsTopic,
			Publisher:      &kafkaLogPublisher{producer: producer},
		})
	}
	return l, nil
}

// kafkaLogPublisher adapts the Kafka producer to the log collector sink.
type kafkaLogPublisher struct {
	producer *pkgkafka.Producer
}

func (p *kafkaLogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	// Initialize schema
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db := cfg.ClickHouse.Database
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + db,
		"CREATE TABLE IF NOT EXISTS " + db + `.gauge_readings (
            ts DateTime,
            station String,
            rainfall_mm Float64,
            river_level_m Float64,
            source String,
            event_id String
        ) ENGINE=ReplacingMergeTree ORDER BY (station, ts)`,
	}); err != nil {
		_ = client.Close() // cannot log here (DI layer no logger); propagate error
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	return producer, nil
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	svcmetrics.Register()
	return metrics.New()
}

// ProvideReadingStorage creates the ClickHouse storage repository.
func ProvideReadingStorage(chClient *pkgch.Client, cfg *config.Config) repository.Storage {
	return internalrepo.NewClickHouseStorage(chClient, cfg.ClickHouse.Database+".gauge_readings")
}

// ProvideForecastPublisher creates the Kafka forecast publisher.
func ProvideForecastPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.ForecastTopic)
}

// ProvideKafkaReadingsHandler registers the handler for the readings topic.
func ProvideKafkaReadingsHandler(store repository.Storage, m repository.Metrics, cfg *config.Config) *usecase.KafkaReadingsHandler {
	return usecase.NewKafkaReadingsHandler(cfg.Kafka.ReadingsTopic, store, m)
}

// ProvideReadingStore creates the read-side reading store.
func ProvideReadingStore(chClient *pkgch.Client, cfg *config.Config, l *applogger.Logger) repository.ReadingStore {
	store := internalrepo.NewCHReadingStore(chClient, cfg.ClickHouse.Database+".gauge_readings")
	store.SetLogger(l)
	return store
}

// ProvideCache selects the forecast cache backend from configuration.
func ProvideCache(cfg *config.Config) svccache.BytesCache {
	if cfg.Cache.Type == "redis" {
		return svccache.NewRedisCache(svccache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
	}
	return svccache.NewTTLCache()
}

// ProvideForecastModel builds the forecaster, loading a persisted bundle
// when one exists at the configured model path.
func ProvideForecastModel(cfg *config.Config, l *applogger.Logger) (*forecast.Model, error) {
	return forecast.New(forecast.Config{
		SequenceLength: cfg.Forecast.SequenceLength,
		LSTMUnits:      cfg.Forecast.LSTMUnits,
		DropoutRate:    cfg.Forecast.DropoutRate,
		ModelPath:      cfg.Forecast.ModelPath,
		Seed:           cfg.Forecast.Seed,
	}, forecast.WithLogger(l))
}

// ProvideForecastService creates the forecast use case.
func ProvideForecastService(
	store repository.ReadingStore,
	model *forecast.Model,
	pub repository.Publisher,
	cache svccache.BytesCache,
	m repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.ForecastService {
	return usecase.NewForecastService(store, model, pub, cache, m, l, usecase.ForecastServiceParams{
		Station:    cfg.Forecast.Station,
		Resolution: repository.NormalizeResolution(cfg.Forecast.Resolution),
		Lookback:   cfg.Forecast.LookbackRows,
		CacheTTL:   cfg.Forecast.CacheTTL,
	})
}

// ProvideTrainingRunner creates the training use case.
func ProvideTrainingRunner(
	store repository.ReadingStore,
	model *forecast.Model,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.TrainingRunner {
	return usecase.NewTrainingRunner(store, model, l, usecase.TrainingRunnerParams{
		Station:        cfg.Forecast.Station,
		Resolution:     repository.NormalizeResolution(cfg.Forecast.Resolution),
		HistoryRows:    cfg.Training.HistoryRows,
		Epochs:         cfg.Training.Epochs,
		BatchSize:      cfg.Training.BatchSize,
		CheckpointPath: cfg.Training.CheckpointPath,
		ModelPath:      cfg.Forecast.ModelPath,
		Timeout:        cfg.Training.Timeout,
	})
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaReadingsHandler,
	chClient *pkgch.Client,
	storage repository.Storage,
	pub repository.Publisher,
	svc *usecase.ForecastService,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	return server.New(cfg, l, consumer, kh, chClient, storage, pub, svc)
}
