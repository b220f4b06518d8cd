//go:build wireinject
// +build wireinject

package di

import (
	"FloodCast/internal/usecase"
	"FloodCast/pkg/config"
	"FloodCast/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideLogger,

		// Repositories
		ProvideReadingStorage,
		ProvideForecastPublisher,
		ProvideReadingStore,
		ProvideCache,

		// Use cases
		ProvideForecastModel,
		ProvideKafkaReadingsHandler,
		ProvideForecastService,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}

// InitializeTrainer wires the offline training pipeline.
func InitializeTrainer(cfg *config.Config) (*usecase.TrainingRunner, error) {
	wire.Build(
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideReadingStore,
		ProvideForecastModel,
		ProvideTrainingRunner,
	)
	return &usecase.TrainingRunner{}, nil
}
