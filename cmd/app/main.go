package main

import (
	"context"
	"flag"
	"log"
	"os"

	"FloodCast/internal/di"
	"FloodCast/pkg/config"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config/config.yaml", "config file path")
	mode := flag.String("mode", "serve", "run mode: serve or train")
	flag.Parse()

	// Load config
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s mode=%s station=%s", cfg.Environment, *mode, cfg.Forecast.Station)

	switch *mode {
	case "train":
		runner, err := di.InitializeTrainer(cfg)
		if err != nil {
			log.Fatalf("trainer initialization failed: %v", err)
		}
		if err := runner.Run(context.Background()); err != nil {
			log.Printf("training error: %v", err)
			os.Exit(1)
		}
		log.Printf("training complete: bundle saved to %s", cfg.Forecast.ModelPath)

	case "serve":
		app, err := di.InitializeApp(cfg)
		if err != nil {
			log.Fatalf("app initialization failed: %v", err)
		}

		log.Printf("clickhouse: connected and schema ready - db: %s", cfg.ClickHouse.Database)
		log.Printf("kafka: connected brokers=%v readings=%s forecasts=%s", cfg.Kafka.Brokers, cfg.Kafka.ReadingsTopic, cfg.Kafka.ForecastTopic)

		// Run application (blocks until signal)
		if err := app.Run(); err != nil {
			log.Printf("app error: %v", err)
			os.Exit(1)
		}

	default:
		log.Fatalf("unknown mode %q (want serve or train)", *mode)
	}
}
