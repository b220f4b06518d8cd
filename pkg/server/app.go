package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"FloodCast/internal/domain/repository"
	"FloodCast/internal/handler/api"
	"FloodCast/internal/usecase"
	pkgch "FloodCast/pkg/clickhouse"
	"FloodCast/pkg/config"
	xhttp "FloodCast/pkg/http"
	pkgkafka "FloodCast/pkg/kafka"
	applogger "FloodCast/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	chClient   *pkgch.Client
	storage    repository.Storage
	publisher  repository.Publisher
	svc        *usecase.ForecastService
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	chClient *pkgch.Client,
	storage repository.Storage,
	publisher repository.Publisher,
	svc *usecase.ForecastService,
) *App {
	return &App{
		cfg:       cfg,
		l:         l,
		consumer:  consumer,
		kh:        kh,
		chClient:  chClient,
		storage:   storage,
		publisher: publisher,
		svc:       svc,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	health := api.NewHealthHandler(a.l, a.storage)
	a.httpServer = xhttp.NewServer(health,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsLogger(a.l, time.Second),
	)

	// Start ingest consumer if configured
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.l.Info("kafka consumer started",
			applogger.String("topic", a.kh.Topic()),
			applogger.Strings("brokers", a.cfg.Kafka.Brokers),
		)
	}

	// Periodic forecast publication
	if a.svc != nil {
		go a.forecastLoop(ctx)
	}

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

func (a *App) forecastLoop(ctx context.Context) {
	interval := a.cfg.Forecast.Interval
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	a.l.Info("forecast loop started",
		applogger.String("station", a.cfg.Forecast.Station),
		applogger.Duration("interval", interval),
	)

	publish := func() {
		if err := a.svc.PublishLatest(ctx); err != nil {
			a.l.Warn("forecast publish failed", applogger.Error(err))
		}
	}
	publish()

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			publish()
		}
	}
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.l.Error("http shutdown error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.l.Warn("publisher close error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}
