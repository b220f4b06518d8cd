package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"FloodCast/internal/domain/models"
	domrepo "FloodCast/internal/domain/repository"
	svccache "FloodCast/internal/service/cache"
	svcmetrics "FloodCast/internal/service/metrics"
	"FloodCast/internal/services/features"
	"FloodCast/internal/services/forecast"
	applogger "FloodCast/pkg/logger"
)

// ForecastService produces river-level forecasts from stored gauge readings,
// caches them, and pushes them to the forecast topic.
type ForecastService struct {
	store     domrepo.ReadingStore
	model     *forecast.Model
	publisher domrepo.Publisher
	cache     svccache.BytesCache
	metrics   domrepo.Metrics
	l         *applogger.Logger

	station  string
	res      domrepo.Resolution
	lookback int
	ttl      time.Duration
	timeout  time.Duration
}

type ForecastServiceParams struct {
	Station    string
	Resolution domrepo.Resolution
	Lookback   int
	CacheTTL   time.Duration
}

func NewForecastService(store domrepo.ReadingStore, model *forecast.Model, publisher domrepo.Publisher, cache svccache.BytesCache, metrics domrepo.Metrics, l *applogger.Logger, p ForecastServiceParams) *ForecastService {
	if p.Lookback <= 0 {
		p.Lookback = 48
	}
	if p.CacheTTL <= 0 {
		p.CacheTTL = 5 * time.Minute
	}
	if !domrepo.IsValidResolution(p.Resolution) {
		p.Resolution = domrepo.DefaultResolution()
	}
	return &ForecastService{
		store:     store,
		model:     model,
		publisher: publisher,
		cache:     cache,
		metrics:   metrics,
		l:         l,
		station:   p.Station,
		res:       p.Resolution,
		lookback:  p.Lookback,
		ttl:       p.CacheTTL,
		timeout:   10 * time.Second,
	}
}

// Latest returns the cached forecast for the service's station, computing a
// fresh one on cache miss.
func (s *ForecastService) Latest(ctx context.Context) (*models.Forecast, error) {
	key := fmt.Sprintf("forecast:%s:%s", s.station, s.res)
	if s.cache != nil {
		if b, ok, err := s.cache.GetBytes(ctx, key); err == nil && ok {
			var f models.Forecast
			if err := json.Unmarshal(b, &f); err == nil {
				return &f, nil
			}
		}
	}

	f, err := s.compute(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if b, err := json.Marshal(f); err == nil {
			_ = s.cache.SetBytes(ctx, key, b, s.ttl)
		}
	}
	return f, nil
}

func (s *ForecastService) compute(ctx context.Context) (*models.Forecast, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	readings, err := s.store.GetLatestNReadings(ctx, s.station, s.lookback, s.res)
	if err != nil {
		s.metrics.RecordError("forecast_fetch")
		svcmetrics.ForecastErrors.WithLabelValues("fetch").Inc()
		return nil, err
	}
	seqLen := s.model.Config().SequenceLength
	if len(readings) < seqLen {
		s.metrics.RecordError("forecast_short_history")
		return nil, fmt.Errorf("station %s: need %d readings at %s resolution, have %d", s.station, seqLen, s.res, len(readings))
	}

	s.metrics.RecordRiverLevel(s.station, features.LastLevel(readings))

	rain, level := features.ReadingsToSeries(readings)
	x, err := s.model.PrepareWindow(rain, level)
	if err != nil {
		s.metrics.RecordError("forecast_window")
		return nil, err
	}
	res, err := s.model.Predict(x, forecast.PredictOptions{
		Mode:             forecast.Deterministic,
		ReturnConfidence: true,
	})
	if err != nil {
		s.metrics.RecordError("forecast_predict")
		svcmetrics.ForecastErrors.WithLabelValues("predict").Inc()
		return nil, err
	}
	s.metrics.RecordLatency("forecast_compute_seconds", time.Since(start).Seconds())
	svcmetrics.ForecastLatency.WithLabelValues("predict").Observe(time.Since(start).Seconds())

	conf := 0.0
	if len(res.Confidence) > 0 {
		conf = res.Confidence[0]
	}
	svcmetrics.ForecastConfidence.WithLabelValues(s.station).Set(conf)
	f := &models.Forecast{
		Station:     s.station,
		IssuedAt:    time.Now().UTC(),
		BasedOn:     readings[len(readings)-1].Timestamp,
		RiverLevelM: res.Levels[0],
		Confidence:  conf,
		Simulated:   res.Simulated,
	}
	if s.l != nil {
		s.l.Info("forecast computed",
			applogger.String("station", s.station),
			applogger.Any("river_level_m", f.RiverLevelM),
			applogger.Any("confidence", f.Confidence),
			applogger.Bool("simulated", f.Simulated),
		)
	}
	return f, nil
}

// PublishLatest computes (or reuses) the latest forecast and publishes it.
func (s *ForecastService) PublishLatest(ctx context.Context) error {
	f, err := s.Latest(ctx)
	if err != nil {
		return err
	}
	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.Publish(ctx, f); err != nil {
		s.metrics.RecordError("forecast_publish")
		return err
	}
	s.metrics.RecordMessageSent("kafka", s.station)
	return nil
}
