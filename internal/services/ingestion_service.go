package services

import (
	"context"
	"time"

	"weather-alerts/internal/models"
	"weather-alerts/internal/provider"
	"weather-alerts/internal/repository"
	"weather-alerts/pkg/logging"
	"weather-alerts/pkg/metrics"
)

// Ingestion stages a city can fail at.
const (
	StageFetch = "fetch"
	StageMap   = "map"
	StageStore = "store"
)

// IngestionService polls the provider and appends one row per city.
type IngestionService struct {
	fetcher      provider.Fetcher
	store        repository.Store
	logger       *logging.StructuredLogger
	metrics      *metrics.Collector
	fetchTimeout time.Duration
	storeTimeout time.Duration
	now          func() time.Time
}

// IngestionOptions tunes per-call timeouts. Zero values mean no extra bound.
type IngestionOptions struct {
	FetchTimeout time.Duration
	StoreTimeout time.Duration
}

// CityResult is the outcome for one city. Err is nil on success.
type CityResult struct {
	City    string
	Reading *models.WeatherReading
	Stage   string
	Err     error
}

// IngestionResult contains ingestion statistics
type IngestionResult struct {
	Cities    []CityResult
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(fetcher provider.Fetcher, store repository.Store, opts IngestionOptions, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *IngestionService {
	return &IngestionService{
		fetcher:      fetcher,
		store:        store,
		logger:       logger,
		metrics:      metricsCollector,
		fetchTimeout: opts.FetchTimeout,
		storeTimeout: opts.StoreTimeout,
		now:          time.Now,
	}
}

// Run ingests every city in order. A failing city is logged and recorded in the
// result; the batch always continues with the next one.
func (s *IngestionService) Run(ctx context.Context, cities []string) *IngestionResult {
	startTime := time.Now()

	s.logger.Info(ctx, "[INGEST_START] Starting weather ingestion", logging.Fields{
		"city_count": len(cities),
		"backend":    s.store.Backend(),
	})

	result := &IngestionResult{
		Cities: make([]CityResult, 0, len(cities)),
	}

	for _, city := range cities {
		cityLog := s.logger.WithFields(logging.Fields{"city": city})
		cr := s.ingestCity(ctx, city)
		result.Cities = append(result.Cities, cr)

		if cr.Err != nil {
			result.Failed++
			if s.metrics != nil {
				s.metrics.RecordCityFailure(cr.Stage)
			}
			cityLog.Error(ctx, "[INGEST_CITY_ERROR] City ingestion failed", logging.Fields{
				"stage":     cr.Stage,
				"transient": models.IsTransient(cr.Err),
			}, cr.Err)
			continue
		}

		result.Succeeded++
		if s.metrics != nil {
			s.metrics.ReadingsIngestedTotal.Inc()
		}
		cityLog.Info(ctx, "[INGEST_CITY_SUCCESS] Reading stored", logging.Fields{
			"main":        cr.Reading.Main,
			"temperature": cr.Reading.Temperature,
		})
	}

	result.Duration = time.Since(startTime)
	if s.metrics != nil {
		s.metrics.IngestionDuration.Observe(result.Duration.Seconds())
	}

	s.logger.Info(ctx, "[INGEST_COMPLETE] Weather ingestion completed", logging.Fields{
		"succeeded":        result.Succeeded,
		"failed":           result.Failed,
		"duration_seconds": result.Duration.Seconds(),
	})

	return result
}

func (s *IngestionService) ingestCity(ctx context.Context, city string) CityResult {
	fetchCtx, cancel := withOptionalTimeout(ctx, s.fetchTimeout)
	resp, err := s.fetcher.Fetch(fetchCtx, city)
	cancel()
	if err != nil {
		return CityResult{City: city, Stage: StageFetch, Err: err}
	}

	reading, err := resp.ToReading(city, s.now())
	if err != nil {
		return CityResult{City: city, Stage: StageMap, Err: err}
	}

	storeCtx, cancel := withOptionalTimeout(ctx, s.storeTimeout)
	err = s.store.AppendReading(storeCtx, reading)
	cancel()
	if err != nil {
		return CityResult{City: city, Reading: reading, Stage: StageStore, Err: err}
	}

	return CityResult{City: city, Reading: reading}
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
