package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Collector provides application metrics collection
type Collector struct {
	// API Metrics
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec

	// Ingestion Metrics
	ReadingsIngestedTotal prometheus.Counter
	IngestionDuration     prometheus.Histogram
	CityFailuresTotal     *prometheus.CounterVec

	// Provider Metrics
	ProviderRequestDuration *prometheus.HistogramVec

	// Store Metrics
	StoreOpDuration  *prometheus.HistogramVec
	StoreErrorsTotal *prometheus.CounterVec
	DBConnectionPool *prometheus.GaugeVec

	// Alert Metrics
	AlertEvaluationsTotal *prometheus.CounterVec
	AlertMatchedRecords   prometheus.Gauge
	NotificationsTotal    *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewCollector registers the collector on the default Prometheus registry.
func NewCollector(namespace string) *Collector {
	return NewCollectorWithRegistry(namespace, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewCollectorWithRegistry registers on reg. Tests pass a fresh prometheus.NewRegistry().
func NewCollectorWithRegistry(namespace string, reg prometheus.Registerer, gatherer prometheus.Gatherer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		APIRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of API requests by endpoint, method, and status",
			},
			[]string{"endpoint", "method", "status"},
		),

		APIRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 15.0},
			},
			[]string{"endpoint"},
		),

		ReadingsIngestedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "readings_ingested_total",
				Help:      "Total number of weather readings appended to the store",
			},
		),

		IngestionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ingestion_duration_seconds",
				Help:      "Duration of a full ingestion run in seconds",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
		),

		CityFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "city_failures_total",
				Help:      "Per-city ingestion failures by stage",
			},
			[]string{"stage"}, // "fetch", "map", "append"
		),

		ProviderRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_request_duration_seconds",
				Help:      "Weather provider request duration in seconds by outcome",
				Buckets:   []float64{0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0, 10.0},
			},
			[]string{"outcome"},
		),

		StoreOpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_operation_duration_seconds",
				Help:      "Store operation duration in seconds by backend and operation",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
			},
			[]string{"backend", "op"},
		),

		StoreErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_errors_total",
				Help:      "Total number of store errors by backend and operation",
			},
			[]string{"backend", "op"},
		),

		DBConnectionPool: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connection_pool",
				Help:      "Database connection pool statistics",
			},
			[]string{"state"}, // "in_use", "idle", "total"
		),

		AlertEvaluationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alert_evaluations_total",
				Help:      "Alert evaluations by result",
			},
			[]string{"result"}, // "triggered", "clear", "skipped"
		),

		AlertMatchedRecords: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "alert_matched_records",
				Help:      "Number of records that matched the trigger set in the last evaluation",
			},
		),

		NotificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Notification attempts by channel and outcome",
			},
			[]string{"channel", "outcome"},
		),

		gatherer: gatherer,
	}
}

// Timer provides timing functionality for operations
type Timer struct {
	start    time.Time
	observer prometheus.Observer
}

// NewTimer starts a timer that reports to histogram. A nil Collector or nil
// histogram is allowed; the timer then only measures.
func (c *Collector) NewTimer(histogram prometheus.Observer) *Timer {
	return &Timer{
		start:    time.Now(),
		observer: histogram,
	}
}

// ObserveDuration records the elapsed time since timer creation
func (t *Timer) ObserveDuration() time.Duration {
	duration := time.Since(t.start)
	if t.observer != nil {
		t.observer.Observe(duration.Seconds())
	}
	return duration
}

// RecordAPIRequest increments API request counter
func (c *Collector) RecordAPIRequest(endpoint, method, status string) {
	c.APIRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

// RecordCityFailure increments the per-stage city failure counter
func (c *Collector) RecordCityFailure(stage string) {
	c.CityFailuresTotal.WithLabelValues(stage).Inc()
}

// RecordStoreError increments the store error counter
func (c *Collector) RecordStoreError(backend, op string) {
	c.StoreErrorsTotal.WithLabelValues(backend, op).Inc()
}

// RecordEvaluation records the outcome of one alert evaluation
func (c *Collector) RecordEvaluation(result string, matched int) {
	c.AlertEvaluationsTotal.WithLabelValues(result).Inc()
	c.AlertMatchedRecords.Set(float64(matched))
}

// RecordNotification records a notification attempt
func (c *Collector) RecordNotification(channel string, err error) {
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	c.NotificationsTotal.WithLabelValues(channel, outcome).Inc()
}

// UpdateDBConnectionPool updates database connection pool metrics
func (c *Collector) UpdateDBConnectionPool(inUse, idle, total int) {
	c.DBConnectionPool.WithLabelValues("in_use").Set(float64(inUse))
	c.DBConnectionPool.WithLabelValues("idle").Set(float64(idle))
	c.DBConnectionPool.WithLabelValues("total").Set(float64(total))
}

// Push sends everything in the collector's registry to a Pushgateway. Batch
// binaries call it once before exiting; an empty url is a no-op.
func (c *Collector) Push(ctx context.Context, url, job string) error {
	if url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(c.gatherer).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}
