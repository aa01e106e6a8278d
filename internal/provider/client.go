// Package provider fetches current conditions from OpenWeatherMap.
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"

	"weather-alerts/internal/models"
	"weather-alerts/pkg/logging"
	"weather-alerts/pkg/metrics"
)

const maxBodyBytes = 1 << 20

// Fetcher returns the provider payload for one city.
type Fetcher interface {
	Fetch(ctx context.Context, city string) (*models.ProviderResponse, error)
}

// Config holds the client settings.
type Config struct {
	BaseURL string
	APIKey  string
	Units   string
	Timeout time.Duration
}

// Client calls the current-weather endpoint through a circuit breaker.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// statusError marks 5xx and 429 answers as failures for the breaker.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("upstream returned %d", e.code)
}

// NewClient builds a client. A nil httpClient gets one with cfg.Timeout.
func NewClient(cfg Config, httpClient *http.Client, logger *logging.StructuredLogger, m *metrics.Collector) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Units == "" {
		cfg.Units = "metric"
	}

	c := &Client{
		cfg:     cfg,
		http:    httpClient,
		logger:  logger,
		metrics: m,
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "openweathermap",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn(context.Background(), "[PROVIDER_BREAKER] Circuit breaker state changed", logging.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})
	return c
}

// Fetch requests the current conditions for city. Any failure, including an
// open breaker, comes back as *models.ProviderError.
func (c *Client) Fetch(ctx context.Context, city string) (*models.ProviderResponse, error) {
	outcome := "ok"
	timer := c.metrics.NewTimer(prometheus.ObserverFunc(func(seconds float64) {
		if c.metrics != nil {
			c.metrics.ProviderRequestDuration.WithLabelValues(outcome).Observe(seconds)
		}
	}))
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.do(ctx, city)
	})
	if err != nil {
		outcome = "error"
	}
	timer.ObserveDuration()

	var serr *statusError
	switch {
	case err == nil:
	case errors.As(err, &serr):
		// The provider still explains itself in cod/message.
		if resp, decodeErr := models.DecodeProviderResponse(body); decodeErr == nil && resp.Message != "" {
			return nil, &models.ProviderError{City: city, Code: serr.code, Message: resp.Message}
		}
		return nil, &models.ProviderError{City: city, Code: serr.code, Message: http.StatusText(serr.code)}
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, &models.ProviderError{City: city, Message: "provider unavailable", Err: err}
	default:
		return nil, &models.ProviderError{City: city, Message: "request failed", Err: err}
	}

	resp, err := models.DecodeProviderResponse(body)
	if err != nil {
		return nil, &models.ProviderError{City: city, Message: "invalid response body", Err: err}
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, city string) ([]byte, error) {
	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	q := u.Query()
	q.Set("q", city)
	q.Set("appid", c.cfg.APIKey)
	q.Set("units", c.cfg.Units)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// url.Error carries the query string, which holds the key.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			return nil, fmt.Errorf("%s request: %w", uerr.Op, uerr.Err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return body, &statusError{code: resp.StatusCode}
	}
	return body, nil
}
