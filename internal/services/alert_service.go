package services

import (
	"context"
	"time"

	"weather-alerts/internal/alerting"
	"weather-alerts/internal/models"
	"weather-alerts/internal/notify"
	"weather-alerts/internal/repository"
	"weather-alerts/pkg/logging"
	"weather-alerts/pkg/metrics"
)

// Evaluation results as recorded in metrics.
const (
	ResultTriggered = "triggered"
	ResultClear     = "clear"
	ResultSkipped   = "skipped"
)

// AlertService reads the recent window, evaluates it and fans alerts out.
type AlertService struct {
	store        repository.Store
	evaluator    *alerting.Evaluator
	notifiers    []notify.Notifier
	logger       *logging.StructuredLogger
	metrics      *metrics.Collector
	storeTimeout time.Duration
}

// DeliveryResult is the outcome on one channel.
type DeliveryResult struct {
	Channel string
	Err     error
}

// AlertRunResult describes one alerting run. When StoreErr is set nothing was
// evaluated and nothing was sent.
type AlertRunResult struct {
	Records    []models.AlertRecord
	Decision   models.AlertDecision
	StoreErr   error
	Message    *alerting.Message
	Deliveries []DeliveryResult
}

// Result names the outcome for logs and metrics.
func (r *AlertRunResult) Result() string {
	switch {
	case r.StoreErr != nil:
		return ResultSkipped
	case r.Decision.Triggered:
		return ResultTriggered
	default:
		return ResultClear
	}
}

// NewAlertService creates an alert service. notifiers may be empty for read-only use.
func NewAlertService(store repository.Store, evaluator *alerting.Evaluator, notifiers []notify.Notifier, storeTimeout time.Duration, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *AlertService {
	return &AlertService{
		store:        store,
		evaluator:    evaluator,
		notifiers:    notifiers,
		logger:       logger,
		metrics:      metricsCollector,
		storeTimeout: storeTimeout,
	}
}

// Run evaluates once and, when triggered, notifies every channel. Store and
// delivery failures are logged and reported in the result, never returned.
func (s *AlertService) Run(ctx context.Context) *AlertRunResult {
	s.logger.Info(ctx, "[ALERT_START] Starting alert evaluation", logging.Fields{
		"backend":  s.store.Backend(),
		"lookback": s.evaluator.Lookback(),
	})

	result := s.evaluate(ctx, true)
	if result.StoreErr != nil || !result.Decision.Triggered {
		return result
	}

	msg := alerting.ComposeMessage(result.Decision)
	result.Message = &msg

	for _, n := range s.notifiers {
		err := n.Send(ctx, msg)
		result.Deliveries = append(result.Deliveries, DeliveryResult{Channel: n.Name(), Err: err})
		if s.metrics != nil {
			s.metrics.RecordNotification(n.Name(), err)
		}
		if err != nil {
			s.logger.Error(ctx, "[ALERT_NOTIFY_ERROR] Notification failed", logging.Fields{
				"channel":   n.Name(),
				"transient": models.IsTransient(err),
			}, err)
			continue
		}
		s.logger.Info(ctx, "[ALERT_SENT] Alert delivered", logging.Fields{
			"channel": n.Name(),
			"matches": len(result.Decision.Matches),
		})
	}

	return result
}

// Preview reads and evaluates without sending anything.
func (s *AlertService) Preview(ctx context.Context) (*AlertRunResult, error) {
	result := s.evaluate(ctx, false)
	if result.StoreErr != nil {
		return result, result.StoreErr
	}
	if result.Decision.Triggered {
		msg := alerting.ComposeMessage(result.Decision)
		result.Message = &msg
	}
	return result, nil
}

// evaluate reads the window and applies the evaluator. Only real runs are
// counted in metrics.
func (s *AlertService) evaluate(ctx context.Context, count bool) *AlertRunResult {
	result := &AlertRunResult{}

	readCtx, cancel := withOptionalTimeout(ctx, s.storeTimeout)
	records, err := s.store.Tail(readCtx, s.evaluator.Lookback())
	cancel()
	if err != nil {
		result.StoreErr = err
		if count {
			s.record(result)
		}
		s.logger.Error(ctx, "[ALERT_STORE_ERROR] Could not read recent records; skipping evaluation", logging.Fields{
			"backend":   s.store.Backend(),
			"transient": models.IsTransient(err),
		}, err)
		return result
	}

	result.Records = records
	result.Decision = s.evaluator.Evaluate(records)
	if count {
		s.record(result)
	}

	s.logger.Info(ctx, "[ALERT_EVALUATED] Evaluation complete", logging.Fields{
		"records":   len(records),
		"triggered": result.Decision.Triggered,
		"matches":   len(result.Decision.Matches),
	})
	if !result.Decision.Triggered {
		s.logger.Info(ctx, "[ALERT_CLEAR] No alert needed", nil)
	}

	return result
}

func (s *AlertService) record(result *AlertRunResult) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordEvaluation(result.Result(), len(result.Decision.Matches))
}
