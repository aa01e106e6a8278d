package bootstrap

import (
	"context"

	"weather-alerts/internal/config"
	"weather-alerts/internal/models"
	"weather-alerts/internal/services"
	"weather-alerts/pkg/logging"
)

// Pipeline names used in logs, run contexts and Pushgateway jobs.
const (
	PipelineIngest = "ingest"
	PipelineAlert  = "alert"
)

// RunIngest runs one ingestion pass over the configured cities. Store connection
// and per-city failures are logged; the returned result is nil only when the
// store could not be opened.
func (rt *Runtime) RunIngest(ctx context.Context) *services.IngestionResult {
	ctx = NewRunContext(ctx, PipelineIngest)
	defer rt.PushMetrics(ctx, "weather_ingester")

	store, err := rt.OpenStore(ctx)
	if err != nil {
		rt.Logger.Error(ctx, "[INGESTER_STORE_ERROR] Could not open store; no readings written", logging.Fields{
			"backend": rt.Config.Store.Backend,
		}, err)
		return nil
	}
	defer store.Close()

	return rt.NewIngestionService(store).Run(ctx, rt.Config.Provider.Cities)
}

// RunAlert runs one alert evaluation. It returns an error only for invalid alert
// settings, which are checked before the store is contacted; store and delivery
// failures are absorbed and logged.
func (rt *Runtime) RunAlert(ctx context.Context) (*services.AlertRunResult, error) {
	evaluator, err := rt.NewEvaluator()
	if err != nil {
		return nil, &config.ConfigurationError{Err: err}
	}

	ctx = NewRunContext(ctx, PipelineAlert)
	defer rt.PushMetrics(ctx, "weather_alerter")

	store, err := rt.OpenStore(ctx)
	if err != nil {
		rt.Logger.Error(ctx, "[ALERTER_STORE_ERROR] Could not open store; skipping evaluation", logging.Fields{
			"backend":   rt.Config.Store.Backend,
			"transient": models.IsTransient(err),
		}, err)
		return &services.AlertRunResult{StoreErr: err}, nil
	}
	defer store.Close()

	return rt.alertService(store, evaluator, rt.Notifiers()).Run(ctx), nil
}
