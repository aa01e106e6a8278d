// Package bootstrap turns a loaded Config into wired components for the cmd binaries.
package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	"weather-alerts/internal/alerting"
	"weather-alerts/internal/config"
	"weather-alerts/internal/notify"
	"weather-alerts/internal/provider"
	"weather-alerts/internal/repository"
	"weather-alerts/internal/services"
	"weather-alerts/pkg/database"
	"weather-alerts/pkg/logging"
	"weather-alerts/pkg/metrics"
)

// Version is stamped into every log line.
var Version = "1.0.0"

// MetricsNamespace prefixes every metric name.
const MetricsNamespace = "weather_alerts"

// Runtime bundles the process-wide logger and metrics.
type Runtime struct {
	Config  *config.Config
	Logger  *logging.StructuredLogger
	Metrics *metrics.Collector
}

// Load reads configuration, checks it for role and sets up logging and metrics.
// A *config.ConfigurationError means the process should exit non-zero.
func Load(service string, role config.Role) (*Runtime, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Require(role); err != nil {
		return nil, err
	}

	logger := logging.NewStructuredLogger(service, Version, logging.ParseLevel(cfg.Logging.Level))
	return &Runtime{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.NewCollector(MetricsNamespace),
	}, nil
}

// NewRunContext tags ctx with a fresh run ID and the pipeline name.
func NewRunContext(ctx context.Context, pipeline string) context.Context {
	ctx = logging.WithRunID(ctx, uuid.NewString())
	return logging.WithPipeline(ctx, pipeline)
}

// ExitConfigError prints a configuration failure and exits 1.
func ExitConfigError(err error) {
	fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
	os.Exit(1)
}

// OpenStore connects to the configured backend. It does not call Init.
func (rt *Runtime) OpenStore(ctx context.Context) (repository.Store, error) {
	cfg := rt.Config
	switch cfg.Store.Backend {
	case config.BackendSheets:
		return repository.NewSheetsStore(ctx, repository.SheetsConfig{
			Credentials:   cfg.Store.SheetsCredentials.Unmask(),
			SpreadsheetID: cfg.Store.SheetID,
			SheetName:     cfg.Store.SheetName,
			HeaderRow:     cfg.Store.HeaderRow,
		}, rt.Logger, rt.Metrics)

	case config.BackendPostgres, config.BackendSQLite:
		dbCfg := &database.Config{
			Driver:          database.DriverPostgres,
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			User:            cfg.Database.User,
			Password:        cfg.Database.Password.Unmask(),
			Database:        cfg.Database.Database,
			SSLMode:         cfg.Database.SSLMode,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		}
		if cfg.Store.Backend == config.BackendSQLite {
			dbCfg.Driver = database.DriverSQLite
			dbCfg.Path = cfg.Store.SQLitePath
		}
		db, err := database.Open(ctx, dbCfg, rt.Logger, rt.Metrics)
		if err != nil {
			return nil, &repository.StoreError{Backend: dbCfg.Driver, Op: "connect", Err: err}
		}
		return repository.NewSQLStore(db, rt.Logger), nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// NewIngestionService wires the provider client and store.
func (rt *Runtime) NewIngestionService(store repository.Store) *services.IngestionService {
	cfg := rt.Config
	client := provider.NewClient(provider.Config{
		BaseURL: cfg.Provider.BaseURL,
		APIKey:  cfg.Provider.APIKey.Unmask(),
		Units:   cfg.Provider.Units,
		Timeout: cfg.Provider.Timeout,
	}, nil, rt.Logger, rt.Metrics)

	return services.NewIngestionService(client, store, services.IngestionOptions{
		FetchTimeout: cfg.Provider.Timeout,
		StoreTimeout: cfg.Store.Timeout,
	}, rt.Logger, rt.Metrics)
}

// NewEvaluator builds the evaluator from the alert settings.
func (rt *Runtime) NewEvaluator() (*alerting.Evaluator, error) {
	a := rt.Config.Alert
	return alerting.NewEvaluator(a.Triggers, alerting.MatchPolicy(a.MatchPolicy), a.Lookback)
}

// Notifiers returns email plus Telegram when it is configured.
func (rt *Runtime) Notifiers() []notify.Notifier {
	cfg := rt.Config
	out := []notify.Notifier{
		notify.NewEmailNotifier(notify.EmailConfig{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Sender:   cfg.Email.Sender,
			Password: cfg.Email.Password.Unmask(),
			Receiver: cfg.Email.Receiver,
			Timeout:  cfg.Email.Timeout,
		}, rt.Logger),
	}
	if cfg.Telegram.Enabled() {
		out = append(out, notify.NewTelegramNotifier(notify.TelegramConfig{
			Token:  cfg.Telegram.BotToken.Unmask(),
			ChatID: cfg.Telegram.ChatID,
		}, rt.Logger))
	}
	return out
}

// NewAlertService wires the evaluator and notifiers. Pass withNotifiers=false
// for read-only use such as the HTTP preview.
func (rt *Runtime) NewAlertService(store repository.Store, withNotifiers bool) (*services.AlertService, error) {
	evaluator, err := rt.NewEvaluator()
	if err != nil {
		return nil, &config.ConfigurationError{Err: err}
	}
	var notifiers []notify.Notifier
	if withNotifiers {
		notifiers = rt.Notifiers()
	}
	return rt.alertService(store, evaluator, notifiers), nil
}

func (rt *Runtime) alertService(store repository.Store, evaluator *alerting.Evaluator, notifiers []notify.Notifier) *services.AlertService {
	return services.NewAlertService(store, evaluator, notifiers, rt.Config.Store.Timeout, rt.Logger, rt.Metrics)
}

// PushMetrics pushes to the Pushgateway when one is configured. Failures are logged only.
func (rt *Runtime) PushMetrics(ctx context.Context, job string) {
	if err := rt.Metrics.Push(ctx, rt.Config.Metrics.PushgatewayURL, job); err != nil {
		rt.Logger.Warn(ctx, "[METRICS_PUSH_ERROR] Could not push metrics", logging.Fields{
			"job":   job,
			"error": err.Error(),
		})
	}
}
