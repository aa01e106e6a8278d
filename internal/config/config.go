// Package config loads runtime configuration from the environment.
//
// Resolution order: OS environment, then a .env file in the working directory.
// Values are bound with envconfig struct tags and checked with validator tags.
// Which values are mandatory depends on the entry point; see Require.
package config

import (
	"time"
)

const redactedPlaceholder = "***REDACTED***"

// SecretString keeps credentials out of logs and JSON dumps.
type SecretString string

// String returns a redacted placeholder.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON returns the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redactedPlaceholder + `"`), nil
}

// Unmask returns the raw value.
func (s SecretString) Unmask() string {
	return string(s)
}

// Store backends.
const (
	BackendSheets   = "sheets"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config is the top-level configuration. It is loaded once per process.
type Config struct {
	Provider ProviderConfig
	Store    StoreConfig
	Database DatabaseConfig
	Email    EmailConfig
	Telegram TelegramConfig
	Alert    AlertConfig
	Server   ServerConfig
	Schedule ScheduleConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
}

// ProviderConfig configures the OpenWeatherMap client.
type ProviderConfig struct {
	APIKey  SecretString  `envconfig:"OPENWEATHER_API_KEY"`
	BaseURL string        `envconfig:"OPENWEATHER_BASE_URL" default:"https://api.openweathermap.org/data/2.5/weather" validate:"required,url"`
	Units   string        `envconfig:"OPENWEATHER_UNITS" default:"metric" validate:"oneof=metric imperial standard"`
	Timeout time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"10s" validate:"gt=0"`
	Cities  []string      `envconfig:"WEATHER_CITIES" default:"Dehradun,Delhi,Mumbai,Bangalore,Chennai,Kolkata,Jaipur" validate:"min=1,dive,required"`
}

// StoreConfig selects and configures the reading store.
type StoreConfig struct {
	Backend string        `envconfig:"STORE_BACKEND" default:"sheets" validate:"oneof=sheets postgres sqlite"`
	Timeout time.Duration `envconfig:"STORE_TIMEOUT" default:"15s" validate:"gt=0"`

	// Google Sheets. Credentials are a service-account key, base64 or raw JSON.
	SheetsCredentials SecretString `envconfig:"GOOGLE_SHEETS_CREDENTIALS"`
	SheetID           string       `envconfig:"SHEET_ID"`
	SheetName         string       `envconfig:"SHEET_NAME" default:"Sheet1" validate:"required"`
	// HeaderRow is the 1-based row holding column headers; data follows it.
	HeaderRow int `envconfig:"SHEET_HEADER_ROW" default:"2" validate:"min=1"`

	SQLitePath string `envconfig:"SQLITE_PATH" default:"weather.db"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `envconfig:"DATABASE_HOST"`
	Port            int           `envconfig:"DATABASE_PORT" default:"5432" validate:"min=1,max=65535"`
	User            string        `envconfig:"DATABASE_USER"`
	Password        SecretString  `envconfig:"DATABASE_PASSWORD"`
	Database        string        `envconfig:"DATABASE_NAME"`
	SSLMode         string        `envconfig:"DATABASE_SSLMODE" default:"disable" validate:"oneof=disable require verify-ca verify-full"`
	MaxOpenConns    int           `envconfig:"DATABASE_MAX_OPEN_CONNS" default:"5" validate:"min=1"`
	MaxIdleConns    int           `envconfig:"DATABASE_MAX_IDLE_CONNS" default:"2" validate:"min=0"`
	ConnMaxLifetime time.Duration `envconfig:"DATABASE_CONN_MAX_LIFETIME" default:"30m"`
	ConnMaxIdleTime time.Duration `envconfig:"DATABASE_CONN_MAX_IDLE_TIME" default:"5m"`
}

// EmailConfig configures SMTP delivery.
type EmailConfig struct {
	Sender   string        `envconfig:"EMAIL_SENDER" validate:"omitempty,email"`
	Password SecretString  `envconfig:"EMAIL_PASSWORD"`
	Receiver string        `envconfig:"EMAIL_RECEIVER" validate:"omitempty,email"`
	Host     string        `envconfig:"SMTP_HOST" default:"smtp.gmail.com" validate:"required,hostname"`
	Port     int           `envconfig:"SMTP_PORT" default:"465" validate:"min=1,max=65535"`
	Timeout  time.Duration `envconfig:"SMTP_TIMEOUT" default:"15s" validate:"gt=0"`
}

// TelegramConfig enables the optional Telegram channel when both values are set.
type TelegramConfig struct {
	BotToken SecretString `envconfig:"TELEGRAM_BOT_TOKEN"`
	ChatID   int64        `envconfig:"TELEGRAM_CHAT_ID"`
}

// Enabled reports whether Telegram delivery is configured.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != 0
}

// AlertConfig configures the condition evaluator.
type AlertConfig struct {
	Lookback    int      `envconfig:"ALERT_LOOKBACK" default:"4" validate:"min=1"`
	Triggers    []string `envconfig:"ALERT_TRIGGERS" default:"Clouds,Rain" validate:"min=1,dive,required"`
	MatchPolicy string   `envconfig:"ALERT_MATCH_POLICY" default:"exact" validate:"oneof=exact substring"`
}

// ServerConfig configures the read-only HTTP API.
type ServerConfig struct {
	Host         string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port         int           `envconfig:"SERVER_PORT" default:"8080" validate:"min=1,max=65535"`
	ReadTimeout  time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	IdleTimeout  time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"60s"`
}

// ScheduleConfig holds cron specs for cmd/scheduler.
type ScheduleConfig struct {
	Ingest string `envconfig:"SCHEDULE_INGEST" default:"0 * * * *" validate:"required"`
	Alert  string `envconfig:"SCHEDULE_ALERT" default:"5 * * * *" validate:"required"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn warning error"`
}

// MetricsConfig configures metric export for batch runs.
type MetricsConfig struct {
	PushgatewayURL string `envconfig:"METRICS_PUSHGATEWAY_URL" validate:"omitempty,url"`
}
