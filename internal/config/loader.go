package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Role names an entry point and therefore the set of values it cannot run without.
type Role string

const (
	RoleIngest    Role = "ingest"
	RoleAlert     Role = "alert"
	RoleServer    Role = "server"
	RoleMigrate   Role = "migrate"
	RoleScheduler Role = "scheduler"
)

// ConfigurationError reports missing or malformed configuration. Entry points
// exit non-zero on it before doing any network I/O.
type ConfigurationError struct {
	Missing []string
	Err     error
}

func (e *ConfigurationError) Error() string {
	switch {
	case len(e.Missing) > 0 && e.Err != nil:
		return fmt.Sprintf("configuration error: missing %s: %v", strings.Join(e.Missing, ", "), e.Err)
	case len(e.Missing) > 0:
		return fmt.Sprintf("configuration error: missing %s", strings.Join(e.Missing, ", "))
	case e.Err != nil:
		return fmt.Sprintf("configuration error: %v", e.Err)
	default:
		return "configuration error"
	}
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// IsTransient is always false: configuration does not fix itself.
func (e *ConfigurationError) IsTransient() bool {
	return false
}

// LoadConfig reads .env (if present) and the environment, then validates formats.
func LoadConfig() (*Config, error) {
	// A missing .env is normal; real environment variables win over it.
	_ = godotenv.Load()
	return load()
}

func load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigurationError{Err: err}
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, &ConfigurationError{Err: describeValidation(err)}
	}

	return &cfg, nil
}

func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// Require checks that everything the given entry point needs is present.
func (c *Config) Require(role Role) error {
	missing := map[string]bool{}
	need := func(ok bool, key string) {
		if !ok {
			missing[key] = true
		}
	}

	storage := func() {
		switch c.Store.Backend {
		case BackendSheets:
			need(c.Store.SheetsCredentials != "", "GOOGLE_SHEETS_CREDENTIALS")
			need(c.Store.SheetID != "", "SHEET_ID")
		case BackendPostgres:
			need(c.Database.Host != "", "DATABASE_HOST")
			need(c.Database.User != "", "DATABASE_USER")
			need(c.Database.Database != "", "DATABASE_NAME")
		case BackendSQLite:
			need(c.Store.SQLitePath != "", "SQLITE_PATH")
		}
	}
	ingest := func() {
		need(c.Provider.APIKey != "", "OPENWEATHER_API_KEY")
		storage()
	}
	alert := func() {
		storage()
		need(c.Email.Sender != "", "EMAIL_SENDER")
		need(c.Email.Password != "", "EMAIL_PASSWORD")
		need(c.Email.Receiver != "", "EMAIL_RECEIVER")
	}

	switch role {
	case RoleIngest:
		ingest()
	case RoleAlert:
		alert()
	case RoleServer, RoleMigrate:
		storage()
	case RoleScheduler:
		ingest()
		alert()
	default:
		return &ConfigurationError{Err: fmt.Errorf("unknown role %q", role)}
	}

	if len(missing) == 0 {
		return nil
	}
	keys := make([]string, 0, len(missing))
	for k := range missing {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &ConfigurationError{Missing: keys}
}
