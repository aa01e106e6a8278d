package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		t.Setenv(k, v)
	}
}

func fullEnv() map[string]string {
	return map[string]string{
		"OPENWEATHER_API_KEY":       "owm-key",
		"GOOGLE_SHEETS_CREDENTIALS": "e30=",
		"SHEET_ID":                  "sheet-123",
		"EMAIL_SENDER":              "alerts@example.com",
		"EMAIL_PASSWORD":            "app-password",
		"EMAIL_RECEIVER":            "me@example.com",
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load()
	require.NoError(t, err)

	assert.Equal(t, BackendSheets, cfg.Store.Backend)
	assert.Equal(t, 2, cfg.Store.HeaderRow)
	assert.Equal(t, "Sheet1", cfg.Store.SheetName)
	assert.Equal(t, 4, cfg.Alert.Lookback)
	assert.Equal(t, []string{"Clouds", "Rain"}, cfg.Alert.Triggers)
	assert.Equal(t, "exact", cfg.Alert.MatchPolicy)
	assert.Equal(t, []string{"Dehradun", "Delhi", "Mumbai", "Bangalore", "Chennai", "Kolkata", "Jaipur"}, cfg.Provider.Cities)
	assert.Equal(t, 10*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, "smtp.gmail.com", cfg.Email.Host)
	assert.Equal(t, 465, cfg.Email.Port)
	assert.False(t, cfg.Telegram.Enabled())
}

func TestLoad_Overrides(t *testing.T) {
	setEnv(t, map[string]string{
		"WEATHER_CITIES":     "Pune,Goa",
		"SHEET_HEADER_ROW":   "4",
		"ALERT_MATCH_POLICY": "substring",
		"ALERT_TRIGGERS":     "cloud,rain,storm",
		"ALERT_LOOKBACK":     "6",
		"STORE_BACKEND":      "sqlite",
		"TELEGRAM_BOT_TOKEN": "123:abc",
		"TELEGRAM_CHAT_ID":   "-1001",
	})

	cfg, err := load()
	require.NoError(t, err)

	assert.Equal(t, []string{"Pune", "Goa"}, cfg.Provider.Cities)
	assert.Equal(t, 4, cfg.Store.HeaderRow)
	assert.Equal(t, "substring", cfg.Alert.MatchPolicy)
	assert.Equal(t, []string{"cloud", "rain", "storm"}, cfg.Alert.Triggers)
	assert.Equal(t, 6, cfg.Alert.Lookback)
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.True(t, cfg.Telegram.Enabled())
	assert.Equal(t, int64(-1001), cfg.Telegram.ChatID)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown backend", map[string]string{"STORE_BACKEND": "redis"}},
		{"unknown policy", map[string]string{"ALERT_MATCH_POLICY": "regex"}},
		{"zero header row", map[string]string{"SHEET_HEADER_ROW": "0"}},
		{"bad sender", map[string]string{"EMAIL_SENDER": "not-an-email"}},
		{"bad duration", map[string]string{"PROVIDER_TIMEOUT": "soon"}},
		{"zero lookback", map[string]string{"ALERT_LOOKBACK": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnv(t, tt.env)

			_, err := load()
			var cerr *ConfigurationError
			require.True(t, errors.As(err, &cerr), "got %v", err)
			assert.False(t, cerr.IsTransient())
		})
	}
}

func TestRequire(t *testing.T) {
	tests := []struct {
		name        string
		role        Role
		drop        []string
		extra       map[string]string
		wantMissing []string
	}{
		{name: "ingest complete", role: RoleIngest},
		{name: "alert complete", role: RoleAlert},
		{name: "scheduler complete", role: RoleScheduler},
		{
			name:        "ingest without api key",
			role:        RoleIngest,
			drop:        []string{"OPENWEATHER_API_KEY"},
			wantMissing: []string{"OPENWEATHER_API_KEY"},
		},
		{
			name: "ingest does not need email",
			role: RoleIngest,
			drop: []string{"EMAIL_SENDER", "EMAIL_PASSWORD", "EMAIL_RECEIVER"},
		},
		{
			name:        "alert without recipient and secret",
			role:        RoleAlert,
			drop:        []string{"EMAIL_RECEIVER", "EMAIL_PASSWORD"},
			wantMissing: []string{"EMAIL_PASSWORD", "EMAIL_RECEIVER"},
		},
		{
			name:        "alert without sheet credentials",
			role:        RoleAlert,
			drop:        []string{"GOOGLE_SHEETS_CREDENTIALS"},
			wantMissing: []string{"GOOGLE_SHEETS_CREDENTIALS"},
		},
		{
			name:        "postgres needs connection details",
			role:        RoleServer,
			extra:       map[string]string{"STORE_BACKEND": "postgres"},
			wantMissing: []string{"DATABASE_HOST", "DATABASE_NAME", "DATABASE_USER"},
		},
		{
			name:  "sqlite has a default path",
			role:  RoleMigrate,
			drop:  []string{"GOOGLE_SHEETS_CREDENTIALS", "SHEET_ID"},
			extra: map[string]string{"STORE_BACKEND": "sqlite"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := fullEnv()
			for _, k := range tt.drop {
				delete(env, k)
			}
			for k, v := range tt.extra {
				env[k] = v
			}
			setEnv(t, env)

			cfg, err := load()
			require.NoError(t, err)

			err = cfg.Require(tt.role)
			if len(tt.wantMissing) == 0 {
				assert.NoError(t, err)
				return
			}
			var cerr *ConfigurationError
			require.True(t, errors.As(err, &cerr), "got %v", err)
			assert.Equal(t, tt.wantMissing, cerr.Missing)
		})
	}
}

func TestRequire_UnknownRole(t *testing.T) {
	cfg, err := load()
	require.NoError(t, err)
	assert.Error(t, cfg.Require(Role("janitor")))
}

func TestSecretString_Redacted(t *testing.T) {
	s := SecretString("hunter2")

	assert.Equal(t, redactedPlaceholder, s.String())
	assert.Equal(t, redactedPlaceholder, fmt.Sprintf("%v", s))
	assert.Equal(t, "hunter2", s.Unmask())

	data, err := json.Marshal(struct {
		Password SecretString `json:"password"`
	}{s})
	require.NoError(t, err)
	assert.JSONEq(t, `{"password":"***REDACTED***"}`, string(data))
}
