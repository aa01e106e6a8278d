package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weather-alerts/internal/alerting"
	"weather-alerts/internal/models"
	"weather-alerts/internal/notify"
	"weather-alerts/internal/repository"
	"weather-alerts/pkg/logging"
	"weather-alerts/pkg/metrics"
)

// memoryStore is an in-memory Store.
type memoryStore struct {
	mu        sync.Mutex
	rows      []models.AlertRecord
	appendErr map[string]error
	tailErr   error
}

func (m *memoryStore) Init(context.Context) error { return nil }

func (m *memoryStore) AppendReading(_ context.Context, r *models.WeatherReading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.appendErr[r.City]; err != nil {
		return &repository.StoreError{Backend: "memory", Op: "append", Err: err}
	}
	m.rows = append(m.rows, models.AlertRecord{
		Time:        r.Timestamp.Format(models.TimestampLayout),
		City:        r.City,
		Main:        r.Main,
		Condition:   r.Condition,
		Icon:        r.Icon,
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
	})
	return nil
}

func (m *memoryStore) Tail(_ context.Context, n int) ([]models.AlertRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tailErr != nil {
		return nil, &repository.StoreError{Backend: "memory", Op: "tail", Err: m.tailErr}
	}
	rows := m.rows
	if len(rows) > n {
		rows = rows[len(rows)-n:]
	}
	return append([]models.AlertRecord{}, rows...), nil
}

func (m *memoryStore) HealthCheck(context.Context) error { return nil }
func (m *memoryStore) Close() error                      { return nil }
func (m *memoryStore) Backend() string                   { return "memory" }

// fakeFetcher serves canned responses per city.
type fakeFetcher struct {
	responses map[string]*models.ProviderResponse
	errs      map[string]error
	calls     []string
}

func (f *fakeFetcher) Fetch(_ context.Context, city string) (*models.ProviderResponse, error) {
	f.calls = append(f.calls, city)
	if err := f.errs[city]; err != nil {
		return nil, err
	}
	return f.responses[city], nil
}

func okResponse(name, main string) *models.ProviderResponse {
	resp := &models.ProviderResponse{Cod: 200, Name: name}
	resp.Main.Temp = 25
	resp.Main.Humidity = 60
	resp.Weather = append(resp.Weather, struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	}{Main: main, Description: "some " + main})
	return resp
}

type fakeNotifier struct {
	name string
	err  error
	sent []alerting.Message
}

func (f *fakeNotifier) Name() string { return f.name }

func (f *fakeNotifier) Send(_ context.Context, msg alerting.Message) error {
	if f.err != nil {
		return &notify.NotificationError{Channel: f.name, Err: f.err}
	}
	f.sent = append(f.sent, msg)
	return nil
}

func testCollector() *metrics.Collector {
	reg := prometheus.NewRegistry()
	return metrics.NewCollectorWithRegistry("test", reg, reg)
}

func TestIngestionService_IsolatesCityFailures(t *testing.T) {
	store := &memoryStore{appendErr: map[string]error{"Chennai": errors.New("quota exceeded")}}
	fetcher := &fakeFetcher{
		responses: map[string]*models.ProviderResponse{
			"Delhi":   okResponse("Delhi", "Rain"),
			"Mumbai":  {Cod: 404, Message: "city not found"},
			"Chennai": okResponse("Chennai", "Clouds"),
			"Jaipur":  okResponse("Jaipur", "Clear"),
		},
		errs: map[string]error{
			"Kolkata": &models.ProviderError{City: "Kolkata", Message: "request failed", Err: errors.New("timeout")},
		},
	}
	m := testCollector()
	svc := NewIngestionService(fetcher, store, IngestionOptions{FetchTimeout: time.Second}, logging.NewNopLogger(), m)
	svc.now = func() time.Time { return time.Date(2024, 7, 14, 9, 30, 0, 0, time.UTC) }

	result := svc.Run(context.Background(), []string{"Delhi", "Mumbai", "Kolkata", "Chennai", "Jaipur"})

	assert.Equal(t, []string{"Delhi", "Mumbai", "Kolkata", "Chennai", "Jaipur"}, fetcher.calls)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 3, result.Failed)
	require.Len(t, result.Cities, 5)

	stages := map[string]string{}
	for _, cr := range result.Cities {
		stages[cr.City] = cr.Stage
	}
	assert.Equal(t, map[string]string{
		"Delhi":   "",
		"Mumbai":  StageMap,
		"Kolkata": StageFetch,
		"Chennai": StageStore,
		"Jaipur":  "",
	}, stages)

	var perr *models.ProviderError
	require.True(t, errors.As(result.Cities[1].Err, &perr))
	assert.Equal(t, 404, perr.Code)

	require.Len(t, store.rows, 2)
	assert.Equal(t, "Delhi", store.rows[0].City)
	assert.Equal(t, "2024-07-14 09:30:00", store.rows[0].Time)
	assert.Equal(t, "Jaipur", store.rows[1].City)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ReadingsIngestedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CityFailuresTotal.WithLabelValues(StageStore)))
}

func TestIngestionService_EmptyCityList(t *testing.T) {
	svc := NewIngestionService(&fakeFetcher{}, &memoryStore{}, IngestionOptions{}, logging.NewNopLogger(), nil)

	result := svc.Run(context.Background(), nil)
	assert.Equal(t, 0, result.Succeeded)
	assert.Equal(t, 0, result.Failed)
	assert.Empty(t, result.Cities)
}

func newAlertService(t *testing.T, store repository.Store, m *metrics.Collector, notifiers ...notify.Notifier) *AlertService {
	t.Helper()
	e, err := alerting.NewEvaluator(alerting.DefaultTriggers, alerting.MatchExact, alerting.DefaultLookback)
	require.NoError(t, err)
	return NewAlertService(store, e, notifiers, time.Second, logging.NewNopLogger(), m)
}

func storeWith(mains ...string) *memoryStore {
	s := &memoryStore{}
	for _, main := range mains {
		s.rows = append(s.rows, models.AlertRecord{City: "City-" + main, Main: main})
	}
	return s
}

func TestAlertService_Run(t *testing.T) {
	tests := []struct {
		name          string
		store         *memoryStore
		wantResult    string
		wantSent      bool
		wantMatches   int
		wantDelivered int
	}{
		{
			name:       "all clear sends nothing",
			store:      storeWith("Clear", "Clear", "Clear", "Clear"),
			wantResult: ResultClear,
		},
		{
			name:          "rain and clouds in window",
			store:         storeWith("Rain", "Clear", "Clear", "Clear", "Clouds"),
			wantResult:    ResultTriggered,
			wantSent:      true,
			wantMatches:   1,
			wantDelivered: 2,
		},
		{
			name:       "empty store",
			store:      &memoryStore{},
			wantResult: ResultClear,
		},
		{
			name:       "store failure skips evaluation",
			store:      &memoryStore{tailErr: errors.New("permission denied"), rows: []models.AlertRecord{{Main: "Rain"}}},
			wantResult: ResultSkipped,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			email := &fakeNotifier{name: "email"}
			telegram := &fakeNotifier{name: "telegram"}
			m := testCollector()
			svc := newAlertService(t, tt.store, m, email, telegram)

			result := svc.Run(context.Background())

			assert.Equal(t, tt.wantResult, result.Result())
			assert.Len(t, result.Decision.Matches, tt.wantMatches)
			assert.Len(t, result.Deliveries, tt.wantDelivered)
			assert.Equal(t, tt.wantSent, len(email.sent) == 1)
			assert.Equal(t, tt.wantSent, len(telegram.sent) == 1)
			assert.Equal(t, tt.wantSent, result.Message != nil)
			assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertEvaluationsTotal.WithLabelValues(tt.wantResult)))

			if tt.wantResult == ResultSkipped {
				var serr *repository.StoreError
				assert.True(t, errors.As(result.StoreErr, &serr))
			}
		})
	}
}

func TestAlertService_NotificationFailureIsAbsorbed(t *testing.T) {
	failing := &fakeNotifier{name: "email", err: errors.New("smtp down")}
	working := &fakeNotifier{name: "telegram"}
	m := testCollector()
	svc := newAlertService(t, storeWith("Rain"), m, failing, working)

	result := svc.Run(context.Background())

	require.Len(t, result.Deliveries, 2)
	assert.Error(t, result.Deliveries[0].Err)
	assert.NoError(t, result.Deliveries[1].Err)
	assert.Len(t, working.sent, 1, "one failing channel does not block the others")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("email", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("telegram", "sent")))
}

func TestAlertService_MessageBody(t *testing.T) {
	store := &memoryStore{rows: []models.AlertRecord{
		{Time: "2024-07-14 09:30:00", City: "Delhi", Main: "Rain", Condition: "Moderate Rain", Temperature: 31.05, Humidity: 74},
	}}
	email := &fakeNotifier{name: "email"}
	svc := newAlertService(t, store, nil, email)

	svc.Run(context.Background())

	require.Len(t, email.sent, 1)
	assert.Equal(t, alerting.AlertSubject, email.sent[0].Subject)
	assert.Equal(t, "2024-07-14 09:30:00 in Delhi: Rain (Moderate Rain), 31.05°C, 74% humidity", email.sent[0].Body)
}

func TestAlertService_PreviewNeverSends(t *testing.T) {
	email := &fakeNotifier{name: "email"}
	m := testCollector()
	svc := newAlertService(t, storeWith("Clouds"), m, email)

	result, err := svc.Preview(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Decision.Triggered)
	require.NotNil(t, result.Message)
	assert.Empty(t, email.sent)
	assert.Equal(t, 0, testutil.CollectAndCount(m.AlertEvaluationsTotal))

	_, err = newAlertService(t, &memoryStore{tailErr: errors.New("boom")}, nil).Preview(context.Background())
	assert.Error(t, err)
}

func TestRecordsService(t *testing.T) {
	store := &memoryStore{rows: []models.AlertRecord{
		{City: "Delhi", Main: "Clear", Temperature: 30},
		{City: "Mumbai", Main: "Rain"},
		{City: "Delhi", Main: "Rain", Temperature: 28},
	}}
	svc := NewRecordsService(store, time.Second, logging.NewNopLogger())
	ctx := context.Background()

	records, err := svc.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Mumbai", records[0].City)

	_, err = svc.Recent(ctx, 0)
	assert.Error(t, err)
	_, err = svc.Recent(ctx, MaxRecordsLimit+1)
	assert.Error(t, err)

	sum, err := svc.Summarize(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Records)
	assert.Equal(t, map[string]int{"Clear": 1, "Rain": 2}, sum.ByMain)
	require.Len(t, sum.Latest, 2)
	assert.Equal(t, "Delhi", sum.Latest[0].City)
	assert.Equal(t, 28.0, sum.Latest[0].Temperature)
	assert.Equal(t, "Mumbai", sum.Latest[1].City)
}

func TestIngestionService_LogsCityErrors(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewStructuredLogger("test", "1.0.0", logging.InfoLevel)
	logger.SetOutput(&buf)

	fetcher := &fakeFetcher{
		responses: map[string]*models.ProviderResponse{
			"Delhi":  okResponse("Delhi", "Rain"),
			"Mumbai": {Cod: 404, Message: "city not found"},
		},
		errs: map[string]error{
			"Kolkata": &models.ProviderError{City: "Kolkata", Message: "request failed", Err: errors.New("timeout")},
		},
	}
	svc := NewIngestionService(fetcher, &memoryStore{}, IngestionOptions{}, logger, nil)
	svc.Run(context.Background(), []string{"Delhi", "Mumbai", "Kolkata"})

	transient := map[string]interface{}{}
	var succeeded []interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry logging.LogEntry
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		switch {
		case strings.HasPrefix(entry.Message, "[INGEST_CITY_ERROR]"):
			transient[entry.Fields["city"].(string)] = entry.Fields["transient"]
		case strings.HasPrefix(entry.Message, "[INGEST_CITY_SUCCESS]"):
			succeeded = append(succeeded, entry.Fields["city"])
		}
	}

	assert.Equal(t, map[string]interface{}{"Mumbai": false, "Kolkata": true}, transient)
	assert.Equal(t, []interface{}{"Delhi"}, succeeded)
}
