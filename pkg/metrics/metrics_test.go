package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCollector() *Collector {
	reg := prometheus.NewRegistry()
	return NewCollectorWithRegistry("test", reg, reg)
}

func TestCollector_Records(t *testing.T) {
	c := newTestCollector()

	c.RecordCityFailure("fetch")
	c.RecordCityFailure("fetch")
	c.RecordCityFailure("append")
	c.RecordNotification("email", nil)
	c.RecordNotification("email", errors.New("smtp down"))
	c.RecordEvaluation("triggered", 2)
	c.RecordStoreError("sheets", "tail")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.CityFailuresTotal.WithLabelValues("fetch")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.CityFailuresTotal.WithLabelValues("append")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.NotificationsTotal.WithLabelValues("email", "sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.NotificationsTotal.WithLabelValues("email", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.AlertEvaluationsTotal.WithLabelValues("triggered")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.AlertMatchedRecords))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.StoreErrorsTotal.WithLabelValues("sheets", "tail")))
}

func TestCollector_IndependentRegistries(t *testing.T) {
	// Two collectors on separate registries must not panic on duplicate registration.
	require.NotPanics(t, func() {
		newTestCollector()
		newTestCollector()
	})
}

func TestCollector_Push(t *testing.T) {
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestCollector()
	c.ReadingsIngestedTotal.Add(3)

	require.NoError(t, c.Push(context.Background(), srv.URL, "weather_ingester"))
	assert.Equal(t, "/metrics/job/weather_ingester", gotPath)
	assert.NotEmpty(t, gotBody)
}

func TestCollector_PushDisabled(t *testing.T) {
	c := newTestCollector()
	assert.NoError(t, c.Push(context.Background(), "", "job"))
}

func TestTimer(t *testing.T) {
	c := newTestCollector()

	c.NewTimer(c.StoreOpDuration.WithLabelValues("sheets", "append")).ObserveDuration()
	c.NewTimer(c.StoreOpDuration.WithLabelValues("sheets", "append")).ObserveDuration()
	assert.Equal(t, 1, testutil.CollectAndCount(c.StoreOpDuration))

	var disabled *Collector
	assert.GreaterOrEqual(t, disabled.NewTimer(nil).ObserveDuration(), time.Duration(0))
}
