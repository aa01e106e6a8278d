package repository

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"weather-alerts/pkg/logging"
	"weather-alerts/pkg/metrics"
)

type sheetsCall struct {
	method      string
	path        string
	inputOption string
	insertData  string
	values      [][]interface{}
}

// newSheetsServer serves the values endpoints from an in-memory grid.
func newSheetsServer(t *testing.T) (*googleValues, *[]sheetsCall) {
	t.Helper()
	var (
		calls []sheetsCall
		grid  [][]interface{}
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := sheetsCall{
			method:      r.Method,
			path:        r.URL.Path,
			inputOption: r.URL.Query().Get("valueInputOption"),
			insertData:  r.URL.Query().Get("insertDataOption"),
		}
		w.Header().Set("Content-Type", "application/json")

		switch r.Method {
		case http.MethodGet:
			calls = append(calls, call)
			json.NewEncoder(w).Encode(map[string]interface{}{"values": grid})
		default:
			var body sheets.ValueRange
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			call.values = body.Values
			calls = append(calls, call)
			grid = append(grid, body.Values...)
			w.Write([]byte(`{}`))
		}
	}))
	t.Cleanup(srv.Close)

	svc, err := sheets.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	return &googleValues{svc: svc, spreadsheetID: "sheet-id"}, &calls
}

func TestGoogleValues_WritesRawCells(t *testing.T) {
	ctx := context.Background()
	api, calls := newSheetsServer(t)
	reg := prometheus.NewRegistry()
	m := metrics.NewCollectorWithRegistry("test", reg, reg)
	s := newSheetsStore(api, SheetsConfig{SheetName: "Sheet1", HeaderRow: 1}, logging.NewNopLogger(), m)

	require.NoError(t, s.Init(ctx))
	require.NoError(t, s.AppendReading(ctx, reading("Delhi", "Rain", 30)))

	require.Len(t, *calls, 2)
	update, appendCall := (*calls)[0], (*calls)[1]

	assert.Equal(t, http.MethodPut, update.method)
	assert.Equal(t, "RAW", update.inputOption)

	assert.Equal(t, http.MethodPost, appendCall.method)
	assert.True(t, strings.HasSuffix(appendCall.path, ":append"), appendCall.path)
	assert.Equal(t, "RAW", appendCall.inputOption)
	assert.Equal(t, "INSERT_ROWS", appendCall.insertData)
	require.Len(t, appendCall.values, 1)
	assert.Equal(t, "2024-07-14 09:30:00", appendCall.values[0][0])
	assert.Equal(t, "30.5", appendCall.values[0][2])
	assert.Equal(t, "05:33", appendCall.values[0][14])

	records, err := s.Tail(ctx, 4)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "2024-07-14 09:30:00", records[0].Time)
	assert.Equal(t, 30.5, records[0].Temperature)

	// init, append and tail each observed once.
	assert.Equal(t, 3, testutil.CollectAndCount(m.StoreOpDuration))
}
