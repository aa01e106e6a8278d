package repository

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"weather-alerts/internal/models"
	"weather-alerts/pkg/logging"
	"weather-alerts/pkg/metrics"
)

// BackendSheets is the Backend() name of the Google Sheets store.
const BackendSheets = "sheets"

// valuesAPI is the part of the Sheets values API the store uses.
type valuesAPI interface {
	Append(ctx context.Context, rng string, rows [][]interface{}) error
	Get(ctx context.Context, rng string) ([][]interface{}, error)
	Update(ctx context.Context, rng string, rows [][]interface{}) error
}

// SheetsConfig addresses one worksheet.
type SheetsConfig struct {
	Credentials   string
	SpreadsheetID string
	SheetName     string
	// HeaderRow is 1-based; data rows start right after it.
	HeaderRow int
}

type sheetsStore struct {
	api     valuesAPI
	cfg     SheetsConfig
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewSheetsStore authenticates with a service-account key and returns a Store
// on the configured worksheet.
func NewSheetsStore(ctx context.Context, cfg SheetsConfig, logger *logging.StructuredLogger, m *metrics.Collector) (Store, error) {
	creds, err := DecodeCredentials(cfg.Credentials)
	if err != nil {
		return nil, &StoreError{Backend: BackendSheets, Op: "connect", Err: err}
	}

	svc, err := sheets.NewService(ctx,
		option.WithCredentialsJSON(creds),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, &StoreError{Backend: BackendSheets, Op: "connect", Err: err}
	}

	return newSheetsStore(&googleValues{svc: svc, spreadsheetID: cfg.SpreadsheetID}, cfg, logger, m), nil
}

func newSheetsStore(api valuesAPI, cfg SheetsConfig, logger *logging.StructuredLogger, m *metrics.Collector) *sheetsStore {
	if cfg.HeaderRow < 1 {
		cfg.HeaderRow = 1
	}
	return &sheetsStore{api: api, cfg: cfg, logger: logger, metrics: m}
}

// DecodeCredentials accepts a service-account key as base64 or raw JSON.
func DecodeCredentials(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("credentials are empty")
	}
	if json.Valid([]byte(raw)) {
		return []byte(raw), nil
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("credentials are neither JSON nor base64: %w", err)
	}
	if !json.Valid(decoded) {
		return nil, fmt.Errorf("decoded credentials are not valid JSON")
	}
	return decoded, nil
}

func (s *sheetsStore) Backend() string {
	return BackendSheets
}

// cell returns an A1 reference to column A of the given row, e.g. 'Sheet1'!A2.
func (s *sheetsStore) cell(row int) string {
	return fmt.Sprintf("%s!A%d", s.quotedName(), row)
}

func (s *sheetsStore) quotedName() string {
	return "'" + strings.ReplaceAll(s.cfg.SheetName, "'", "''") + "'"
}

func (s *sheetsStore) do(ctx context.Context, op string, fn func() error) error {
	var observer prometheus.Observer
	if s.metrics != nil {
		observer = s.metrics.StoreOpDuration.WithLabelValues(BackendSheets, op)
	}
	timer := s.metrics.NewTimer(observer)
	err := fn()
	timer.ObserveDuration()
	if err != nil && s.metrics != nil {
		s.metrics.RecordStoreError(BackendSheets, op)
	}
	if err != nil {
		s.logger.Error(ctx, "[SHEETS_ERROR] Sheets API call failed", logging.Fields{
			"op":    op,
			"sheet": s.cfg.SheetName,
		}, err)
		return &StoreError{Backend: BackendSheets, Op: op, Err: err}
	}
	return nil
}

// Init writes the title above the header (when there is a row for it) and the header row.
func (s *sheetsStore) Init(ctx context.Context) error {
	if s.cfg.HeaderRow > 1 {
		err := s.do(ctx, "init", func() error {
			return s.api.Update(ctx, s.cell(1), [][]interface{}{{models.SheetTitle}})
		})
		if err != nil {
			return err
		}
	}

	headers := models.Headers()
	row := make([]interface{}, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	if err := s.do(ctx, "init", func() error {
		return s.api.Update(ctx, s.cell(s.cfg.HeaderRow), [][]interface{}{row})
	}); err != nil {
		return err
	}

	s.logger.Info(ctx, "[REPO_INIT] Sheet header written", logging.Fields{
		"sheet":      s.cfg.SheetName,
		"header_row": s.cfg.HeaderRow,
	})
	return nil
}

// AppendReading appends one row after the table that starts at the header row.
func (s *sheetsStore) AppendReading(ctx context.Context, r *models.WeatherReading) error {
	cells := r.Row()
	row := make([]interface{}, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return s.do(ctx, "append", func() error {
		return s.api.Append(ctx, s.cell(s.cfg.HeaderRow), [][]interface{}{row})
	})
}

// Tail reads the whole sheet and returns the last n non-empty data rows.
func (s *sheetsStore) Tail(ctx context.Context, n int) ([]models.AlertRecord, error) {
	var values [][]interface{}
	err := s.do(ctx, "tail", func() error {
		var err error
		values, err = s.api.Get(ctx, s.quotedName())
		return err
	})
	if err != nil {
		return nil, err
	}

	return recordsFromGrid(values, s.cfg.HeaderRow, n), nil
}

// recordsFromGrid maps rows below headerRow to records keyed by normalised header.
func recordsFromGrid(values [][]interface{}, headerRow, n int) []models.AlertRecord {
	if len(values) < headerRow {
		return []models.AlertRecord{}
	}

	header := values[headerRow-1]
	keys := make([]string, len(header))
	for i, h := range header {
		keys[i] = models.NormalizeHeader(fmt.Sprint(h))
	}

	records := make([]models.AlertRecord, 0, len(values)-headerRow)
	for _, row := range values[headerRow:] {
		if blankRow(row) {
			continue
		}
		fields := make(map[string]string, len(keys))
		for i, key := range keys {
			if key == "" || i >= len(row) {
				continue
			}
			fields[key] = fmt.Sprint(row[i])
		}
		records = append(records, models.RecordFromValues(fields))
	}

	return tailWindow(records, n)
}

func blankRow(row []interface{}) bool {
	for _, c := range row {
		if strings.TrimSpace(fmt.Sprint(c)) != "" {
			return false
		}
	}
	return true
}

// HealthCheck reads the header row.
func (s *sheetsStore) HealthCheck(ctx context.Context) error {
	return s.do(ctx, "health", func() error {
		_, err := s.api.Get(ctx, s.cell(s.cfg.HeaderRow))
		return err
	})
}

func (s *sheetsStore) Close() error {
	return nil
}

// rawInput stores cells exactly as written; Sheets does not parse dates or numbers.
const rawInput = "RAW"

// googleValues adapts *sheets.Service to valuesAPI.
type googleValues struct {
	svc           *sheets.Service
	spreadsheetID string
}

func (g *googleValues) Append(ctx context.Context, rng string, rows [][]interface{}) error {
	_, err := g.svc.Spreadsheets.Values.
		Append(g.spreadsheetID, rng, &sheets.ValueRange{Values: rows}).
		ValueInputOption(rawInput).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

func (g *googleValues) Get(ctx context.Context, rng string) ([][]interface{}, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(g.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (g *googleValues) Update(ctx context.Context, rng string, rows [][]interface{}) error {
	_, err := g.svc.Spreadsheets.Values.
		Update(g.spreadsheetID, rng, &sheets.ValueRange{Values: rows}).
		ValueInputOption(rawInput).
		Context(ctx).
		Do()
	return err
}
