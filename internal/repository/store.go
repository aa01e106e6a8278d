package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"

	"weather-alerts/internal/models"
)

// Store persists readings and reads back the most recent ones.
//
// Concurrent runs against the same store are not coordinated. Each run appends
// as a single writer; two overlapping ingesters may interleave rows.
type Store interface {
	// Init prepares the store: schema migrations for SQL, title and header rows for sheets.
	Init(ctx context.Context) error
	// AppendReading adds one reading after the last stored row.
	AppendReading(ctx context.Context, reading *models.WeatherReading) error
	// Tail returns up to n most recent records, oldest first.
	Tail(ctx context.Context, n int) ([]models.AlertRecord, error)
	HealthCheck(ctx context.Context) error
	Close() error
	// Backend names the store for logs and metrics.
	Backend() string
}

// StoreError wraps every failure coming out of a Store.
type StoreError struct {
	Backend string
	Op      string
	Err     error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s store: %s failed: %v", e.Backend, e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether retrying later may succeed. Rejections by the
// Sheets API (bad credentials, missing sheet) are not transient.
func (e *StoreError) IsTransient() bool {
	if errors.Is(e.Err, context.Canceled) {
		return false
	}
	var gerr *googleapi.Error
	if errors.As(e.Err, &gerr) {
		return gerr.Code >= 500 || gerr.Code == http.StatusTooManyRequests
	}
	return true
}

func tailWindow[T any](rows []T, n int) []T {
	if n <= 0 {
		return []T{}
	}
	if len(rows) > n {
		rows = rows[len(rows)-n:]
	}
	out := make([]T, len(rows))
	copy(out, rows)
	return out
}
