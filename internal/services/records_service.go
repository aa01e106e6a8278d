package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"weather-alerts/internal/models"
	"weather-alerts/internal/repository"
	"weather-alerts/pkg/logging"
)

// MaxRecordsLimit caps how many rows a single read may request.
const MaxRecordsLimit = 500

// RecordsService serves read-only views of the store.
type RecordsService struct {
	store        repository.Store
	logger       *logging.StructuredLogger
	storeTimeout time.Duration
}

// Summary aggregates a window of records.
type Summary struct {
	Records int            `json:"records"`
	ByMain  map[string]int `json:"by_main"`
	// Latest holds the most recent record per city, sorted by city.
	Latest []models.AlertRecord `json:"latest"`
}

// NewRecordsService creates a records service
func NewRecordsService(store repository.Store, storeTimeout time.Duration, logger *logging.StructuredLogger) *RecordsService {
	return &RecordsService{
		store:        store,
		logger:       logger,
		storeTimeout: storeTimeout,
	}
}

// Recent returns up to limit most recent records, oldest first.
func (s *RecordsService) Recent(ctx context.Context, limit int) ([]models.AlertRecord, error) {
	if limit < 1 || limit > MaxRecordsLimit {
		return nil, fmt.Errorf("limit must be between 1 and %d", MaxRecordsLimit)
	}

	readCtx, cancel := withOptionalTimeout(ctx, s.storeTimeout)
	defer cancel()

	records, err := s.store.Tail(readCtx, limit)
	if err != nil {
		return nil, err
	}

	s.logger.Debug(ctx, "[RECORDS_READ] Recent records read", logging.Fields{
		"limit":   limit,
		"records": len(records),
	})
	return records, nil
}

// Summarize counts main categories and picks the latest record per city over
// the last limit records.
func (s *RecordsService) Summarize(ctx context.Context, limit int) (*Summary, error) {
	records, err := s.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	return summarize(records), nil
}

func summarize(records []models.AlertRecord) *Summary {
	sum := &Summary{
		Records: len(records),
		ByMain:  make(map[string]int),
		Latest:  []models.AlertRecord{},
	}

	latest := make(map[string]models.AlertRecord)
	for _, r := range records {
		if r.Main != "" {
			sum.ByMain[r.Main]++
		}
		// records are oldest first, so later entries win
		latest[r.City] = r
	}

	for _, r := range latest {
		sum.Latest = append(sum.Latest, r)
	}
	sort.Slice(sum.Latest, func(i, j int) bool {
		return sum.Latest[i].City < sum.Latest[j].City
	})
	return sum
}
