package repository

import (
	"context"

	"weather-alerts/internal/models"
	"weather-alerts/pkg/database"
	"weather-alerts/pkg/logging"
)

// sqlStore implements Store on PostgreSQL or SQLite.
type sqlStore struct {
	db     *database.DB
	logger *logging.StructuredLogger
}

// NewSQLStore creates a store on an open database.
func NewSQLStore(db *database.DB, logger *logging.StructuredLogger) Store {
	return &sqlStore{
		db:     db,
		logger: logger,
	}
}

func (s *sqlStore) Backend() string {
	return s.db.Driver()
}

func (s *sqlStore) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Backend: s.Backend(), Op: op, Err: err}
}

// Init applies pending schema migrations.
func (s *sqlStore) Init(ctx context.Context) error {
	ran, err := s.db.Migrate(ctx)
	if err != nil {
		return s.wrap("init", err)
	}

	s.logger.Info(ctx, "[REPO_INIT] Schema ready", logging.Fields{
		"backend":    s.Backend(),
		"migrations": ran,
	})
	return nil
}

// AppendReading inserts one reading.
func (s *sqlStore) AppendReading(ctx context.Context, r *models.WeatherReading) error {
	query := s.db.Rebind(`
		INSERT INTO weather_readings (
			observed_at, city, temperature, min_temp, max_temp, feels_like,
			humidity, pressure, wind_speed, wind_dir, visibility_km,
			condition, main, icon, sunrise, sunset
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := s.db.ExecContext(ctx, "append", query,
		r.Timestamp.Format(models.TimestampLayout),
		r.City,
		r.Temperature,
		r.MinTemp,
		r.MaxTemp,
		r.FeelsLike,
		r.Humidity,
		r.Pressure,
		r.WindSpeed,
		r.WindDir,
		r.VisibilityKm,
		r.Condition,
		r.Main,
		r.Icon,
		r.Sunrise,
		r.Sunset,
	)
	if err != nil {
		return s.wrap("append", err)
	}

	s.logger.Debug(ctx, "[REPO_APPEND] Reading stored", logging.Fields{
		"backend": s.Backend(),
		"city":    r.City,
	})
	return nil
}

// Tail returns the last n rows by insertion order, oldest first.
func (s *sqlStore) Tail(ctx context.Context, n int) ([]models.AlertRecord, error) {
	if n <= 0 {
		return []models.AlertRecord{}, nil
	}

	query := s.db.Rebind(`
		SELECT observed_at, city, main, condition, icon, temperature, humidity
		FROM weather_readings
		ORDER BY id DESC
		LIMIT ?
	`)

	var records []models.AlertRecord
	if err := s.db.SelectContext(ctx, "tail", &records, query, n); err != nil {
		return nil, s.wrap("tail", err)
	}

	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	if records == nil {
		records = []models.AlertRecord{}
	}
	return records, nil
}

// HealthCheck pings the database and checks that the readings table exists,
// so an unmigrated database reports unhealthy.
func (s *sqlStore) HealthCheck(ctx context.Context) error {
	if err := s.db.HealthCheck(ctx); err != nil {
		return s.wrap("health", err)
	}

	var rows int
	err := s.db.GetContext(ctx, "health", &rows,
		`SELECT COUNT(*) FROM (SELECT 1 FROM weather_readings LIMIT 1) AS t`)
	return s.wrap("health", err)
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
