package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"weather-alerts/pkg/logging"
	"weather-alerts/pkg/metrics"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

//go:embed migrations
var migrationFS embed.FS

// Config holds database connection configuration
type Config struct {
	Driver string

	// PostgreSQL
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	// SQLite file path, or ":memory:"
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// PoolMonitorInterval of zero disables pool metrics.
	PoolMonitorInterval time.Duration
}

// DSN returns the driver-specific connection string.
func (c *Config) DSN() string {
	if c.Driver == DriverSQLite {
		return c.Path
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Database,
		c.SSLMode,
	)
}

// DB wraps sqlx.DB with monitoring and metrics
type DB struct {
	db      *sqlx.DB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	config  *Config

	stop     chan struct{}
	stopOnce sync.Once
}

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, cfg *Config, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) (*DB, error) {
	switch cfg.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sqlx.Open(cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Configure connection pool
	if cfg.Driver == DriverSQLite {
		// One connection keeps ":memory:" databases alive and serialises writers.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info(ctx, "[DB_INIT] Database connection established", logging.Fields{
		"driver":         cfg.Driver,
		"host":           cfg.Host,
		"database":       cfg.Database,
		"path":           cfg.Path,
		"max_open_conns": cfg.MaxOpenConns,
	})

	d := &DB{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
		config:  cfg,
		stop:    make(chan struct{}),
	}

	if cfg.PoolMonitorInterval > 0 && metricsCollector != nil {
		go d.monitorConnectionPool(cfg.PoolMonitorInterval)
	}

	return d, nil
}

// Close stops the pool monitor and closes the connection
func (d *DB) Close() error {
	d.stopOnce.Do(func() { close(d.stop) })
	d.logger.Info(context.Background(), "[DB_CLOSE] Closing database connection", logging.Fields{
		"driver": d.config.Driver,
	})
	return d.db.Close()
}

// Driver returns the driver name.
func (d *DB) Driver() string {
	return d.config.Driver
}

// Rebind converts '?' placeholders to the driver's bindvar style.
func (d *DB) Rebind(query string) string {
	return d.db.Rebind(query)
}

// ExecContext executes a command with context and metrics
func (d *DB) ExecContext(ctx context.Context, op, query string, args ...interface{}) (sql.Result, error) {
	defer d.observe(ctx, op, time.Now())

	result, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		d.recordError(op)
		d.logger.Error(ctx, "[DB_EXEC_ERROR] Command failed", logging.Fields{
			"op": op,
		}, err)
		return nil, err
	}

	return result, nil
}

// SelectContext executes a query that returns multiple rows
func (d *DB) SelectContext(ctx context.Context, op string, dest interface{}, query string, args ...interface{}) error {
	defer d.observe(ctx, op, time.Now())

	if err := d.db.SelectContext(ctx, dest, query, args...); err != nil {
		d.recordError(op)
		d.logger.Error(ctx, "[DB_SELECT_ERROR] Select query failed", logging.Fields{
			"op": op,
		}, err)
		return err
	}

	return nil
}

// GetContext executes a query that returns a single row
func (d *DB) GetContext(ctx context.Context, op string, dest interface{}, query string, args ...interface{}) error {
	defer d.observe(ctx, op, time.Now())

	err := d.db.GetContext(ctx, dest, query, args...)
	if err != nil && err != sql.ErrNoRows {
		d.recordError(op)
		d.logger.Error(ctx, "[DB_GET_ERROR] Get query failed", logging.Fields{
			"op": op,
		}, err)
	}

	return err
}

// Migrate applies every embedded migration for the driver that has not run yet.
// Applied versions are recorded in schema_migrations.
func (d *DB) Migrate(ctx context.Context) ([]string, error) {
	if _, err := d.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return nil, fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	var done []string
	if err := d.db.SelectContext(ctx, &done, `SELECT version FROM schema_migrations`); err != nil {
		return nil, fmt.Errorf("failed to read schema_migrations: %w", err)
	}
	applied := make(map[string]bool, len(done))
	for _, v := range done {
		applied[v] = true
	}

	files, err := migrationFiles(d.config.Driver)
	if err != nil {
		return nil, err
	}

	var ran []string
	for _, file := range files {
		version := strings.TrimSuffix(path.Base(file), ".up.sql")
		if applied[version] {
			continue
		}

		content, err := migrationFS.ReadFile(file)
		if err != nil {
			return ran, fmt.Errorf("failed to read migration %s: %w", version, err)
		}

		tx, err := d.db.BeginTxx(ctx, nil)
		if err != nil {
			return ran, fmt.Errorf("failed to begin migration %s: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			tx.Rollback()
			return ran, fmt.Errorf("failed to apply migration %s: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO schema_migrations (version) VALUES (?)`), version); err != nil {
			tx.Rollback()
			return ran, fmt.Errorf("failed to record migration %s: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return ran, fmt.Errorf("failed to commit migration %s: %w", version, err)
		}

		d.logger.Info(ctx, "[DB_MIGRATE] Migration applied", logging.Fields{
			"driver":  d.config.Driver,
			"version": version,
		})
		ran = append(ran, version)
	}

	return ran, nil
}

func migrationFiles(driver string) ([]string, error) {
	dir := "migrations/postgres"
	if driver == DriverSQLite {
		dir = "migrations/sqlite"
	}
	files, err := fs.Glob(migrationFS, dir+"/*.up.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// HealthCheck performs a database health check
func (d *DB) HealthCheck(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := d.db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}

func (d *DB) observe(ctx context.Context, op string, start time.Time) {
	duration := time.Since(start)
	if d.metrics != nil {
		d.metrics.StoreOpDuration.WithLabelValues(d.config.Driver, op).Observe(duration.Seconds())
	}
	d.logger.Debug(ctx, "[DB_QUERY] Query executed", logging.Fields{
		"op":          op,
		"duration_ms": duration.Milliseconds(),
	})
}

func (d *DB) recordError(op string) {
	if d.metrics != nil {
		d.metrics.RecordStoreError(d.config.Driver, op)
	}
}

// monitorConnectionPool periodically updates connection pool metrics
func (d *DB) monitorConnectionPool(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
		}

		stats := d.db.Stats()
		d.metrics.UpdateDBConnectionPool(stats.InUse, stats.Idle, stats.OpenConnections)

		if stats.MaxOpenConnections == 0 {
			continue
		}
		// Log warning if connection pool is near capacity
		utilization := float64(stats.InUse) / float64(stats.MaxOpenConnections)
		if utilization > 0.8 {
			d.logger.Warn(context.Background(), "[DB_POOL_WARNING] Connection pool utilization high", logging.Fields{
				"in_use":      stats.InUse,
				"idle":        stats.Idle,
				"total":       stats.OpenConnections,
				"max_open":    stats.MaxOpenConnections,
				"utilization": fmt.Sprintf("%.2f%%", utilization*100),
			})
		}
	}
}
