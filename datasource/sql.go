package datasource

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"   // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/sartorproj/gochangepoint/timeseries"
)

// SQLConfig holds database connection configuration.
type SQLConfig struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	Table           string        `yaml:"table"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
}

// DefaultSQLConfig returns an in-memory SQLite configuration.
func DefaultSQLConfig() SQLConfig {
	return SQLConfig{
		Driver:          "sqlite",
		DSN:             ":memory:",
		Table:           "prices",
		MaxOpenConns:    10,
		ConnMaxLifetime: 30 * time.Minute,
		QueryTimeout:    30 * time.Second,
	}
}

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// OpenDB opens and pings the database described by cfg. SQLite databases
// are limited to one connection so that in-memory databases are shared.
func OpenDB(ctx context.Context, cfg SQLConfig) (*sqlx.DB, error) {
	switch cfg.Driver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", cfg.Driver)
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	db, err := sqlx.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.Driver == "sqlite" {
		db.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

type priceRow struct {
	Date  string  `db:"date"`
	Value float64 `db:"value"`
}

// SQL reads the series from a two-column price table.
type SQL struct {
	db      *sqlx.DB
	table   string
	timeout time.Duration
}

// NewSQL returns a source reading table from db.
func NewSQL(db *sqlx.DB, table string, timeout time.Duration) (*SQL, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &SQL{db: db, table: table, timeout: timeout}, nil
}

// Name returns the driver and table, e.g. "sqlite:prices".
func (s *SQL) Name() string {
	return s.db.DriverName() + ":" + s.table
}

// Load selects every row ordered by date.
func (s *SQL) Load(ctx context.Context) (*timeseries.Series, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var rows []priceRow
	query := fmt.Sprintf("SELECT date, price AS value FROM %s ORDER BY date", s.table)
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, wrap(s.Name(), fmt.Errorf("select prices: %w", err))
	}
	if len(rows) == 0 {
		return nil, wrap(s.Name(), timeseries.ErrNoData)
	}

	timestamps := make([]time.Time, len(rows))
	values := make([]float64, len(rows))
	for i, r := range rows {
		d, err := parseStoredDate(r.Date)
		if err != nil {
			return nil, wrap(s.Name(), fmt.Errorf("row %d: %w", i, err))
		}
		timestamps[i] = d
		values[i] = r.Value
	}

	series, err := timeseries.NewWithTimestamps(timestamps, values)
	if err != nil {
		return nil, wrap(s.Name(), err)
	}
	return series.WithName(s.table), nil
}

// parseStoredDate accepts "2006-01-02" and longer timestamp renderings of
// a DATE column such as "2006-01-02T00:00:00Z".
func parseStoredDate(s string) (time.Time, error) {
	if len(s) > len(timeseries.DateLayout) {
		s = s[:len(timeseries.DateLayout)]
	}
	return timeseries.ParseDate(s)
}

// EnsureSchema creates the price table if it does not exist.
func EnsureSchema(ctx context.Context, db *sqlx.DB, table string) error {
	if !tableName.MatchString(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	var ddl string
	switch db.DriverName() {
	case "postgres":
		ddl = "CREATE TABLE IF NOT EXISTS %s (date DATE PRIMARY KEY, price DOUBLE PRECISION NOT NULL)"
	default:
		ddl = "CREATE TABLE IF NOT EXISTS %s (date TEXT PRIMARY KEY, price REAL NOT NULL)"
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf(ddl, table)); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}

// WriteSeries upserts every observation of series into table in a single
// transaction and returns the number of rows written.
func WriteSeries(ctx context.Context, db *sqlx.DB, table string, series *timeseries.Series) (int, error) {
	if !tableName.MatchString(table) {
		return 0, fmt.Errorf("invalid table name %q", table)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	query := db.Rebind(fmt.Sprintf(
		"INSERT INTO %s (date, price) VALUES (?, ?) ON CONFLICT (date) DO UPDATE SET price = excluded.price", table))
	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < series.Len(); i++ {
		p := series.At(i)
		if _, err := stmt.ExecContext(ctx, timeseries.FormatDate(p.Time), p.Value); err != nil {
			return 0, fmt.Errorf("insert %s: %w", timeseries.FormatDate(p.Time), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return series.Len(), nil
}
