package datasource

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Source kinds accepted by Config.Kind.
const (
	KindSynthetic = "synthetic"
	KindCSV       = "csv"
	KindSQL       = "sql"
	KindS3        = "s3"
)

// Config selects and configures the series source and its decorators.
type Config struct {
	Kind      string          `yaml:"kind"`
	Synthetic SyntheticConfig `yaml:"synthetic"`
	CSV       CSVConfig       `yaml:"csv"`
	SQL       SQLConfig       `yaml:"sql"`
	S3        S3Config        `yaml:"s3"`
	Cache     CacheConfig     `yaml:"cache"`
	Breaker   BreakerConfig   `yaml:"breaker"`
}

// DefaultConfig returns the seeded synthetic source with the breaker
// enabled and the cache disabled.
func DefaultConfig() Config {
	return Config{
		Kind:      KindSynthetic,
		Synthetic: DefaultSyntheticConfig(),
		SQL:       DefaultSQLConfig(),
		Cache:     DefaultCacheConfig(),
		Breaker:   DefaultBreakerConfig(),
	}
}

// Validate checks the settings of the selected kind.
func (c Config) Validate() error {
	switch c.Kind {
	case KindSynthetic:
		_, err := NewSynthetic(c.Synthetic)
		return err
	case KindCSV:
		if c.CSV.Path == "" {
			return errors.New("source.csv.path is required")
		}
	case KindSQL:
		if c.SQL.Driver != "sqlite" && c.SQL.Driver != "postgres" {
			return fmt.Errorf("source.sql.driver must be sqlite or postgres, got %q", c.SQL.Driver)
		}
		if c.SQL.DSN == "" {
			return errors.New("source.sql.dsn is required")
		}
		if !tableName.MatchString(c.SQL.Table) {
			return fmt.Errorf("source.sql.table %q is not a valid identifier", c.SQL.Table)
		}
	case KindS3:
		if c.S3.Bucket == "" || c.S3.Key == "" {
			return errors.New("source.s3.bucket and source.s3.key are required")
		}
	default:
		return fmt.Errorf("unknown source kind %q", c.Kind)
	}
	if c.Cache.Enabled && c.Cache.Addr == "" {
		return errors.New("source.cache.addr is required when the cache is enabled")
	}
	return nil
}

// Open builds the configured source chain:
// breaker, then cache, then the observed backend. The returned close
// function releases database and Redis connections.
func Open(ctx context.Context, cfg Config, observer Observer, logger zerolog.Logger) (Source, func() error, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	var closers []func() error
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	var base Source
	switch cfg.Kind {
	case KindSynthetic:
		s, err := NewSynthetic(cfg.Synthetic)
		if err != nil {
			return nil, nil, err
		}
		base = s
	case KindCSV:
		base = NewCSVFile(cfg.CSV)
	case KindSQL:
		db, err := OpenDB(ctx, cfg.SQL)
		if err != nil {
			return nil, nil, wrap(cfg.SQL.Driver, err)
		}
		closers = append(closers, db.Close)
		s, err := NewSQL(db, cfg.SQL.Table, cfg.SQL.QueryTimeout)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		base = s
	case KindS3:
		client, err := NewS3Client(ctx, cfg.S3)
		if err != nil {
			return nil, nil, wrap("s3", err)
		}
		s, err := NewS3Object(client, cfg.S3.Bucket, cfg.S3.Key)
		if err != nil {
			return nil, nil, err
		}
		base = s
	}

	var src Source = NewObserved(base, observer)
	if cfg.Cache.Enabled {
		client := NewRedisClient(cfg.Cache)
		closers = append(closers, client.Close)
		src = NewCached(src, client, cfg.Cache.KeyPrefix, cfg.Cache.TTL, observer, logger)
	}
	if cfg.Breaker.Enabled {
		src = NewGuarded(src, cfg.Breaker, logger)
	}

	logger.Info().
		Str("source", src.Name()).
		Bool("cache", cfg.Cache.Enabled).
		Bool("breaker", cfg.Breaker.Enabled).
		Msg("Data source ready")
	return src, closeAll, nil
}
