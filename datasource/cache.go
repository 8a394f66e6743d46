package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang/snappy"
	"github.com/rs/zerolog"

	"github.com/sartorproj/gochangepoint/timeseries"
)

// CacheConfig holds Redis cache configuration.
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	KeyPrefix string        `yaml:"key_prefix"`
	TTL       time.Duration `yaml:"ttl"`
}

// DefaultCacheConfig returns a disabled cache on the local Redis.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Addr:      "localhost:6379",
		KeyPrefix: "gochangepoint:",
		TTL:       10 * time.Minute,
	}
}

// NewRedisClient returns a pooled client for cfg.
func NewRedisClient(cfg CacheConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		MaxRetries:   3,
	})
}

type cachedSeries struct {
	Name   string    `json:"name"`
	Times  []string  `json:"times"`
	Values []float64 `json:"values"`
}

func encodeSeries(s *timeseries.Series) ([]byte, error) {
	ts := s.Timestamps()
	times := make([]string, len(ts))
	for i, t := range ts {
		times[i] = t.Format(time.RFC3339Nano)
	}
	raw, err := json.Marshal(cachedSeries{Name: s.Name(), Times: times, Values: s.Values()})
	if err != nil {
		return nil, err
	}
	return snappy.Encode(nil, raw), nil
}

func decodeSeries(payload []byte) (*timeseries.Series, error) {
	raw, err := snappy.Decode(nil, payload)
	if err != nil {
		return nil, fmt.Errorf("snappy: %w", err)
	}
	var c cachedSeries
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("json: %w", err)
	}
	if len(c.Times) != len(c.Values) {
		return nil, timeseries.ErrLengthMismatch
	}
	timestamps := make([]time.Time, len(c.Times))
	for i, v := range c.Times {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, err
		}
		timestamps[i] = t
	}
	s, err := timeseries.NewWithTimestamps(timestamps, c.Values)
	if err != nil {
		return nil, err
	}
	return s.WithName(c.Name), nil
}

// Cached keeps the last loaded series in Redis as snappy-compressed JSON.
// Redis failures are logged and fall through to the wrapped source.
type Cached struct {
	inner    Source
	client   redis.Cmdable
	key      string
	ttl      time.Duration
	observer Observer
	logger   zerolog.Logger
}

// NewCached wraps inner with a Redis cache under prefix + inner.Name().
func NewCached(inner Source, client redis.Cmdable, prefix string, ttl time.Duration, observer Observer, logger zerolog.Logger) *Cached {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Cached{
		inner:    inner,
		client:   client,
		key:      prefix + "series:" + inner.Name(),
		ttl:      ttl,
		observer: observer,
		logger:   logger.With().Str("component", "cache").Str("key", prefix+"series:"+inner.Name()).Logger(),
	}
}

// Name returns the wrapped source name.
func (c *Cached) Name() string {
	return c.inner.Name()
}

// Key returns the Redis key.
func (c *Cached) Key() string {
	return c.key
}

// Load returns the cached series if present, otherwise loads and caches it.
func (c *Cached) Load(ctx context.Context) (*timeseries.Series, error) {
	payload, err := c.client.Get(ctx, c.key).Bytes()
	switch {
	case err == nil:
		s, derr := decodeSeries(payload)
		if derr == nil {
			c.observer.ObserveCache(c.inner.Name(), true)
			return s, nil
		}
		c.logger.Warn().Err(derr).Msg("Discarding undecodable cache entry")
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn().Err(err).Msg("Cache read failed")
	}
	c.observer.ObserveCache(c.inner.Name(), false)

	s, err := c.inner.Load(ctx)
	if err != nil {
		return nil, err
	}

	payload, err = encodeSeries(s)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Cache encode failed")
		return s, nil
	}
	if err := c.client.Set(ctx, c.key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("Cache write failed")
	}
	return s, nil
}

// Invalidate removes the cached entry.
func (c *Cached) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, c.key).Err()
}
