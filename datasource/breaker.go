package datasource

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/sartorproj/gochangepoint/timeseries"
)

// BreakerConfig configures the circuit breaker around a source.
type BreakerConfig struct {
	Enabled             bool          `yaml:"enabled"`
	MaxRequests         uint32        `yaml:"max_requests"`
	Interval            time.Duration `yaml:"interval"`
	Timeout             time.Duration `yaml:"timeout"`
	ConsecutiveFailures uint32        `yaml:"consecutive_failures"`
}

// DefaultBreakerConfig trips after five consecutive failures and probes again after 30s.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Enabled:             true,
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// ErrCircuitOpen is matched by loads rejected without reaching the source.
var ErrCircuitOpen = errors.New("circuit open")

// Guarded stops calling a failing source until the breaker timeout elapses.
type Guarded struct {
	inner Source
	cb    *gobreaker.CircuitBreaker
}

// NewGuarded wraps inner with a circuit breaker.
func NewGuarded(inner Source, cfg BreakerConfig, logger zerolog.Logger) *Guarded {
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 1
	}
	settings := gobreaker.Settings{
		Name:        inner.Name(),
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("source", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	}
	return &Guarded{inner: inner, cb: gobreaker.NewCircuitBreaker(settings)}
}

// Name returns the wrapped source name.
func (g *Guarded) Name() string {
	return g.inner.Name()
}

// State reports the breaker state: "closed", "half-open" or "open".
func (g *Guarded) State() string {
	return g.cb.State().String()
}

// Load calls the wrapped source unless the breaker is open.
func (g *Guarded) Load(ctx context.Context) (*timeseries.Series, error) {
	res, err := g.cb.Execute(func() (interface{}, error) {
		return g.inner.Load(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &Error{Source: g.Name(), Err: errors.Join(ErrCircuitOpen, err)}
		}
		return nil, wrap(g.Name(), err)
	}
	return res.(*timeseries.Series), nil
}
