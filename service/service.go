// Package service composes loading, filtering, statistics and change-point
// detection into the request-level operations used by the HTTP API and the CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sartorproj/gochangepoint/changepoint"
	"github.com/sartorproj/gochangepoint/datasource"
	"github.com/sartorproj/gochangepoint/events"
	"github.com/sartorproj/gochangepoint/stats"
	"github.com/sartorproj/gochangepoint/timeseries"
)

// ErrInvalidParameter is returned for request parameters outside their domain.
var ErrInvalidParameter = errors.New("invalid parameter")

// Target selects the series change points are detected on.
type Target string

const (
	// TargetPrice detects shifts in the price level.
	TargetPrice Target = "price"
	// TargetVolatility detects shifts in the rolling volatility of prices.
	TargetVolatility Target = "volatility"
)

// ParseTarget parses a target name. Empty selects TargetPrice.
func ParseTarget(s string) (Target, error) {
	switch Target(strings.ToLower(strings.TrimSpace(s))) {
	case "", TargetPrice:
		return TargetPrice, nil
	case TargetVolatility:
		return TargetVolatility, nil
	}
	return "", fmt.Errorf("%w: unknown target %q", ErrInvalidParameter, s)
}

// Config holds analysis defaults.
type Config struct {
	VolatilityWindow int                `yaml:"volatility_window"`
	ChangePoint      changepoint.Config `yaml:"changepoint"`
	ToleranceDays    int                `yaml:"tolerance_days"`
	// DiagnosticLags is the number of autocorrelation lags reported by Diagnostics.
	DiagnosticLags int `yaml:"diagnostic_lags"`
}

// DefaultConfig returns a 30-observation window, the default detector, a
// 30-day tolerance and 12 diagnostic lags.
func DefaultConfig() Config {
	return Config{
		VolatilityWindow: 30,
		ChangePoint:      changepoint.DefaultConfig(),
		ToleranceDays:    30,
		DiagnosticLags:   12,
	}
}

// Validate checks the defaults.
func (c Config) Validate() error {
	if c.VolatilityWindow < 1 {
		return fmt.Errorf("%w: volatility window must be at least 1, got %d", stats.ErrInvalidWindow, c.VolatilityWindow)
	}
	if c.ToleranceDays < 0 {
		return fmt.Errorf("%w: tolerance days must not be negative, got %d", ErrInvalidParameter, c.ToleranceDays)
	}
	if c.DiagnosticLags < 1 {
		return fmt.Errorf("%w: diagnostic lags must be at least 1, got %d", stats.ErrInvalidLag, c.DiagnosticLags)
	}
	return c.ChangePoint.Validate()
}

// DetectionObserver is notified after every detection run.
type DetectionObserver interface {
	ObserveDetection(method string, points int, elapsed time.Duration)
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithDetectionObserver sets the detection observer.
func WithDetectionObserver(o DetectionObserver) Option {
	return func(s *Service) { s.observer = o }
}

// Service answers analysis requests against a data source. It holds no
// per-request state and is safe for concurrent use.
type Service struct {
	source   datasource.Source
	catalog  *events.Catalog
	cfg      Config
	observer DetectionObserver
	logger   zerolog.Logger
}

// New returns a Service. A nil catalog uses the built-in events.
func New(source datasource.Source, catalog *events.Catalog, cfg Config, opts ...Option) *Service {
	if catalog == nil {
		catalog = events.Default()
	}
	s := &Service{
		source:  source,
		catalog: catalog,
		cfg:     cfg,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the analysis defaults.
func (s *Service) Config() Config {
	return s.cfg
}

// SourceName returns the name of the underlying data source.
func (s *Service) SourceName() string {
	return s.source.Name()
}

// Series loads the full series and restricts it to r.
func (s *Service) Series(ctx context.Context, r timeseries.DateRange) (*timeseries.Series, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	full, err := s.source.Load(ctx)
	if err != nil {
		return nil, err
	}
	return timeseries.Filter(full, r), nil
}

// Statistics summarizes the prices inside a date range.
type Statistics struct {
	stats.DescriptiveStats
	// Volatility is the population standard deviation over the whole range.
	Volatility float64
	// ChangePoints counts boundaries found with the default detector.
	ChangePoints int
}

// Statistics describes the series inside r. An empty selection returns stats.ErrEmptySeries.
func (s *Service) Statistics(ctx context.Context, r timeseries.DateRange) (*Statistics, error) {
	series, err := s.Series(ctx, r)
	if err != nil {
		return nil, err
	}
	desc, err := stats.Describe(series)
	if err != nil {
		return nil, err
	}
	set, err := s.detect(series, s.cfg.ChangePoint)
	if err != nil {
		return nil, err
	}
	return &Statistics{
		DescriptiveStats: *desc,
		Volatility:       desc.Std,
		ChangePoints:     set.Len(),
	}, nil
}

// Volatility computes the rolling volatility of the series inside r.
func (s *Service) Volatility(ctx context.Context, r timeseries.DateRange, window int) (*stats.RollingResult, error) {
	if window <= 0 {
		return nil, fmt.Errorf("%w: got %d", stats.ErrInvalidWindow, window)
	}
	series, err := s.Series(ctx, r)
	if err != nil {
		return nil, err
	}
	return stats.RollingVolatility(series, window)
}

// ChangePointRequest describes a detection request.
type ChangePointRequest struct {
	Range  timeseries.DateRange
	Config changepoint.Config
	Target Target
	// Window is the rolling window used when Target is TargetVolatility.
	Window int
}

// DefaultRequest returns a change point request over r with the configured defaults.
func (s *Service) DefaultRequest(r timeseries.DateRange) ChangePointRequest {
	return ChangePointRequest{
		Range:  r,
		Config: s.cfg.ChangePoint,
		Target: TargetPrice,
		Window: s.cfg.VolatilityWindow,
	}
}

// ChangePointResult holds the analysed series and the detected boundaries.
type ChangePointResult struct {
	Target Target
	Series *timeseries.Series
	Set    *changepoint.Set
}

// ChangePoints detects boundaries on the price or rolling-volatility series inside the range.
func (s *Service) ChangePoints(ctx context.Context, req ChangePointRequest) (*ChangePointResult, error) {
	target, err := ParseTarget(string(req.Target))
	if err != nil {
		return nil, err
	}
	if err := req.Config.Validate(); err != nil {
		return nil, err
	}

	series, err := s.Series(ctx, req.Range)
	if err != nil {
		return nil, err
	}
	if target == TargetVolatility {
		if req.Window <= 0 {
			return nil, fmt.Errorf("%w: got %d", stats.ErrInvalidWindow, req.Window)
		}
		vol, err := stats.RollingVolatility(series, req.Window)
		if err != nil {
			return nil, err
		}
		if series, err = vol.Series(); err != nil {
			return nil, err
		}
	}

	set, err := s.detect(series, req.Config)
	if err != nil {
		return nil, err
	}
	return &ChangePointResult{Target: target, Series: series, Set: set}, nil
}

func (s *Service) detect(series *timeseries.Series, cfg changepoint.Config) (*changepoint.Set, error) {
	start := time.Now()
	set, err := changepoint.Detect(series, cfg)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)
	if s.observer != nil {
		s.observer.ObserveDetection(string(set.Method), set.Len(), elapsed)
	}
	s.logger.Debug().
		Str("method", string(set.Method)).
		Int("observations", series.Len()).
		Int("change_points", set.Len()).
		Dur("elapsed", elapsed).
		Msg("Change point detection finished")
	return set, nil
}

// Events returns the catalog events inside r.
func (s *Service) Events(r timeseries.DateRange) ([]events.Event, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return s.catalog.Filter(r), nil
}

// Correlate detects change points for req and pairs every event inside the
// range with its nearest boundary.
func (s *Service) Correlate(ctx context.Context, req ChangePointRequest, toleranceDays int) ([]events.Correlation, error) {
	if toleranceDays < 0 {
		return nil, fmt.Errorf("%w: tolerance days must not be negative, got %d", ErrInvalidParameter, toleranceDays)
	}
	res, err := s.ChangePoints(ctx, req)
	if err != nil {
		return nil, err
	}
	evs, err := s.Events(req.Range)
	if err != nil {
		return nil, err
	}
	return events.Correlate(evs, res.Set.Points, toleranceDays), nil
}

// Diagnostics describes the autocorrelation of weekly log returns. A
// significant Ljung-Box test on squared returns indicates volatility
// clustering.
type Diagnostics struct {
	Observations   int
	Lags           int
	ACF            []float64
	SquaredACF     []float64
	Bound          float64
	Significant    []int
	Returns        *stats.LjungBoxResult
	SquaredReturns *stats.LjungBoxResult
}

// Diagnostics tests the log returns of the series inside r for
// autocorrelation up to lags.
func (s *Service) Diagnostics(ctx context.Context, r timeseries.DateRange, lags int) (*Diagnostics, error) {
	if lags < 1 {
		return nil, fmt.Errorf("%w: got %d", stats.ErrInvalidLag, lags)
	}
	series, err := s.Series(ctx, r)
	if err != nil {
		return nil, err
	}
	returns, err := stats.LogReturns(series)
	if err != nil {
		return nil, err
	}

	values := returns.Values()
	squared := make([]float64, len(values))
	for i, v := range values {
		squared[i] = v * v
	}

	acf, err := stats.ACF(values, lags)
	if err != nil {
		return nil, err
	}
	sqACF, err := stats.ACF(squared, lags)
	if err != nil {
		return nil, err
	}
	lb, err := stats.LjungBox(values, lags)
	if err != nil {
		return nil, err
	}
	sqLB, err := stats.LjungBox(squared, lags)
	if err != nil {
		return nil, err
	}

	bound := stats.ConfidenceBound(len(values))
	return &Diagnostics{
		Observations:   len(values),
		Lags:           len(acf) - 1,
		ACF:            acf,
		SquaredACF:     sqACF,
		Bound:          bound,
		Significant:    stats.SignificantLags(acf, bound),
		Returns:        lb,
		SquaredReturns: sqLB,
	}, nil
}
