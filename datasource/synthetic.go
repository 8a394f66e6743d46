package datasource

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sartorproj/gochangepoint/timeseries"
)

// SyntheticConfig describes the generated demo series.
type SyntheticConfig struct {
	Seed       uint64  `yaml:"seed"`
	Start      string  `yaml:"start"`
	End        string  `yaml:"end"`
	StepDays   int     `yaml:"step_days"`
	Base       float64 `yaml:"base"`
	Amplitude  float64 `yaml:"amplitude"`
	PeriodDays float64 `yaml:"period_days"`
	Noise      float64 `yaml:"noise"`
	Floor      float64 `yaml:"floor"`
}

// DefaultSyntheticConfig returns weekly Brent-like prices for 2020 through 2023.
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		Seed:       42,
		Start:      "2020-01-01",
		End:        "2023-12-31",
		StepDays:   7,
		Base:       60,
		Amplitude:  20,
		PeriodDays: 365,
		Noise:      5,
		Floor:      10,
	}
}

// Synthetic generates a sinusoidal price series with Gaussian noise.
// The generator is seeded, so every Load returns the same series.
type Synthetic struct {
	cfg   SyntheticConfig
	start time.Time
	end   time.Time
}

// NewSynthetic validates cfg and returns a generator.
func NewSynthetic(cfg SyntheticConfig) (*Synthetic, error) {
	start, err := timeseries.ParseDate(cfg.Start)
	if err != nil {
		return nil, fmt.Errorf("synthetic start: %w", err)
	}
	end, err := timeseries.ParseDate(cfg.End)
	if err != nil {
		return nil, fmt.Errorf("synthetic end: %w", err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("synthetic range: %w", timeseries.ErrInvalidDateRange)
	}
	if cfg.StepDays < 1 {
		return nil, fmt.Errorf("synthetic step must be at least one day, got %d", cfg.StepDays)
	}
	if cfg.PeriodDays <= 0 {
		return nil, fmt.Errorf("synthetic period must be positive, got %v", cfg.PeriodDays)
	}
	if cfg.Noise < 0 {
		return nil, fmt.Errorf("synthetic noise must not be negative, got %v", cfg.Noise)
	}
	return &Synthetic{cfg: cfg, start: start, end: end}, nil
}

// Name returns "synthetic".
func (s *Synthetic) Name() string {
	return "synthetic"
}

// Load generates the series.
func (s *Synthetic) Load(ctx context.Context) (*timeseries.Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrap(s.Name(), err)
	}

	rng := rand.New(rand.NewPCG(s.cfg.Seed, s.cfg.Seed^0x9e3779b97f4a7c15))

	var timestamps []time.Time
	var values []float64
	for d := s.start; !d.After(s.end); d = d.AddDate(0, 0, s.cfg.StepDays) {
		days := d.Sub(s.start).Hours() / 24
		base := s.cfg.Base + math.Sin(days/s.cfg.PeriodDays*2*math.Pi)*s.cfg.Amplitude
		price := math.Max(s.cfg.Floor, base+rng.NormFloat64()*s.cfg.Noise)

		timestamps = append(timestamps, d)
		values = append(values, decimal.NewFromFloat(price).RoundBank(2).InexactFloat64())
	}

	series, err := timeseries.NewWithTimestamps(timestamps, values)
	if err != nil {
		return nil, wrap(s.Name(), err)
	}
	return series.WithName("synthetic"), nil
}
