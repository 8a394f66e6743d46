// Package changepoint detects mean shifts in a price series.
package changepoint

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/sartorproj/gochangepoint/stats"
	"github.com/sartorproj/gochangepoint/timeseries"
)

// ErrInvalidConfig is returned for a configuration that cannot be used for detection.
var ErrInvalidConfig = errors.New("invalid change point configuration")

// Method selects the detection variant.
type Method string

const (
	// MethodPELT finds any number of change points (Pruned Exact Linear Time).
	MethodPELT Method = "pelt"
	// MethodSingle finds at most one change point.
	MethodSingle Method = "single"
)

// ParseMethod parses a method name. An empty name selects MethodPELT.
func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(s))) {
	case "", MethodPELT:
		return MethodPELT, nil
	case MethodSingle:
		return MethodSingle, nil
	}
	return "", fmt.Errorf("%w: unknown method %q", ErrInvalidConfig, s)
}

// Config controls detection sensitivity.
type Config struct {
	Method Method `yaml:"method"`

	// MinSegment is the minimum number of observations between boundaries.
	MinSegment int `yaml:"min_segment"`

	// Penalty multiplies σ²·ln(n), where σ² is the population variance of the
	// analysed series. Larger values report fewer boundaries.
	Penalty float64 `yaml:"penalty"`

	// MaxPoints keeps only the highest scoring boundaries. Zero means no limit.
	MaxPoints int `yaml:"max_points"`
}

// DefaultConfig returns a BIC-like configuration for weekly data.
func DefaultConfig() Config {
	return Config{
		Method:     MethodPELT,
		MinSegment: 8,
		Penalty:    2.0,
		MaxPoints:  0,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if _, err := ParseMethod(string(c.Method)); err != nil {
		return err
	}
	if c.MinSegment < 1 {
		return fmt.Errorf("%w: min segment must be at least 1, got %d", ErrInvalidConfig, c.MinSegment)
	}
	if c.Penalty <= 0 || math.IsNaN(c.Penalty) || math.IsInf(c.Penalty, 0) {
		return fmt.Errorf("%w: penalty must be a positive number, got %v", ErrInvalidConfig, c.Penalty)
	}
	if c.MaxPoints < 0 {
		return fmt.Errorf("%w: max points must not be negative, got %d", ErrInvalidConfig, c.MaxPoints)
	}
	return nil
}

// ChangePoint is a boundary: the first index of a new segment.
type ChangePoint struct {
	Index      int
	Time       time.Time
	MeanBefore float64
	MeanAfter  float64
	// Gain is the reduction in squared error obtained by splitting the
	// surrounding segment at Index.
	Gain float64
	// Score is Gain divided by the penalty.
	Score float64
}

// Set is the result of a detection run.
type Set struct {
	Method  Method
	Penalty float64 // absolute penalty applied per boundary
	Points  []ChangePoint
}

// Len returns the number of detected boundaries.
func (s *Set) Len() int {
	return len(s.Points)
}

// Indices returns the boundary indices in increasing order.
func (s *Set) Indices() []int {
	out := make([]int, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Index
	}
	return out
}

// Detect finds mean-shift boundaries in series.
// Detection is deterministic. Among candidates with equal cost the earliest
// boundary wins. A series shorter than twice MinSegment yields an empty set.
func Detect(series *timeseries.Series, cfg Config) (*Set, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	method, _ := ParseMethod(string(cfg.Method))

	values := series.Values()
	n := len(values)
	set := &Set{Method: method, Points: []ChangePoint{}}
	if n < 2*cfg.MinSegment {
		return set, nil
	}

	variance := stats.PopulationVariance(values)
	if variance == 0 {
		return set, nil
	}
	beta := cfg.Penalty * variance * math.Log(float64(n))
	set.Penalty = beta

	c := newCost(values)

	var indices []int
	switch method {
	case MethodSingle:
		indices = c.single(cfg.MinSegment, beta)
	default:
		indices = c.pelt(cfg.MinSegment, beta)
	}

	points := c.annotate(series, indices, beta)
	if cfg.MaxPoints > 0 && len(points) > cfg.MaxPoints {
		points = c.annotate(series, strongest(points, cfg.MaxPoints), beta)
	}
	set.Points = points

	return set, nil
}

// strongest keeps the k highest scoring boundaries and returns their indices in order.
func strongest(points []ChangePoint, k int) []int {
	ranked := make([]ChangePoint, len(points))
	copy(ranked, points)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Index < ranked[j].Index
	})

	indices := make([]int, k)
	for i := 0; i < k; i++ {
		indices[i] = ranked[i].Index
	}
	sort.Ints(indices)
	return indices
}

// annotate computes means, gain and score for each boundary given its neighbours.
func (c *cost) annotate(series *timeseries.Series, indices []int, beta float64) []ChangePoint {
	points := make([]ChangePoint, 0, len(indices))
	for i, k := range indices {
		a := 0
		if i > 0 {
			a = indices[i-1]
		}
		b := c.n
		if i < len(indices)-1 {
			b = indices[i+1]
		}

		gain := c.segment(a, b) - c.segment(a, k) - c.segment(k, b)
		if gain < 0 {
			gain = 0
		}
		points = append(points, ChangePoint{
			Index:      k,
			Time:       series.At(k).Time,
			MeanBefore: c.mean(a, k),
			MeanAfter:  c.mean(k, b),
			Gain:       gain,
			Score:      gain / beta,
		})
	}
	return points
}
