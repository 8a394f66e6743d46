// Package timeseries provides core time series data structures and operations.
package timeseries

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrLengthMismatch is returned when timestamps and values differ in length.
	ErrLengthMismatch = errors.New("timestamps and values must have the same length")

	// ErrUnordered is returned when timestamps are not strictly increasing.
	ErrUnordered = errors.New("timestamps must be strictly increasing")

	// ErrNonFinite is returned when a value is NaN or infinite.
	ErrNonFinite = errors.New("values must be finite")
)

// Point is a single observation of a series.
type Point struct {
	Time  time.Time
	Value float64
}

// Series represents an immutable time series with strictly increasing timestamps.
// Every operation returns a new Series; the receiver is never modified.
type Series struct {
	timestamps []time.Time
	values     []float64
	name       string
}

// Epoch is the first timestamp assigned by New.
var Epoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// New creates a daily series starting at Epoch from values.
// It panics if a value is not finite; use NewWithTimestamps for untrusted input.
func New(values []float64) *Series {
	timestamps := make([]time.Time, len(values))
	for i := range timestamps {
		timestamps[i] = Epoch.AddDate(0, 0, i)
	}
	s, err := NewWithTimestamps(timestamps, values)
	if err != nil {
		panic(err)
	}
	return s
}

// NewWithTimestamps creates a time series with explicit timestamps.
// Inputs are copied and validated.
func NewWithTimestamps(timestamps []time.Time, values []float64) (*Series, error) {
	if len(timestamps) != len(values) {
		return nil, ErrLengthMismatch
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: index %d", ErrNonFinite, i)
		}
		if i > 0 && !timestamps[i].After(timestamps[i-1]) {
			return nil, fmt.Errorf("%w: %s follows %s", ErrUnordered,
				FormatDate(timestamps[i]), FormatDate(timestamps[i-1]))
		}
	}

	ts := make([]time.Time, len(timestamps))
	copy(ts, timestamps)
	vs := make([]float64, len(values))
	copy(vs, values)

	return &Series{timestamps: ts, values: vs}, nil
}

// FromPoints creates a series from a slice of points.
func FromPoints(points []Point) (*Series, error) {
	timestamps := make([]time.Time, len(points))
	values := make([]float64, len(points))
	for i, p := range points {
		timestamps[i] = p.Time
		values[i] = p.Value
	}
	return NewWithTimestamps(timestamps, values)
}

// Len returns the length of the series.
func (s *Series) Len() int {
	return len(s.values)
}

// Name returns the series name.
func (s *Series) Name() string {
	return s.name
}

// WithName returns a copy of the series carrying name.
func (s *Series) WithName(name string) *Series {
	c := s.Copy()
	c.name = name
	return c
}

// At returns the i-th observation.
func (s *Series) At(i int) Point {
	return Point{Time: s.timestamps[i], Value: s.values[i]}
}

// Values returns a copy of the observed values.
func (s *Series) Values() []float64 {
	out := make([]float64, len(s.values))
	copy(out, s.values)
	return out
}

// Timestamps returns a copy of the timestamps.
func (s *Series) Timestamps() []time.Time {
	out := make([]time.Time, len(s.timestamps))
	copy(out, s.timestamps)
	return out
}

// Points returns the series as a slice of points.
func (s *Series) Points() []Point {
	out := make([]Point, len(s.values))
	for i := range s.values {
		out[i] = s.At(i)
	}
	return out
}

// Dates returns the timestamps formatted as YYYY-MM-DD.
func (s *Series) Dates() []string {
	out := make([]string, len(s.timestamps))
	for i, t := range s.timestamps {
		out[i] = FormatDate(t)
	}
	return out
}

// Slice returns a slice of the series from start to end (exclusive).
func (s *Series) Slice(start, end int) *Series {
	if start < 0 {
		start = 0
	}
	if end > len(s.values) {
		end = len(s.values)
	}
	if start >= end {
		return &Series{timestamps: []time.Time{}, values: []float64{}, name: s.name}
	}

	values := make([]float64, end-start)
	copy(values, s.values[start:end])

	timestamps := make([]time.Time, len(values))
	copy(timestamps, s.timestamps[start:end])

	return &Series{
		timestamps: timestamps,
		values:     values,
		name:       s.name,
	}
}

// Copy creates a deep copy of the series.
func (s *Series) Copy() *Series {
	return s.Slice(0, len(s.values))
}

// Equal reports whether two series hold the same observations.
func (s *Series) Equal(other *Series) bool {
	if s.Len() != other.Len() {
		return false
	}
	for i := range s.values {
		if s.values[i] != other.values[i] || !s.timestamps[i].Equal(other.timestamps[i]) {
			return false
		}
	}
	return true
}
