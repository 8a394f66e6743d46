// Package stats provides descriptive and rolling statistics for price series.
package stats

import (
	"errors"
	"math"
	"sort"

	"github.com/sartorproj/gochangepoint/timeseries"
)

// ErrEmptySeries is returned when statistics are requested over zero observations.
var ErrEmptySeries = errors.New("series has no observations")

// DescriptiveStats summarizes a series. Std is the population standard deviation.
type DescriptiveStats struct {
	Mean   float64
	Median float64
	Std    float64
	Min    float64
	Max    float64
	Count  int
}

// Describe computes descriptive statistics over the series.
func Describe(series *timeseries.Series) (*DescriptiveStats, error) {
	if series.Len() == 0 {
		return nil, ErrEmptySeries
	}

	values := series.Values()
	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	return &DescriptiveStats{
		Mean:   Mean(values),
		Median: Median(values),
		Std:    PopulationStd(values),
		Min:    min,
		Max:    max,
		Count:  len(values),
	}, nil
}

// Mean calculates the arithmetic mean. It returns 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// PopulationVariance calculates the variance with divisor N.
func PopulationVariance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := Mean(values)
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return sumSq / float64(len(values))
}

// PopulationStd calculates the standard deviation with divisor N.
func PopulationStd(values []float64) float64 {
	return math.Sqrt(PopulationVariance(values))
}

// Median returns the median value. It returns NaN for an empty slice.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}
