package stats

import (
	"errors"
	"fmt"

	"github.com/sartorproj/gochangepoint/timeseries"
)

// ErrInvalidWindow is returned for a non-positive window size.
var ErrInvalidWindow = errors.New("window size must be a positive integer")

// RollingResult holds one statistic per valid window position.
type RollingResult struct {
	Window int
	Points []timeseries.Point
}

// Len returns the number of window positions.
func (r *RollingResult) Len() int {
	return len(r.Points)
}

// Series converts the result into a series so it can be analysed further.
func (r *RollingResult) Series() (*timeseries.Series, error) {
	return timeseries.FromPoints(r.Points)
}

// RollingVolatility computes the trailing population standard deviation.
// For each index i in [window, n) it emits (timestamp[i], std(values[i-window:i])).
// The window excludes the point it is reported at.
// A window of at least the series length yields an empty result, not an error.
func RollingVolatility(series *timeseries.Series, window int) (*RollingResult, error) {
	return rolling(series, window, PopulationStd)
}

// RollingMean computes the trailing mean with the same windowing as RollingVolatility.
func RollingMean(series *timeseries.Series, window int) (*RollingResult, error) {
	return rolling(series, window, Mean)
}

func rolling(series *timeseries.Series, window int, fn func([]float64) float64) (*RollingResult, error) {
	if window <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWindow, window)
	}

	n := series.Len()
	if window >= n {
		return &RollingResult{Window: window, Points: []timeseries.Point{}}, nil
	}

	values := series.Values()
	points := make([]timeseries.Point, 0, n-window)
	for i := window; i < n; i++ {
		points = append(points, timeseries.Point{
			Time:  series.At(i).Time,
			Value: fn(values[i-window : i]),
		})
	}

	return &RollingResult{Window: window, Points: points}, nil
}
