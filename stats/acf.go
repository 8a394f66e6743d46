package stats

import (
	"errors"
	"fmt"
	"math"

	"github.com/sartorproj/gochangepoint/timeseries"
)

// ErrConstantSeries is returned when autocorrelation is undefined because
// every observation equals the mean.
var ErrConstantSeries = errors.New("series has zero variance")

// ErrTooShort is returned when a series is non-empty but too short for the
// requested statistic.
var ErrTooShort = errors.New("series too short")

// ErrNonPositivePrice is returned when a log return is requested across a
// zero or negative price.
var ErrNonPositivePrice = errors.New("price must be positive")

// ErrInvalidLag is returned for a non-positive lag count.
var ErrInvalidLag = errors.New("lag count must be a positive integer")

// LogReturns returns ln(p[i]/p[i-1]) for every consecutive pair of prices.
// The result has one fewer point than the series and each return carries the
// later timestamp. Non-positive prices fail.
func LogReturns(series *timeseries.Series) (*timeseries.Series, error) {
	n := series.Len()
	if n == 0 {
		return nil, ErrEmptySeries
	}
	if n < 2 {
		return nil, fmt.Errorf("%w: log returns need 2 prices, got %d", ErrTooShort, n)
	}
	points := make([]timeseries.Point, 0, n-1)
	prev := series.At(0)
	for i := 1; i < n; i++ {
		cur := series.At(i)
		if prev.Value <= 0 || cur.Value <= 0 {
			return nil, fmt.Errorf("%w: log return at %s", ErrNonPositivePrice, timeseries.FormatDate(cur.Time))
		}
		points = append(points, timeseries.Point{Time: cur.Time, Value: math.Log(cur.Value / prev.Value)})
		prev = cur
	}
	out, err := timeseries.FromPoints(points)
	if err != nil {
		return nil, err
	}
	return out.WithName(series.Name()), nil
}

// ACF calculates the sample autocorrelation for lags 0 to maxLag. maxLag is
// clamped to len(values)-1.
func ACF(values []float64, maxLag int) ([]float64, error) {
	n := len(values)
	if n == 0 {
		return nil, ErrEmptySeries
	}
	if maxLag < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLag, maxLag)
	}
	if maxLag >= n {
		maxLag = n - 1
	}

	mean := Mean(values)
	denom := 0.0
	for _, v := range values {
		d := v - mean
		denom += d * d
	}
	if denom == 0 {
		return nil, ErrConstantSeries
	}

	acf := make([]float64, maxLag+1)
	for k := 0; k <= maxLag; k++ {
		sum := 0.0
		for i := k; i < n; i++ {
			sum += (values[i] - mean) * (values[i-k] - mean)
		}
		acf[k] = sum / denom
	}
	return acf, nil
}

// ConfidenceBound is the approximate 95% bound ±1.96/√n for white noise.
func ConfidenceBound(n int) float64 {
	if n <= 0 {
		return math.Inf(1)
	}
	return 1.96 / math.Sqrt(float64(n))
}

// SignificantLags returns the lags (excluding 0) where |acf| exceeds bound.
func SignificantLags(acf []float64, bound float64) []int {
	significant := []int{}
	for k := 1; k < len(acf); k++ {
		if math.Abs(acf[k]) > bound {
			significant = append(significant, k)
		}
	}
	return significant
}
