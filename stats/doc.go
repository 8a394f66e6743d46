// Package stats provides descriptive and rolling statistics for price series.
//
// All functions are pure: they read an immutable series and return new
// values.
//
// # Descriptive Statistics
//
//	d, err := stats.Describe(series)
//	if errors.Is(err, stats.ErrEmptySeries) {
//	    // nothing to summarize
//	}
//	fmt.Printf("mean=%.2f median=%.2f std=%.2f\n", d.Mean, d.Median, d.Std)
//
// Std is the population standard deviation (divisor N).
//
// # Rolling Volatility
//
// RollingVolatility reports, at every index i >= window, the standard
// deviation of the window values that precede i:
//
//	vol, err := stats.RollingVolatility(series, 30)
//
// A window of zero or less fails with ErrInvalidWindow. A window at least
// as long as the series is valid and yields an empty result.
//
// # Return Diagnostics
//
// LogReturns converts prices to ln(p[i]/p[i-1]). ACF and LjungBox test the
// returns, or their squares, for serial dependence:
//
//	r, _ := stats.LogReturns(series)
//	lb, err := stats.LjungBox(r.Values(), 12)
//	if err == nil && lb.Rejects(0.05) {
//	    // returns are autocorrelated
//	}
//
// LjungBox needs at least 10 observations and fails with ErrTooShort below
// that.
package stats
