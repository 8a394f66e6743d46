// Package gochangepoint analyses dated price series: descriptive statistics,
// rolling volatility, change-point detection and event correlation.
//
// GoChangepoint was built around weekly Brent crude prices. It loads a series
// from a pluggable source, restricts it to an inclusive date range and
// answers analysis queries over HTTP or from the command line.
//
// # Features
//
//   - Descriptive statistics (mean, median, population standard deviation)
//   - Trailing rolling volatility over a configurable window
//   - Change-point detection in the mean (PELT and single binary split)
//   - Market event catalog and event/change-point correlation
//   - Log-return diagnostics (ACF, Ljung-Box on returns and squared returns)
//   - Sources: seeded synthetic generator, CSV, SQLite/Postgres, S3 objects
//   - Redis cache and circuit breaker in front of any source
//
// # Quick Start
//
// Detect change points in a series:
//
//	series, _ := timeseries.LoadCSV("brent.csv", timeseries.DefaultCSVOptions())
//	set, _ := changepoint.Detect(series, changepoint.DefaultConfig())
//	for _, cp := range set.Points {
//	    fmt.Println(timeseries.FormatDate(cp.Time), cp.MeanBefore, cp.MeanAfter)
//	}
//
// Compute rolling volatility:
//
//	vol, _ := stats.RollingVolatility(series, 30)
//
// # Packages
//
// The library is organized into the following packages:
//
//   - timeseries: Series, date ranges and CSV input/output
//   - stats: Descriptive, rolling and autocorrelation statistics
//   - changepoint: Mean-shift change-point detection
//   - events: Market event catalog and correlation
//   - datasource: Series sources, cache and circuit breaker
//   - service: Request-level analysis operations
//   - config: YAML and environment configuration
//
// The changepoint command (cmd/changepoint) serves the HTTP API and runs
// one-off queries.
package gochangepoint
