// Package timeseries provides time series data structures and utilities.
//
// This package includes the immutable Series type for representing dated
// price observations, the DateRange type for inclusive range queries, and
// CSV loading and saving.
//
// # Creating a Series
//
// Create a series from explicit dates and values:
//
//	series, err := timeseries.NewWithTimestamps(dates, prices)
//
// Timestamps must be strictly increasing and values finite. For tests and
// examples, New assigns consecutive days starting at Epoch:
//
//	series := timeseries.New([]float64{10, 20, 30, 40})
//
// # Range Filtering
//
// Dates cross the API boundary as YYYY-MM-DD strings and are parsed into
// time.Time before any comparison:
//
//	r, err := timeseries.ParseDateRange("2022-01-01", "2022-12-31")
//	view := timeseries.Filter(series, r)
//
// Either side may be left empty. Filtering is inclusive on both ends and an
// empty result is not an error.
//
// # Loading from CSV
//
//	opts := timeseries.DefaultCSVOptions()
//	opts.ValueColumn = "Price"
//	series, err := timeseries.LoadCSV("brent.csv", opts)
//
// # Immutability
//
// A Series never changes after construction. Accessors such as Values and
// Timestamps return copies, and Slice, Copy and Filter return new values.
package timeseries
