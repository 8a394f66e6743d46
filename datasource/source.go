// Package datasource loads price series from synthetic, file, database and object-store backends.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sartorproj/gochangepoint/timeseries"
)

// ErrDataSource is matched by every error returned from a Source.
var ErrDataSource = errors.New("data source error")

// Source loads the full, canonical series. Implementations are read-only
// and safe for concurrent use.
type Source interface {
	Load(ctx context.Context) (*timeseries.Series, error)
	Name() string
}

// Error reports a failure of a named source.
type Error struct {
	Source string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("data source %s: %v", e.Source, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes every Error match ErrDataSource.
func (e *Error) Is(target error) bool {
	return target == ErrDataSource
}

func wrap(source string, err error) error {
	if err == nil {
		return nil
	}
	var dsErr *Error
	if errors.As(err, &dsErr) {
		return err
	}
	return &Error{Source: source, Err: err}
}

// Observer receives load and cache events, typically to record metrics.
type Observer interface {
	ObserveLoad(source string, elapsed time.Duration, err error)
	ObserveCache(source string, hit bool)
}

type nopObserver struct{}

func (nopObserver) ObserveLoad(string, time.Duration, error) {}
func (nopObserver) ObserveCache(string, bool)                {}

// Observed reports the duration and outcome of every load of the wrapped source.
type Observed struct {
	inner    Source
	observer Observer
}

// NewObserved wraps inner. A nil observer discards events.
func NewObserved(inner Source, observer Observer) *Observed {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Observed{inner: inner, observer: observer}
}

// Name returns the wrapped source name.
func (o *Observed) Name() string {
	return o.inner.Name()
}

// Load loads from the wrapped source and reports the outcome.
func (o *Observed) Load(ctx context.Context) (*timeseries.Series, error) {
	start := time.Now()
	s, err := o.inner.Load(ctx)
	o.observer.ObserveLoad(o.inner.Name(), time.Since(start), err)
	return s, err
}

// Static serves a fixed series. It is used for tests and for data
// prepared in memory.
type Static struct {
	series *timeseries.Series
	name   string
}

// NewStatic returns a source that always yields series.
func NewStatic(name string, series *timeseries.Series) *Static {
	return &Static{series: series, name: name}
}

// Name returns the source name.
func (s *Static) Name() string {
	return s.name
}

// Load returns the fixed series.
func (s *Static) Load(ctx context.Context) (*timeseries.Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrap(s.name, err)
	}
	return s.series, nil
}
