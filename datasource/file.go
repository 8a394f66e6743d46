package datasource

import (
	"context"
	"path/filepath"

	"github.com/sartorproj/gochangepoint/timeseries"
)

// CSVConfig locates a CSV price file.
type CSVConfig struct {
	Path        string `yaml:"path"`
	DateColumn  string `yaml:"date_column"`
	ValueColumn string `yaml:"value_column"`
	DateFormat  string `yaml:"date_format"`
}

func (c CSVConfig) options() *timeseries.CSVOptions {
	opts := timeseries.DefaultCSVOptions()
	opts.DateColumn = c.DateColumn
	opts.ValueColumn = c.ValueColumn
	if c.DateFormat != "" {
		opts.DateFormat = c.DateFormat
	}
	return opts
}

// CSVFile reads the series from a local CSV file on every load.
type CSVFile struct {
	path string
	opts *timeseries.CSVOptions
}

// NewCSVFile returns a source for the file described by cfg.
func NewCSVFile(cfg CSVConfig) *CSVFile {
	return &CSVFile{path: cfg.Path, opts: cfg.options()}
}

// Name returns "csv:" followed by the file base name.
func (f *CSVFile) Name() string {
	return "csv:" + filepath.Base(f.path)
}

// Load parses the file.
func (f *CSVFile) Load(ctx context.Context) (*timeseries.Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrap(f.Name(), err)
	}
	s, err := timeseries.LoadCSV(f.path, f.opts)
	if err != nil {
		return nil, wrap(f.Name(), err)
	}
	return s, nil
}
