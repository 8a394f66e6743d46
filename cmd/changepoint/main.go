package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sartorproj/gochangepoint/config"
	"github.com/sartorproj/gochangepoint/datasource"
	"github.com/sartorproj/gochangepoint/events"
	"github.com/sartorproj/gochangepoint/internal/logging"
	"github.com/sartorproj/gochangepoint/internal/metrics"
	"github.com/sartorproj/gochangepoint/service"
)

const version = "v0.3.0"

// app carries the state shared by every subcommand once flags are parsed.
type app struct {
	configPath string
	logLevel   string
	format     string

	cfg    config.Config
	logger zerolog.Logger
	out    io.Writer
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}

	root := &cobra.Command{
		Use:     "changepoint",
		Short:   "Price series statistics, rolling volatility and change-point detection",
		Version: version,
		Long: `changepoint analyses a dated price series (weekly Brent prices by default).

It serves the analysis over HTTP ("serve") or answers single queries from the
command line. The series comes from the source configured in --config:
a seeded synthetic generator, a CSV file, a SQLite/Postgres table or an S3 object.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "Path to a YAML config file")
	pf.StringVar(&a.logLevel, "log-level", "", "Log level (debug|info|warn|error), overrides the config")
	pf.StringVar(&a.format, "format", "table", "Output format (table|json)")

	root.AddCommand(
		newServeCmd(a),
		newSeriesCmd(a),
		newStatsCmd(a),
		newVolatilityCmd(a),
		newChangePointsCmd(a),
		newEventsCmd(a),
		newDiagnosticsCmd(a),
		newIngestCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	switch a.format {
	case "table", "json":
	default:
		return fmt.Errorf("unknown output format %q", a.format)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// openService wires the configured source, events catalog and metrics into
// a Service. The returned function releases source connections.
func (a *app) openService(ctx context.Context) (*service.Service, *metrics.Registry, func() error, error) {
	reg := metrics.New()
	src, closeFn, err := datasource.Open(ctx, a.cfg.Source, reg, a.logger)
	if err != nil {
		return nil, nil, nil, err
	}
	catalog, err := events.Load(a.cfg.Events.Path)
	if err != nil {
		closeFn()
		return nil, nil, nil, err
	}
	svc := service.New(src, catalog, a.cfg.Analysis,
		service.WithLogger(a.logger),
		service.WithDetectionObserver(reg),
	)
	return svc, reg, closeFn, nil
}
