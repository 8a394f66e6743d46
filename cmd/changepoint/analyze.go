package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sartorproj/gochangepoint/changepoint"
	"github.com/sartorproj/gochangepoint/events"
	"github.com/sartorproj/gochangepoint/service"
	"github.com/sartorproj/gochangepoint/timeseries"
)

type rangeFlags struct {
	start, end string
}

func (r *rangeFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&r.start, "start", "", "First date to include (YYYY-MM-DD)")
	fs.StringVar(&r.end, "end", "", "Last date to include (YYYY-MM-DD)")
}

func (r *rangeFlags) parse() (timeseries.DateRange, error) {
	return timeseries.ParseDateRange(r.start, r.end)
}

type detectFlags struct {
	penalty    float64
	minSegment int
	maxPoints  int
	method     string
	target     string
	window     int
}

func (d *detectFlags) register(fs *pflag.FlagSet) {
	fs.Float64Var(&d.penalty, "penalty", 0, "Penalty multiplier, overrides the config")
	fs.IntVar(&d.minSegment, "min-segment", 0, "Minimum observations per segment, overrides the config")
	fs.IntVar(&d.maxPoints, "max-points", 0, "Keep only the strongest change points, overrides the config")
	fs.StringVar(&d.method, "method", "", "Detection method (pelt|single)")
	fs.StringVar(&d.target, "target", "price", "Series to analyse (price|volatility)")
	fs.IntVar(&d.window, "window", 0, "Rolling window for --target volatility, overrides the config")
}

// request overlays the flags the user set on the configured defaults.
func (d *detectFlags) request(fs *pflag.FlagSet, svc *service.Service, r timeseries.DateRange) (service.ChangePointRequest, error) {
	req := svc.DefaultRequest(r)
	if fs.Changed("penalty") {
		req.Config.Penalty = d.penalty
	}
	if fs.Changed("min-segment") {
		req.Config.MinSegment = d.minSegment
	}
	if fs.Changed("max-points") {
		req.Config.MaxPoints = d.maxPoints
	}
	if fs.Changed("method") {
		m, err := changepoint.ParseMethod(d.method)
		if err != nil {
			return req, err
		}
		req.Config.Method = m
	}
	if fs.Changed("window") {
		req.Window = d.window
	}
	t, err := service.ParseTarget(d.target)
	if err != nil {
		return req, err
	}
	req.Target = t
	return req, nil
}

// withService opens the service for the duration of fn.
func (a *app) withService(cmd *cobra.Command, fn func(ctx context.Context, svc *service.Service) error) error {
	ctx := cmd.Context()
	svc, _, closeFn, err := a.openService(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, svc)
}

func newSeriesCmd(a *app) *cobra.Command {
	var rf rangeFlags
	cmd := &cobra.Command{
		Use:   "series",
		Short: "Print the price series inside a date range",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := rf.parse()
			if err != nil {
				return err
			}
			return a.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				s, err := svc.Series(ctx, r)
				if err != nil {
					return err
				}
				return a.printSeries(s)
			})
		},
	}
	rf.register(cmd.Flags())
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	var rf rangeFlags
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print descriptive statistics for a date range",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := rf.parse()
			if err != nil {
				return err
			}
			return a.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				st, err := svc.Statistics(ctx, r)
				if err != nil {
					return err
				}
				return a.printStatistics(st)
			})
		},
	}
	rf.register(cmd.Flags())
	return cmd
}

func newVolatilityCmd(a *app) *cobra.Command {
	var rf rangeFlags
	var window int
	cmd := &cobra.Command{
		Use:   "volatility",
		Short: "Print the trailing rolling volatility",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := rf.parse()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("window") {
				window = a.cfg.Analysis.VolatilityWindow
			}
			return a.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				res, err := svc.Volatility(ctx, r, window)
				if err != nil {
					return err
				}
				return a.printRolling(res)
			})
		},
	}
	rf.register(cmd.Flags())
	cmd.Flags().IntVar(&window, "window", 30, "Number of trailing observations per window")
	return cmd
}

func newChangePointsCmd(a *app) *cobra.Command {
	var rf rangeFlags
	var df detectFlags
	cmd := &cobra.Command{
		Use:   "changepoints",
		Short: "Detect change points in the price or volatility series",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := rf.parse()
			if err != nil {
				return err
			}
			return a.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				req, err := df.request(cmd.Flags(), svc, r)
				if err != nil {
					return err
				}
				res, err := svc.ChangePoints(ctx, req)
				if err != nil {
					return err
				}
				return a.printChangePoints(res)
			})
		},
	}
	rf.register(cmd.Flags())
	df.register(cmd.Flags())
	return cmd
}

func newDiagnosticsCmd(a *app) *cobra.Command {
	var rf rangeFlags
	var lags int
	cmd := &cobra.Command{
		Use:   "diagnostics",
		Short: "Test weekly log returns for autocorrelation and volatility clustering",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := rf.parse()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("lags") {
				lags = a.cfg.Analysis.DiagnosticLags
			}
			return a.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				d, err := svc.Diagnostics(ctx, r, lags)
				if err != nil {
					return err
				}
				return a.printDiagnostics(d)
			})
		},
	}
	rf.register(cmd.Flags())
	cmd.Flags().IntVar(&lags, "lags", 12, "Number of autocorrelation lags")
	return cmd
}

func newEventsCmd(a *app) *cobra.Command {
	var rf rangeFlags
	var df detectFlags
	var correlate bool
	var tolerance int
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List market events, optionally matched to detected change points",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := rf.parse()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("tolerance") {
				tolerance = a.cfg.Analysis.ToleranceDays
			}
			return a.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				if !correlate {
					evs, err := svc.Events(r)
					if err != nil {
						return err
					}
					return a.printEvents(evs)
				}
				req, err := df.request(cmd.Flags(), svc, r)
				if err != nil {
					return err
				}
				corrs, err := svc.Correlate(ctx, req, tolerance)
				if err != nil {
					return err
				}
				if err := a.printCorrelations(corrs); err != nil {
					return err
				}
				if a.format == "table" {
					fmt.Fprintf(a.out, "\n%d of %d events within %d days of a change point\n",
						events.Matched(corrs), len(corrs), tolerance)
				}
				return nil
			})
		},
	}
	rf.register(cmd.Flags())
	df.register(cmd.Flags())
	cmd.Flags().BoolVar(&correlate, "correlate", false, "Match each event to its nearest change point")
	cmd.Flags().IntVar(&tolerance, "tolerance", 30, "Days within which an event and a change point match")
	return cmd
}
