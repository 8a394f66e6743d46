package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/sartorproj/gochangepoint/events"
	"github.com/sartorproj/gochangepoint/service"
	"github.com/sartorproj/gochangepoint/stats"
	"github.com/sartorproj/gochangepoint/timeseries"
)

func fmt2(v float64) string {
	return decimal.NewFromFloat(v).StringFixedBank(2)
}

func fmt3(v float64) string {
	return decimal.NewFromFloat(v).StringFixedBank(3)
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) table(header string, rows [][]string) error {
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, header)
	for _, r := range rows {
		for i, c := range r {
			if i > 0 {
				fmt.Fprint(w, "\t")
			}
			fmt.Fprint(w, c)
		}
		fmt.Fprintln(w)
	}
	return w.Flush()
}

func (a *app) printSeries(s *timeseries.Series) error {
	if a.format == "json" {
		return a.printJSON(map[string]any{"dates": s.Dates(), "prices": s.Values(), "count": s.Len()})
	}
	rows := make([][]string, s.Len())
	for i := 0; i < s.Len(); i++ {
		p := s.At(i)
		rows[i] = []string{timeseries.FormatDate(p.Time), fmt2(p.Value)}
	}
	return a.table("DATE\tPRICE", rows)
}

func (a *app) printStatistics(st *service.Statistics) error {
	if a.format == "json" {
		return a.printJSON(map[string]any{
			"mean_price":         st.Mean,
			"median_price":       st.Median,
			"std_deviation":      st.Std,
			"min_price":          st.Min,
			"max_price":          st.Max,
			"volatility":         st.Volatility,
			"total_observations": st.Count,
			"change_points":      st.ChangePoints,
		})
	}
	return a.table("STATISTIC\tVALUE", [][]string{
		{"mean", fmt2(st.Mean)},
		{"median", fmt2(st.Median)},
		{"std", fmt2(st.Std)},
		{"min", fmt2(st.Min)},
		{"max", fmt2(st.Max)},
		{"count", fmt.Sprint(st.Count)},
		{"change points", fmt.Sprint(st.ChangePoints)},
	})
}

func (a *app) printRolling(res *stats.RollingResult) error {
	if a.format == "json" {
		dates := make([]string, res.Len())
		values := make([]float64, res.Len())
		for i, p := range res.Points {
			dates[i] = timeseries.FormatDate(p.Time)
			values[i] = p.Value
		}
		return a.printJSON(map[string]any{"dates": dates, "values": values, "window_size": res.Window})
	}
	rows := make([][]string, res.Len())
	for i, p := range res.Points {
		rows[i] = []string{timeseries.FormatDate(p.Time), fmt2(p.Value)}
	}
	return a.table("DATE\tVOLATILITY", rows)
}

func (a *app) printChangePoints(res *service.ChangePointResult) error {
	if a.format == "json" {
		points := make([]map[string]any, 0, res.Set.Len())
		for _, p := range res.Set.Points {
			points = append(points, map[string]any{
				"index":       p.Index,
				"date":        timeseries.FormatDate(p.Time),
				"score":       p.Score,
				"gain":        p.Gain,
				"mean_before": p.MeanBefore,
				"mean_after":  p.MeanAfter,
			})
		}
		return a.printJSON(map[string]any{
			"method":        res.Set.Method,
			"target":        res.Target,
			"penalty":       res.Set.Penalty,
			"change_points": points,
			"count":         len(points),
		})
	}
	rows := make([][]string, 0, res.Set.Len())
	for _, p := range res.Set.Points {
		rows = append(rows, []string{
			fmt.Sprint(p.Index),
			timeseries.FormatDate(p.Time),
			fmt2(p.MeanBefore),
			fmt2(p.MeanAfter),
			fmt2(p.Score),
		})
	}
	return a.table("INDEX\tDATE\tMEAN BEFORE\tMEAN AFTER\tSCORE", rows)
}

func (a *app) printEvents(evs []events.Event) error {
	if a.format == "json" {
		out := make([]map[string]any, len(evs))
		for i, e := range evs {
			out[i] = map[string]any{
				"date":        timeseries.FormatDate(e.Date),
				"event":       e.Name,
				"price":       e.Price,
				"description": e.Description,
			}
		}
		return a.printJSON(out)
	}
	rows := make([][]string, len(evs))
	for i, e := range evs {
		rows[i] = []string{timeseries.FormatDate(e.Date), e.Name, fmt2(e.Price)}
	}
	return a.table("DATE\tEVENT\tPRICE", rows)
}

func (a *app) printCorrelations(corrs []events.Correlation) error {
	if a.format == "json" {
		out := make([]map[string]any, len(corrs))
		for i, c := range corrs {
			m := map[string]any{
				"event":   c.Event.Name,
				"date":    timeseries.FormatDate(c.Event.Date),
				"matched": c.Matched,
			}
			if c.Nearest != nil {
				m["change_point"] = timeseries.FormatDate(c.Nearest.Time)
				m["lag_days"] = c.LagDays
			}
			out[i] = m
		}
		return a.printJSON(out)
	}
	rows := make([][]string, len(corrs))
	for i, c := range corrs {
		nearest, lag := "-", "-"
		if c.Nearest != nil {
			nearest = timeseries.FormatDate(c.Nearest.Time)
			lag = fmt.Sprintf("%+d", c.LagDays)
		}
		rows[i] = []string{timeseries.FormatDate(c.Event.Date), c.Event.Name, nearest, lag, fmt.Sprint(c.Matched)}
	}
	return a.table("DATE\tEVENT\tCHANGE POINT\tLAG DAYS\tMATCHED", rows)
}

func (a *app) printDiagnostics(d *service.Diagnostics) error {
	if a.format == "json" {
		return a.printJSON(map[string]any{
			"observations":      d.Observations,
			"lags":              d.Lags,
			"acf":               d.ACF,
			"squared_acf":       d.SquaredACF,
			"confidence_bound":  d.Bound,
			"significant_lags":  d.Significant,
			"ljung_box":         map[string]any{"statistic": d.Returns.Statistic, "p_value": d.Returns.PValue},
			"ljung_box_squared": map[string]any{"statistic": d.SquaredReturns.Statistic, "p_value": d.SquaredReturns.PValue},
		})
	}
	rows := make([][]string, 0, d.Lags)
	for k := 1; k <= d.Lags; k++ {
		rows = append(rows, []string{fmt.Sprint(k), fmt3(d.ACF[k]), fmt3(d.SquaredACF[k])})
	}
	if err := a.table("LAG\tACF\tSQUARED ACF", rows); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "\n%d returns, 95%% bound ±%s\n", d.Observations, fmt3(d.Bound))
	fmt.Fprintf(a.out, "Ljung-Box returns:         Q=%s p=%s\n", fmt2(d.Returns.Statistic), fmt3(d.Returns.PValue))
	fmt.Fprintf(a.out, "Ljung-Box squared returns: Q=%s p=%s\n", fmt2(d.SquaredReturns.Statistic), fmt3(d.SquaredReturns.PValue))
	return nil
}
