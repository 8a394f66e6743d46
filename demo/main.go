// Package main demonstrates statistics, rolling volatility and change-point
// detection on the seeded synthetic Brent series.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sartorproj/gochangepoint/changepoint"
	"github.com/sartorproj/gochangepoint/datasource"
	"github.com/sartorproj/gochangepoint/events"
	"github.com/sartorproj/gochangepoint/service"
	"github.com/sartorproj/gochangepoint/timeseries"
)

// Period defines a date range to analyze
type Period struct {
	Name  string // Display name
	Start string // First date (YYYY-MM-DD), empty = open
	End   string // Last date (YYYY-MM-DD), empty = open
}

// DetectionResult holds one detector run for JSON export
type DetectionResult struct {
	Method       string    `json:"method"`
	Target       string    `json:"target"`
	Penalty      float64   `json:"penalty"`
	Indices      []int     `json:"indices"`
	Dates        []string  `json:"dates"`
	MeansBefore  []float64 `json:"means_before"`
	MeansAfter   []float64 `json:"means_after"`
	Scores       []float64 `json:"scores"`
	MatchedEvent int       `json:"matched_events"`
}

// PeriodResult holds analysis results for a period
type PeriodResult struct {
	Name       string            `json:"name"`
	Start      string            `json:"start"`
	End        string            `json:"end"`
	NObs       int               `json:"n_obs"`
	Dates      []string          `json:"dates"`
	Prices     []float64         `json:"prices"`
	Stats      map[string]any    `json:"stats"`
	Volatility []float64         `json:"volatility"`
	Detections []DetectionResult `json:"detections"`
}

// OutputData holds all results for visualization
type OutputData struct {
	Source  string         `json:"source"`
	Periods []PeriodResult `json:"periods"`
}

func main() {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("GoChangepoint Demonstration - Statistics/Volatility/Change Points")
	fmt.Println(strings.Repeat("=", 80))

	ctx := context.Background()
	src, err := datasource.NewSynthetic(datasource.DefaultSyntheticConfig())
	if err != nil {
		fmt.Printf("Error creating source: %v\n", err)
		os.Exit(1)
	}
	svc := service.New(src, nil, service.DefaultConfig(), service.WithLogger(zerolog.Nop()))
	fmt.Printf("\nData source: %s\n", svc.SourceName())

	periods := []Period{
		{Name: "Full history"},
		{Name: "COVID-19 shock", Start: "2020-01-01", End: "2020-12-31"},
		{Name: "Post-pandemic recovery", Start: "2021-01-01", End: "2021-12-31"},
		{Name: "Energy crisis", Start: "2022-01-01", End: "2023-12-31"},
	}

	output := OutputData{Source: svc.SourceName(), Periods: []PeriodResult{}}

	for i, p := range periods {
		fmt.Printf("\n%s\n[%d/%d] %s\n%s\n", strings.Repeat("=", 80), i+1, len(periods), p.Name, strings.Repeat("=", 80))

		result := analyze(ctx, svc, p)
		if result != nil {
			output.Periods = append(output.Periods, *result)
		}
	}

	// Export results
	fmt.Printf("\n%s\nEXPORTING RESULTS\n%s\n", strings.Repeat("=", 80), strings.Repeat("=", 80))

	if data, err := json.MarshalIndent(output, "", "  "); err == nil {
		os.WriteFile("analysis_results.json", data, 0644)
		fmt.Printf("Exported %d periods to analysis_results.json\n", len(output.Periods))
	}

	fmt.Println(strings.Repeat("=", 80))
}

// analyze performs complete analysis on a period
func analyze(ctx context.Context, svc *service.Service, p Period) *PeriodResult {
	r, err := timeseries.ParseDateRange(p.Start, p.End)
	if err != nil {
		fmt.Printf("   Invalid range: %v\n", err)
		return nil
	}

	series, err := svc.Series(ctx, r)
	if err != nil {
		fmt.Printf("   Error loading: %v\n", err)
		return nil
	}
	st, err := svc.Statistics(ctx, r)
	if err != nil {
		fmt.Printf("   Error describing: %v\n", err)
		return nil
	}
	fmt.Printf("   Loaded %d observations (%.2f to %.2f), mean %.2f, std %.2f\n",
		st.Count, st.Min, st.Max, st.Mean, st.Std)

	result := &PeriodResult{
		Name:   p.Name,
		Start:  p.Start,
		End:    p.End,
		NObs:   series.Len(),
		Dates:  series.Dates(),
		Prices: series.Values(),
		Stats: map[string]any{
			"mean":   st.Mean,
			"median": st.Median,
			"std":    st.Std,
			"min":    st.Min,
			"max":    st.Max,
		},
		Detections: []DetectionResult{},
	}

	window := svc.Config().VolatilityWindow
	if vol, err := svc.Volatility(ctx, r, window); err == nil {
		for _, pt := range vol.Points {
			result.Volatility = append(result.Volatility, pt.Value)
		}
		fmt.Printf("   Rolling volatility (window=%d): %d values\n", window, vol.Len())
	} else {
		fmt.Printf("   Rolling volatility (window=%d): %v\n", window, err)
	}

	// Both detectors on prices, PELT on volatility
	runs := []struct {
		method changepoint.Method
		target service.Target
	}{
		{changepoint.MethodPELT, service.TargetPrice},
		{changepoint.MethodSingle, service.TargetPrice},
		{changepoint.MethodPELT, service.TargetVolatility},
	}

	for _, run := range runs {
		req := svc.DefaultRequest(r)
		req.Config.Method = run.method
		req.Target = run.target
		if d := detect(ctx, svc, req); d != nil {
			result.Detections = append(result.Detections, *d)
		}
	}

	return result
}

// detect runs one detector and correlates it with the event catalog
func detect(ctx context.Context, svc *service.Service, req service.ChangePointRequest) *DetectionResult {
	res, err := svc.ChangePoints(ctx, req)
	if err != nil {
		fmt.Printf("   %s/%s: %v\n", req.Config.Method, req.Target, err)
		return nil
	}
	corrs, err := svc.Correlate(ctx, req, svc.Config().ToleranceDays)
	if err != nil {
		fmt.Printf("   %s/%s: %v\n", req.Config.Method, req.Target, err)
		return nil
	}

	d := &DetectionResult{
		Method:       string(res.Set.Method),
		Target:       string(res.Target),
		Penalty:      res.Set.Penalty,
		MatchedEvent: events.Matched(corrs),
	}
	for _, cp := range res.Set.Points {
		d.Indices = append(d.Indices, cp.Index)
		d.Dates = append(d.Dates, timeseries.FormatDate(cp.Time))
		d.MeansBefore = append(d.MeansBefore, cp.MeanBefore)
		d.MeansAfter = append(d.MeansAfter, cp.MeanAfter)
		d.Scores = append(d.Scores, cp.Score)
	}

	fmt.Printf("   %s/%s: %d change points %v, %d/%d events matched\n",
		d.Method, d.Target, len(d.Indices), d.Dates, d.MatchedEvent, len(corrs))
	return d
}
