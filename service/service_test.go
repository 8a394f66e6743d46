package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sartorproj/gochangepoint/changepoint"
	"github.com/sartorproj/gochangepoint/datasource"
	"github.com/sartorproj/gochangepoint/stats"
	"github.com/sartorproj/gochangepoint/timeseries"
)

func weekly(t *testing.T, start string, values ...float64) *timeseries.Series {
	t.Helper()
	first, err := timeseries.ParseDate(start)
	require.NoError(t, err)
	ts := make([]time.Time, len(values))
	for i := range ts {
		ts[i] = first.AddDate(0, 0, 7*i)
	}
	s, err := timeseries.NewWithTimestamps(ts, values)
	require.NoError(t, err)
	return s
}

func stepSeries(t *testing.T) *timeseries.Series {
	values := make([]float64, 40)
	for i := range values {
		values[i] = 50
		if i >= 20 {
			values[i] = 80
		}
	}
	return weekly(t, "2020-01-01", values...)
}

func newService(t *testing.T, s *timeseries.Series) *Service {
	t.Helper()
	return New(datasource.NewStatic("test", s), nil, DefaultConfig())
}

type failingSource struct{}

func (failingSource) Name() string { return "failing" }
func (failingSource) Load(context.Context) (*timeseries.Series, error) {
	return nil, &datasource.Error{Source: "failing", Err: errors.New("unreachable")}
}

type detections struct {
	runs   int
	points int
}

func (d *detections) ObserveDetection(_ string, points int, _ time.Duration) {
	d.runs++
	d.points += points
}

func mustRange(t *testing.T, start, end string) timeseries.DateRange {
	t.Helper()
	r, err := timeseries.ParseDateRange(start, end)
	require.NoError(t, err)
	return r
}

func TestStatistics(t *testing.T) {
	svc := newService(t, weekly(t, "2020-01-01", 10, 20, 30, 40))

	st, err := svc.Statistics(context.Background(), timeseries.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, 25.0, st.Mean)
	assert.Equal(t, 25.0, st.Median)
	assert.InDelta(t, math.Sqrt(125), st.Std, 1e-10)
	assert.Equal(t, st.Std, st.Volatility)
	assert.Equal(t, 10.0, st.Min)
	assert.Equal(t, 40.0, st.Max)
	assert.Equal(t, 4, st.Count)
	assert.Equal(t, 0, st.ChangePoints, "four observations are shorter than two minimum segments")
}

func TestStatisticsEmptyRange(t *testing.T) {
	svc := newService(t, weekly(t, "2020-01-01", 10, 20, 30, 40))

	_, err := svc.Statistics(context.Background(), mustRange(t, "2021-01-01", "2021-12-31"))
	assert.ErrorIs(t, err, stats.ErrEmptySeries)
}

func TestInvalidRange(t *testing.T) {
	svc := newService(t, weekly(t, "2020-01-01", 10, 20))
	bad := timeseries.DateRange{
		Start: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	_, err := svc.Series(context.Background(), bad)
	assert.ErrorIs(t, err, timeseries.ErrInvalidDateRange)
	_, err = svc.Events(bad)
	assert.ErrorIs(t, err, timeseries.ErrInvalidDateRange)
}

func TestSeriesFiltered(t *testing.T) {
	svc := newService(t, weekly(t, "2020-01-01", 10, 20, 30, 40))

	s, err := svc.Series(context.Background(), mustRange(t, "2020-01-08", "2020-01-15"))
	require.NoError(t, err)
	assert.Equal(t, []string{"2020-01-08", "2020-01-15"}, s.Dates())
	assert.Equal(t, []float64{20, 30}, s.Values())
}

func TestSourceErrorPropagates(t *testing.T) {
	svc := New(failingSource{}, nil, DefaultConfig())
	_, err := svc.Statistics(context.Background(), timeseries.DateRange{})
	assert.ErrorIs(t, err, datasource.ErrDataSource)
	assert.Equal(t, "failing", svc.SourceName())
}

func TestVolatility(t *testing.T) {
	svc := newService(t, weekly(t, "2020-01-01", 10, 20, 30, 40))

	res, err := svc.Volatility(context.Background(), timeseries.DateRange{}, 2)
	require.NoError(t, err)
	require.Equal(t, 2, res.Len())
	assert.Equal(t, "2020-01-15", timeseries.FormatDate(res.Points[0].Time))
	assert.InDelta(t, 5.0, res.Points[0].Value, 1e-10)

	res, err = svc.Volatility(context.Background(), timeseries.DateRange{}, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Len())

	for _, w := range []int{0, -3} {
		_, err = svc.Volatility(context.Background(), timeseries.DateRange{}, w)
		assert.ErrorIs(t, err, stats.ErrInvalidWindow)
	}
}

func TestChangePointsPrice(t *testing.T) {
	obs := &detections{}
	svc := New(datasource.NewStatic("step", stepSeries(t)), nil, DefaultConfig(), WithDetectionObserver(obs))

	res, err := svc.ChangePoints(context.Background(), svc.DefaultRequest(timeseries.DateRange{}))
	require.NoError(t, err)
	assert.Equal(t, TargetPrice, res.Target)
	assert.Equal(t, 40, res.Series.Len())
	assert.Equal(t, []int{20}, res.Set.Indices())
	assert.Equal(t, "2020-05-20", timeseries.FormatDate(res.Set.Points[0].Time))
	assert.Equal(t, 1, obs.runs)
	assert.Equal(t, 1, obs.points)
}

func TestChangePointsVolatility(t *testing.T) {
	svc := newService(t, stepSeries(t))

	req := svc.DefaultRequest(timeseries.DateRange{})
	req.Target = TargetVolatility
	req.Window = 4
	req.Config.MinSegment = 3

	res, err := svc.ChangePoints(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, TargetVolatility, res.Target)
	assert.Equal(t, 36, res.Series.Len())
	for _, p := range res.Set.Points {
		assert.Less(t, p.Index, res.Series.Len())
	}

	req.Window = 0
	_, err = svc.ChangePoints(context.Background(), req)
	assert.ErrorIs(t, err, stats.ErrInvalidWindow)
}

func TestChangePointsInvalid(t *testing.T) {
	svc := newService(t, stepSeries(t))

	req := svc.DefaultRequest(timeseries.DateRange{})
	req.Target = "returns"
	_, err := svc.ChangePoints(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidParameter)

	req = svc.DefaultRequest(timeseries.DateRange{})
	req.Config.Penalty = 0
	_, err = svc.ChangePoints(context.Background(), req)
	assert.ErrorIs(t, err, changepoint.ErrInvalidConfig)
}

func TestCorrelate(t *testing.T) {
	svc := newService(t, stepSeries(t))

	got, err := svc.Correlate(context.Background(), svc.DefaultRequest(timeseries.DateRange{}), 30)
	require.NoError(t, err)
	require.Len(t, got, 5)

	byName := map[string]int{}
	for i, c := range got {
		byName[c.Event.Name] = i
	}
	crash := got[byName["Oil Price Crash"]]
	assert.True(t, crash.Matched)
	assert.Equal(t, 30, crash.LagDays)

	covid := got[byName["COVID-19 Pandemic Start"]]
	assert.False(t, covid.Matched)
	assert.Equal(t, 80, covid.LagDays)

	_, err = svc.Correlate(context.Background(), svc.DefaultRequest(timeseries.DateRange{}), -1)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.VolatilityWindow = 0
	assert.ErrorIs(t, cfg.Validate(), stats.ErrInvalidWindow)

	cfg = DefaultConfig()
	cfg.ToleranceDays = -1
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidParameter)

	cfg = DefaultConfig()
	cfg.DiagnosticLags = 0
	assert.ErrorIs(t, cfg.Validate(), stats.ErrInvalidLag)

	cfg = DefaultConfig()
	cfg.ChangePoint.MinSegment = 0
	assert.ErrorIs(t, cfg.Validate(), changepoint.ErrInvalidConfig)
}

func TestParseTarget(t *testing.T) {
	for in, want := range map[string]Target{"": TargetPrice, "PRICE": TargetPrice, " volatility ": TargetVolatility} {
		got, err := ParseTarget(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseTarget("volume")
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestDiagnostics(t *testing.T) {
	src, err := datasource.NewSynthetic(datasource.DefaultSyntheticConfig())
	require.NoError(t, err)
	svc := New(src, nil, DefaultConfig())

	d, err := svc.Diagnostics(context.Background(), timeseries.DateRange{}, 12)
	require.NoError(t, err)
	assert.Equal(t, 208, d.Observations)
	assert.Equal(t, 12, d.Lags)
	assert.Len(t, d.ACF, 13)
	assert.Len(t, d.SquaredACF, 13)
	assert.InDelta(t, 1.0, d.ACF[0], 1e-12)
	assert.InDelta(t, 1.96/math.Sqrt(208), d.Bound, 1e-12)
	assert.NotNil(t, d.Significant)
	assert.Equal(t, 12, d.Returns.Lags)
	assert.GreaterOrEqual(t, d.SquaredReturns.PValue, 0.0)
	assert.LessOrEqual(t, d.SquaredReturns.PValue, 1.0)
}

func TestDiagnosticsErrors(t *testing.T) {
	ctx := context.Background()

	_, err := newService(t, stepSeries(t)).Diagnostics(ctx, timeseries.DateRange{}, 0)
	assert.ErrorIs(t, err, stats.ErrInvalidLag)

	_, err = newService(t, weekly(t, "2020-01-01", 10, 11, 12, 13, 14)).Diagnostics(ctx, timeseries.DateRange{}, 2)
	assert.ErrorIs(t, err, stats.ErrTooShort)

	flat := make([]float64, 20)
	for i := range flat {
		flat[i] = 70
	}
	_, err = newService(t, weekly(t, "2020-01-01", flat...)).Diagnostics(ctx, timeseries.DateRange{}, 4)
	assert.ErrorIs(t, err, stats.ErrConstantSeries)

	crash := make([]float64, 30)
	for i := range crash {
		crash[i] = 60 + float64(i%3)
	}
	crash[15] = -37.63
	_, err = newService(t, weekly(t, "2020-01-01", crash...)).Diagnostics(ctx, timeseries.DateRange{}, 4)
	assert.ErrorIs(t, err, stats.ErrNonPositivePrice)

	_, err = newService(t, stepSeries(t)).Diagnostics(ctx, mustRange(t, "2030-01-01", ""), 4)
	assert.ErrorIs(t, err, stats.ErrEmptySeries)
}
