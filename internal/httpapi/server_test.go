package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sartorproj/gochangepoint/datasource"
	"github.com/sartorproj/gochangepoint/internal/metrics"
	"github.com/sartorproj/gochangepoint/service"
	"github.com/sartorproj/gochangepoint/timeseries"
)

func weekly(t *testing.T, values ...float64) *timeseries.Series {
	t.Helper()
	first, err := timeseries.ParseDate("2020-01-01")
	require.NoError(t, err)
	ts := make([]time.Time, len(values))
	for i := range ts {
		ts[i] = first.AddDate(0, 0, 7*i)
	}
	s, err := timeseries.NewWithTimestamps(ts, values)
	require.NoError(t, err)
	return s
}

func step(t *testing.T) *timeseries.Series {
	values := make([]float64, 40)
	for i := range values {
		values[i] = 50
		if i >= 20 {
			values[i] = 80
		}
	}
	return weekly(t, values...)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RateLimit = 0
	return cfg
}

func newTestServer(t *testing.T, src datasource.Source, cfg Config) (*Server, *metrics.Registry) {
	t.Helper()
	reg := metrics.New()
	svc := service.New(src, nil, service.DefaultConfig(), service.WithDetectionObserver(reg))
	return NewServer(cfg, svc, reg, zerolog.Nop()), reg
}

func get(t *testing.T, s *Server, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var body map[string]any
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	}
	return rec, body
}

func errorKind(t *testing.T, body map[string]any) string {
	t.Helper()
	assert.Equal(t, false, body["success"])
	e, ok := body["error"].(map[string]any)
	require.True(t, ok, "error envelope missing: %v", body)
	assert.NotEmpty(t, e["message"])
	return e["kind"].(string)
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, datasource.NewStatic("static", weekly(t, 1, 2)), testConfig())
	rec, body := get(t, s, "/api/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "gochangepoint", body["service"])
	assert.Equal(t, "static", body["source"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestData(t *testing.T) {
	s, _ := newTestServer(t, datasource.NewStatic("static", weekly(t, 10, 20, 30, 40)), testConfig())

	rec, body := get(t, s, "/api/data?start_date=2020-01-08&end_date=2020-01-15")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, 2.0, body["count"])
	data := body["data"].(map[string]any)
	assert.Equal(t, []any{"2020-01-08", "2020-01-15"}, data["dates"])
	assert.Equal(t, []any{20.0, 30.0}, data["prices"])

	rec, body = get(t, s, "/api/data?start_date=2030-01-01")
	require.Equal(t, http.StatusOK, rec.Code, "an empty selection is not an error")
	assert.Equal(t, 0.0, body["count"])
	assert.Equal(t, []any{}, body["data"].(map[string]any)["dates"])
}

func TestStatistics(t *testing.T) {
	s, _ := newTestServer(t, datasource.NewStatic("static", weekly(t, 10, 20, 30, 40)), testConfig())

	rec, body := get(t, s, "/api/statistics")
	require.Equal(t, http.StatusOK, rec.Code)
	st := body["statistics"].(map[string]any)
	assert.Equal(t, 25.0, st["mean_price"])
	assert.Equal(t, 25.0, st["median_price"])
	assert.Equal(t, 11.18, st["std_deviation"])
	assert.Equal(t, 11.18, st["volatility"])
	assert.Equal(t, 10.0, st["min_price"])
	assert.Equal(t, 40.0, st["max_price"])
	assert.Equal(t, 4.0, st["total_observations"])
	assert.Equal(t, 0.0, st["change_points"])
}

func TestStatisticsEmptyRange(t *testing.T) {
	s, _ := newTestServer(t, datasource.NewStatic("static", weekly(t, 10, 20, 30, 40)), testConfig())

	rec, body := get(t, s, "/api/statistics?start_date=2021-01-01&end_date=2021-12-31")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, KindEmptySeries, errorKind(t, body))
}

func TestVolatility(t *testing.T) {
	s, _ := newTestServer(t, datasource.NewStatic("static", weekly(t, 10, 20, 30, 40)), testConfig())

	rec, body := get(t, s, "/api/volatility?window=2")
	require.Equal(t, http.StatusOK, rec.Code)
	vol := body["volatility"].(map[string]any)
	assert.Equal(t, []any{"2020-01-15", "2020-01-22"}, vol["dates"])
	assert.Equal(t, []any{5.0, 5.0}, vol["values"])
	assert.Equal(t, 2.0, vol["window_size"])

	for _, path := range []string{"/api/volatility?window=10", "/api/volatility"} {
		rec, body = get(t, s, path)
		require.Equal(t, http.StatusOK, rec.Code, path)
		vol = body["volatility"].(map[string]any)
		assert.Equal(t, []any{}, vol["dates"], path)
		assert.Equal(t, []any{}, vol["values"], path)
	}
}

func TestVolatilityInvalidWindow(t *testing.T) {
	s, _ := newTestServer(t, datasource.NewStatic("static", weekly(t, 10, 20, 30, 40)), testConfig())

	for _, w := range []string{"0", "-1", "abc", "2.5"} {
		rec, body := get(t, s, "/api/volatility?window="+w)
		assert.Equal(t, http.StatusBadRequest, rec.Code, w)
		assert.Equal(t, KindInvalidWindow, errorKind(t, body), w)
	}
}

func TestInvalidDateRange(t *testing.T) {
	s, _ := newTestServer(t, datasource.NewStatic("static", weekly(t, 10, 20)), testConfig())

	for _, path := range []string{
		"/api/data?start_date=2020-13-01",
		"/api/statistics?start_date=2021-01-01&end_date=2020-01-01",
		"/api/events?end_date=yesterday",
		"/api/changepoints?start_date=01/02/2020",
	} {
		rec, body := get(t, s, path)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.Equal(t, KindInvalidDateRange, errorKind(t, body), path)
	}
}

func TestChangePoints(t *testing.T) {
	s, _ := newTestServer(t, datasource.NewStatic("step", step(t)), testConfig())

	rec, body := get(t, s, "/api/changepoints")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, body["count"])
	assert.Equal(t, "pelt", body["method"])
	assert.Equal(t, "price", body["target"])
	cp := body["change_points"].([]any)[0].(map[string]any)
	assert.Equal(t, 20.0, cp["index"])
	assert.Equal(t, "2020-05-20", cp["date"])
	assert.Equal(t, 50.0, cp["mean_before"])
	assert.Equal(t, 80.0, cp["mean_after"])
	assert.Greater(t, cp["score"].(float64), 1.0)

	for _, path := range []string{"/api/changepoints?penalty=1000", "/api/changepoints?sensitivity=1000"} {
		rec, body = get(t, s, path)
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, 0.0, body["count"], path)
		assert.Equal(t, []any{}, body["change_points"], path)
	}

	rec, body = get(t, s, "/api/changepoints?method=single&min_segment=4&target=volatility&window=4")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "single", body["method"])
	assert.Equal(t, "volatility", body["target"])
	assert.LessOrEqual(t, body["count"].(float64), 1.0)
}

func TestChangePointsInvalidParameters(t *testing.T) {
	s, _ := newTestServer(t, datasource.NewStatic("step", step(t)), testConfig())

	for _, q := range []string{"penalty=abc", "penalty=-1", "method=binseg", "target=volume", "min_segment=x", "min_segment=0", "max_points=-2"} {
		rec, body := get(t, s, "/api/changepoints?"+q)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		assert.Equal(t, KindInvalidParameter, errorKind(t, body), q)
	}

	rec, body := get(t, s, "/api/changepoints?target=volatility&window=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, KindInvalidWindow, errorKind(t, body))
}

func TestDiagnostics(t *testing.T) {
	s, _ := newTestServer(t, datasource.NewStatic("static", step(t)), testConfig())

	rec, body := get(t, s, "/api/diagnostics?lags=5")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	d := body["diagnostics"].(map[string]any)
	assert.Equal(t, 39.0, d["observations"])
	assert.Equal(t, 5.0, d["lags"])
	assert.Len(t, d["acf"], 6)
	assert.Contains(t, d, "ljung_box_squared")

	rec, body = get(t, s, "/api/diagnostics?lags=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, KindInvalidParameter, errorKind(t, body))

	flat := make([]float64, 20)
	for i := range flat {
		flat[i] = 70
	}
	s, _ = newTestServer(t, datasource.NewStatic("flat", weekly(t, flat...)), testConfig())
	rec, body = get(t, s, "/api/diagnostics")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, KindInsufficientData, errorKind(t, body))
}

func TestDiagnosticsNegativePrice(t *testing.T) {
	values := make([]float64, 30)
	for i := range values {
		values[i] = 60 + float64(i%4)
	}
	values[15] = -37.6
	s, _ := newTestServer(t, datasource.NewStatic("crash", weekly(t, values...)), testConfig())

	rec, body := get(t, s, "/api/diagnostics")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, KindInvalidData, errorKind(t, body))
	assert.Contains(t, rec.Body.String(), "2020-04-15")
}

func TestRound2HalfEven(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{10.125, 10.12},
		{25.125, 25.12},
		{0.125, 0.12},
		{10.375, 10.38},
		{-0.125, -0.12},
		{11.18034, 11.18},
		{5, 5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, round2(tt.in), "round2(%v)", tt.in)
	}
}

func TestClientLimiterEvictsIdle(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newClientLimiter(1, 1)
	l.now = func() time.Time { return now }
	l.lastSweep = now

	assert.True(t, l.allow("10.0.0.1"))
	assert.True(t, l.allow("10.0.0.2"))
	assert.False(t, l.allow("10.0.0.1"), "burst of one is spent")
	assert.Equal(t, 2, l.size())

	now = now.Add(limiterIdle / 2)
	assert.True(t, l.allow("10.0.0.2"))

	now = now.Add(limiterIdle/2 + time.Second)
	assert.True(t, l.allow("10.0.0.3"))
	assert.Equal(t, 2, l.size(), "10.0.0.1 was idle for a full period")
}

func TestEvents(t *testing.T) {
	s, _ := newTestServer(t, datasource.NewStatic("step", step(t)), testConfig())

	rec, body := get(t, s, "/api/events?start_date=2022-01-01&end_date=2022-12-31")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2.0, body["count"])
	first := body["events"].([]any)[0].(map[string]any)
	assert.Equal(t, "2022-02-24", first["date"])
	assert.Equal(t, "Russia-Ukraine Conflict", first["event"])
}

func TestEventCorrelation(t *testing.T) {
	s, _ := newTestServer(t, datasource.NewStatic("step", step(t)), testConfig())

	rec, body := get(t, s, "/api/event-correlation?tolerance_days=30")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5.0, body["count"])
	assert.Equal(t, 1.0, body["matched"])
	assert.Equal(t, 30.0, body["tolerance_days"])

	rec, body = get(t, s, "/api/event-correlation?tolerance_days=-5")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, KindInvalidParameter, errorKind(t, body))

	rec, body = get(t, s, "/api/event-correlation?penalty=1000")
	require.Equal(t, http.StatusOK, rec.Code)
	c := body["correlations"].([]any)[0].(map[string]any)
	assert.Nil(t, c["change_point"])
	assert.Nil(t, c["lag_days"])
	assert.Equal(t, false, c["matched"])
}

type brokenSource struct{}

func (brokenSource) Name() string { return "broken" }
func (brokenSource) Load(context.Context) (*timeseries.Series, error) {
	return nil, &datasource.Error{Source: "broken", Err: errors.New("dial tcp 10.0.0.1:5432: connection refused")}
}

func TestDataSourceErrors(t *testing.T) {
	guarded := datasource.NewGuarded(brokenSource{}, datasource.BreakerConfig{
		Enabled:             true,
		MaxRequests:         1,
		Timeout:             time.Minute,
		ConsecutiveFailures: 1,
	}, zerolog.Nop())
	s, _ := newTestServer(t, guarded, testConfig())

	rec, body := get(t, s, "/api/data")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, KindDataSource, errorKind(t, body))
	assert.NotContains(t, rec.Body.String(), "10.0.0.1", "causes are logged, not returned")

	rec, body = get(t, s, "/api/statistics")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, KindDataSource, errorKind(t, body))
}

func TestRateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimit = 1
	cfg.RateBurst = 1
	s, reg := newTestServer(t, datasource.NewStatic("static", weekly(t, 1, 2)), cfg)

	rec, _ := get(t, s, "/api/health")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := get(t, s, "/api/health")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, KindRateLimited, errorKind(t, body))
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.RateLimited))
}

func TestNotFound(t *testing.T) {
	s, _ := newTestServer(t, datasource.NewStatic("static", weekly(t, 1, 2)), testConfig())
	rec, body := get(t, s, "/api/prices")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, KindNotFound, errorKind(t, body))
}

func TestCORS(t *testing.T) {
	s, _ := newTestServer(t, datasource.NewStatic("static", weekly(t, 1, 2)), testConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/changepoints", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "GET")
}

func TestRequestIDEcho(t *testing.T) {
	s, _ := newTestServer(t, datasource.NewStatic("static", weekly(t, 1, 2)), testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "abc123")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc123", rec.Header().Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, datasource.NewStatic("step", step(t)), testConfig())
	get(t, s, "/api/health")
	get(t, s, "/api/changepoints")

	rec, _ := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	out, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(out), `gochangepoint_http_requests_total{method="GET",route="/api/health",status="200"} 1`)
	assert.Contains(t, string(out), `gochangepoint_detections_total{method="pelt"} 1`)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Port = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.RateBurst = 0
	assert.Error(t, cfg.Validate())

	assert.Equal(t, "127.0.0.1:5000", DefaultConfig().Addr())
}
