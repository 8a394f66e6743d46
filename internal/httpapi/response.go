package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/sartorproj/gochangepoint/changepoint"
	"github.com/sartorproj/gochangepoint/events"
	"github.com/sartorproj/gochangepoint/stats"
	"github.com/sartorproj/gochangepoint/timeseries"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// round2 rounds half to even to two decimals for display, so 10.125 becomes 10.12.
func round2(v float64) float64 {
	return decimal.NewFromFloat(v).RoundBank(2).InexactFloat64()
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Service   string `json:"service"`
	Source    string `json:"source"`
}

type seriesData struct {
	Dates  []string  `json:"dates"`
	Prices []float64 `json:"prices"`
}

type dataResponse struct {
	Success bool       `json:"success"`
	Data    seriesData `json:"data"`
	Count   int        `json:"count"`
}

type statisticsBody struct {
	MeanPrice         float64 `json:"mean_price"`
	MedianPrice       float64 `json:"median_price"`
	StdDeviation      float64 `json:"std_deviation"`
	MinPrice          float64 `json:"min_price"`
	MaxPrice          float64 `json:"max_price"`
	Volatility        float64 `json:"volatility"`
	TotalObservations int     `json:"total_observations"`
	ChangePoints      int     `json:"change_points"`
}

type statisticsResponse struct {
	Success    bool           `json:"success"`
	Statistics statisticsBody `json:"statistics"`
}

type volatilityBody struct {
	Dates      []string  `json:"dates"`
	Values     []float64 `json:"values"`
	WindowSize int       `json:"window_size"`
}

type volatilityResponse struct {
	Success    bool           `json:"success"`
	Volatility volatilityBody `json:"volatility"`
}

type changePointBody struct {
	Index      int     `json:"index"`
	Date       string  `json:"date"`
	Score      float64 `json:"score"`
	Gain       float64 `json:"gain"`
	MeanBefore float64 `json:"mean_before"`
	MeanAfter  float64 `json:"mean_after"`
}

func newChangePointBody(p changepoint.ChangePoint) changePointBody {
	return changePointBody{
		Index:      p.Index,
		Date:       timeseries.FormatDate(p.Time),
		Score:      round2(p.Score),
		Gain:       round2(p.Gain),
		MeanBefore: round2(p.MeanBefore),
		MeanAfter:  round2(p.MeanAfter),
	}
}

type changePointsResponse struct {
	Success      bool              `json:"success"`
	ChangePoints []changePointBody `json:"change_points"`
	Count        int               `json:"count"`
	Method       string            `json:"method"`
	Target       string            `json:"target"`
	Penalty      float64           `json:"penalty"`
}

type eventBody struct {
	Date        string  `json:"date"`
	Event       string  `json:"event"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
}

func newEventBody(e events.Event) eventBody {
	return eventBody{
		Date:        timeseries.FormatDate(e.Date),
		Event:       e.Name,
		Price:       e.Price,
		Description: e.Description,
	}
}

type eventsResponse struct {
	Success bool        `json:"success"`
	Events  []eventBody `json:"events"`
	Count   int         `json:"count"`
}

type correlationBody struct {
	Event       eventBody        `json:"event"`
	ChangePoint *changePointBody `json:"change_point"`
	LagDays     *int             `json:"lag_days"`
	Matched     bool             `json:"matched"`
}

type correlationResponse struct {
	Success       bool              `json:"success"`
	Correlations  []correlationBody `json:"correlations"`
	Matched       int               `json:"matched"`
	Count         int               `json:"count"`
	ToleranceDays int               `json:"tolerance_days"`
}

type ljungBoxBody struct {
	Statistic float64 `json:"statistic"`
	PValue    float64 `json:"p_value"`
	Lags      int     `json:"lags"`
}

func newLjungBoxBody(r *stats.LjungBoxResult) ljungBoxBody {
	return ljungBoxBody{Statistic: r.Statistic, PValue: r.PValue, Lags: r.Lags}
}

type diagnosticsBody struct {
	Observations    int          `json:"observations"`
	Lags            int          `json:"lags"`
	ACF             []float64    `json:"acf"`
	SquaredACF      []float64    `json:"squared_acf"`
	ConfidenceBound float64      `json:"confidence_bound"`
	SignificantLags []int        `json:"significant_lags"`
	LjungBox        ljungBoxBody `json:"ljung_box"`
	LjungBoxSquared ljungBoxBody `json:"ljung_box_squared"`
}

type diagnosticsResponse struct {
	Success     bool            `json:"success"`
	Diagnostics diagnosticsBody `json:"diagnostics"`
}
