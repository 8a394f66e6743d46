package httpapi

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sartorproj/gochangepoint/changepoint"
	"github.com/sartorproj/gochangepoint/events"
	"github.com/sartorproj/gochangepoint/service"
	"github.com/sartorproj/gochangepoint/stats"
	"github.com/sartorproj/gochangepoint/timeseries"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Service:   "gochangepoint",
		Source:    s.svc.SourceName(),
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, KindNotFound, fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path))
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	dr, err := parseRange(r.URL.Query())
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	series, err := s.svc.Series(r.Context(), dr)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{
		Success: true,
		Data:    seriesData{Dates: series.Dates(), Prices: series.Values()},
		Count:   series.Len(),
	})
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	dr, err := parseRange(r.URL.Query())
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	st, err := s.svc.Statistics(r.Context(), dr)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statisticsResponse{
		Success: true,
		Statistics: statisticsBody{
			MeanPrice:         round2(st.Mean),
			MedianPrice:       round2(st.Median),
			StdDeviation:      round2(st.Std),
			MinPrice:          round2(st.Min),
			MaxPrice:          round2(st.Max),
			Volatility:        round2(st.Volatility),
			TotalObservations: st.Count,
			ChangePoints:      st.ChangePoints,
		},
	})
}

func (s *Server) handleVolatility(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dr, err := parseRange(q)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	window, err := parseWindow(q, s.svc.Config().VolatilityWindow)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	res, err := s.svc.Volatility(r.Context(), dr, window)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	body := volatilityBody{
		Dates:      make([]string, res.Len()),
		Values:     make([]float64, res.Len()),
		WindowSize: res.Window,
	}
	for i, p := range res.Points {
		body.Dates[i] = timeseries.FormatDate(p.Time)
		body.Values[i] = round2(p.Value)
	}
	writeJSON(w, http.StatusOK, volatilityResponse{Success: true, Volatility: body})
}

func (s *Server) handleChangePoints(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseChangePointRequest(r.URL.Query())
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	res, err := s.svc.ChangePoints(r.Context(), req)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	points := make([]changePointBody, 0, res.Set.Len())
	for _, p := range res.Set.Points {
		points = append(points, newChangePointBody(p))
	}
	writeJSON(w, http.StatusOK, changePointsResponse{
		Success:      true,
		ChangePoints: points,
		Count:        len(points),
		Method:       string(res.Set.Method),
		Target:       string(res.Target),
		Penalty:      round2(res.Set.Penalty),
	})
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dr, err := parseRange(q)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	lags, err := parseInt(q, "lags", s.svc.Config().DiagnosticLags, stats.ErrInvalidLag)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	d, err := s.svc.Diagnostics(r.Context(), dr, lags)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, diagnosticsResponse{
		Success: true,
		Diagnostics: diagnosticsBody{
			Observations:    d.Observations,
			Lags:            d.Lags,
			ACF:             d.ACF,
			SquaredACF:      d.SquaredACF,
			ConfidenceBound: d.Bound,
			SignificantLags: d.Significant,
			LjungBox:        newLjungBoxBody(d.Returns),
			LjungBoxSquared: newLjungBoxBody(d.SquaredReturns),
		},
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	dr, err := parseRange(r.URL.Query())
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	evs, err := s.svc.Events(dr)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	body := make([]eventBody, len(evs))
	for i, e := range evs {
		body[i] = newEventBody(e)
	}
	writeJSON(w, http.StatusOK, eventsResponse{Success: true, Events: body, Count: len(body)})
}

func (s *Server) handleEventCorrelation(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req, err := s.parseChangePointRequest(q)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	tolerance, err := parseInt(q, "tolerance_days", s.svc.Config().ToleranceDays, service.ErrInvalidParameter)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	corrs, err := s.svc.Correlate(r.Context(), req, tolerance)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	body := make([]correlationBody, len(corrs))
	for i, c := range corrs {
		body[i] = correlationBody{Event: newEventBody(c.Event), Matched: c.Matched}
		if c.Nearest != nil {
			cp := newChangePointBody(*c.Nearest)
			lag := c.LagDays
			body[i].ChangePoint = &cp
			body[i].LagDays = &lag
		}
	}
	writeJSON(w, http.StatusOK, correlationResponse{
		Success:       true,
		Correlations:  body,
		Matched:       events.Matched(corrs),
		Count:         len(body),
		ToleranceDays: tolerance,
	})
}

func parseRange(q url.Values) (timeseries.DateRange, error) {
	return timeseries.ParseDateRange(q.Get("start_date"), q.Get("end_date"))
}

// parseWindow reads the window parameter. A value that is not an integer
// is reported as an invalid window.
func parseWindow(q url.Values, def int) (int, error) {
	return parseInt(q, "window", def, stats.ErrInvalidWindow)
}

func parseInt(q url.Values, name string, def int, kind error) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", kind, name, raw)
	}
	return v, nil
}

func parseFloat(q url.Values, name string, def float64) (float64, error) {
	raw := q.Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number, got %q", service.ErrInvalidParameter, name, raw)
	}
	return v, nil
}

// parseChangePointRequest overlays query parameters on the configured
// defaults. "sensitivity" is accepted as an alias of "penalty".
func (s *Server) parseChangePointRequest(q url.Values) (service.ChangePointRequest, error) {
	dr, err := parseRange(q)
	if err != nil {
		return service.ChangePointRequest{}, err
	}
	req := s.svc.DefaultRequest(dr)

	penaltyKey := "penalty"
	if q.Get(penaltyKey) == "" && q.Get("sensitivity") != "" {
		penaltyKey = "sensitivity"
	}
	if req.Config.Penalty, err = parseFloat(q, penaltyKey, req.Config.Penalty); err != nil {
		return req, err
	}
	if req.Config.MinSegment, err = parseInt(q, "min_segment", req.Config.MinSegment, service.ErrInvalidParameter); err != nil {
		return req, err
	}
	if req.Config.MaxPoints, err = parseInt(q, "max_points", req.Config.MaxPoints, service.ErrInvalidParameter); err != nil {
		return req, err
	}
	if m := q.Get("method"); m != "" {
		if req.Config.Method, err = changepoint.ParseMethod(m); err != nil {
			return req, err
		}
	}
	if t := q.Get("target"); t != "" {
		if req.Target, err = service.ParseTarget(t); err != nil {
			return req, err
		}
	}
	if req.Window, err = parseWindow(q, req.Window); err != nil {
		return req, err
	}
	return req, nil
}
