package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sartorproj/gochangepoint/changepoint"
	"github.com/sartorproj/gochangepoint/datasource"
	"github.com/sartorproj/gochangepoint/service"
	"github.com/sartorproj/gochangepoint/stats"
	"github.com/sartorproj/gochangepoint/timeseries"
)

// Error kinds reported in the error envelope.
const (
	KindInvalidWindow    = "InvalidWindowError"
	KindInvalidDateRange = "InvalidDateRangeError"
	KindInvalidParameter = "InvalidParameterError"
	KindEmptySeries      = "EmptySeriesError"
	KindInsufficientData = "InsufficientDataError"
	KindInvalidData      = "InvalidDataError"
	KindDataSource       = "DataSourceError"
	KindRateLimited      = "RateLimitedError"
	KindNotFound         = "NotFoundError"
	KindInternal         = "InternalError"
)

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type errorResponse struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

// classify maps an error to its HTTP status, kind and client-facing message.
func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, stats.ErrInvalidWindow):
		return http.StatusBadRequest, KindInvalidWindow, err.Error()
	case errors.Is(err, timeseries.ErrInvalidDateRange):
		return http.StatusBadRequest, KindInvalidDateRange, err.Error()
	case errors.Is(err, service.ErrInvalidParameter), errors.Is(err, changepoint.ErrInvalidConfig),
		errors.Is(err, stats.ErrInvalidLag):
		return http.StatusBadRequest, KindInvalidParameter, err.Error()
	case errors.Is(err, stats.ErrEmptySeries):
		return http.StatusUnprocessableEntity, KindEmptySeries, "no observations in the requested date range"
	case errors.Is(err, stats.ErrTooShort), errors.Is(err, stats.ErrConstantSeries):
		return http.StatusUnprocessableEntity, KindInsufficientData, err.Error()
	case errors.Is(err, stats.ErrNonPositivePrice):
		return http.StatusUnprocessableEntity, KindInvalidData, err.Error()
	case errors.Is(err, datasource.ErrDataSource):
		source := "unknown"
		var dsErr *datasource.Error
		if errors.As(err, &dsErr) {
			source = dsErr.Source
		}
		if errors.Is(err, datasource.ErrCircuitOpen) {
			return http.StatusServiceUnavailable, KindDataSource,
				fmt.Sprintf("data source %s is temporarily unavailable", source)
		}
		return http.StatusBadGateway, KindDataSource, fmt.Sprintf("data source %s failed to load", source)
	}
	return http.StatusInternalServerError, KindInternal, "internal server error"
}

func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status, kind, msg := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("request_id", RequestID(r.Context())).Str("kind", kind).Msg("Request failed")
	}
	writeError(w, status, kind, msg)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Kind: kind, Message: message}})
}
