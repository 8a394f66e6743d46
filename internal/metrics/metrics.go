// Package metrics holds the Prometheus collectors for the HTTP server,
// the data source chain and change-point detection.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gochangepoint"

// Registry owns a private Prometheus registry and every collector registered on it.
type Registry struct {
	reg *prometheus.Registry

	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
	RateLimited     prometheus.Counter
	SourceLoads     *prometheus.CounterVec
	SourceDuration  *prometheus.HistogramVec
	CacheRequests   *prometheus.CounterVec
	Detections      *prometheus.CounterVec
	DetectedPoints  *prometheus.HistogramVec
	DetectDurations *prometheus.HistogramVec
}

// New creates a registry with Go runtime and process collectors.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route, method and status code",
			},
			[]string{"route", "method", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by route",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"route"},
		),
		RateLimited: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_rate_limited_total",
				Help:      "Requests rejected by the rate limiter",
			},
		),
		SourceLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "source_loads_total",
				Help:      "Series loads by source and result",
			},
			[]string{"source", "result"},
		),
		SourceDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "source_load_duration_seconds",
				Help:      "Series load latency by source",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		CacheRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_requests_total",
				Help:      "Series cache lookups by source and result",
			},
			[]string{"source", "result"},
		),
		Detections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "detections_total",
				Help:      "Change-point detection runs by method",
			},
			[]string{"method"},
		),
		DetectedPoints: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "detected_change_points",
				Help:      "Number of change points reported per detection run",
				Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
			},
			[]string{"method"},
		),
		DetectDurations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "detection_duration_seconds",
				Help:      "Change-point detection latency by method",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"method"},
		),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.HTTPRequests,
		r.HTTPDuration,
		r.RateLimited,
		r.SourceLoads,
		r.SourceDuration,
		r.CacheRequests,
		r.Detections,
		r.DetectedPoints,
		r.DetectDurations,
	)
	return r
}

// Gatherer exposes the underlying registry for tests and custom exporters.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// ObserveRequest records one served HTTP request.
func (r *Registry) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	r.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	r.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObserveLoad records a data source load.
func (r *Registry) ObserveLoad(source string, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.SourceLoads.WithLabelValues(source, result).Inc()
	r.SourceDuration.WithLabelValues(source).Observe(elapsed.Seconds())
}

// ObserveCache records a cache lookup.
func (r *Registry) ObserveCache(source string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.CacheRequests.WithLabelValues(source, result).Inc()
}

// ObserveDetection records a change-point detection run.
func (r *Registry) ObserveDetection(method string, points int, elapsed time.Duration) {
	r.Detections.WithLabelValues(method).Inc()
	r.DetectedPoints.WithLabelValues(method).Observe(float64(points))
	r.DetectDurations.WithLabelValues(method).Observe(elapsed.Seconds())
}
