package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "policyhub_transitions_total",
		Help: "Phase transition requests by action and outcome",
	}, []string{"action", "outcome"})
	TransitionDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "policyhub_transition_duration_ms",
		Help:    "Hub repository transition call duration in milliseconds",
		Buckets: []float64{5, 10, 20, 50, 100, 200, 500, 1000, 2000},
	}, []string{"action"})
	ImportZonesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "policyhub_import_zones_total",
		Help: "Imported draft zones by result partition",
	}, []string{"result"})
	MalformedPackagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "policyhub_malformed_packages_total",
		Help: "Geometry packages rejected as unparseable",
	})
	HubCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "policyhub_hub_cache_hits_total",
		Help: "Hub list cache hits",
	})
	HubCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "policyhub_hub_cache_misses_total",
		Help: "Hub list cache misses",
	})
	InvalidationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "policyhub_invalidations_total",
		Help: "Hub list invalidations by source (mutation, stream)",
	}, []string{"source"})
	StreamEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "policyhub_stream_events_total",
		Help: "Hub change events consumed by the worker by outcome",
	}, []string{"outcome"})
	HubAPIRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "policyhub_hub_api_requests_total",
		Help: "Remote hub API requests by outcome",
	}, []string{"outcome"})
	HubAPIDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "policyhub_hub_api_duration_ms",
		Help:    "Remote hub API call duration in milliseconds",
		Buckets: []float64{5, 10, 20, 50, 100, 200, 500, 1000, 2000, 5000},
	})
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "policyhub_http_requests_total",
		Help: "HTTP requests by method and status",
	}, []string{"method", "status"})
	HTTPRequestDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "policyhub_http_request_duration_ms",
		Help:    "HTTP request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 2000},
	})
)

func init() {
	prometheus.MustRegister(TransitionsTotal)
	prometheus.MustRegister(TransitionDurationMs)
	prometheus.MustRegister(ImportZonesTotal)
	prometheus.MustRegister(MalformedPackagesTotal)
	prometheus.MustRegister(HubCacheHitsTotal)
	prometheus.MustRegister(HubCacheMissesTotal)
	prometheus.MustRegister(InvalidationsTotal)
	prometheus.MustRegister(StreamEventsTotal)
	prometheus.MustRegister(HubAPIRequestsTotal)
	prometheus.MustRegister(HubAPIDurationMs)
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDurationMs)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
