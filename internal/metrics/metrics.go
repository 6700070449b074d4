package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/limaJavier/timetabler/pkg/model"
)

// Metrics encapsulates the Prometheus collectors of the service and the search engine.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	searchDuration  *prometheus.HistogramVec
	searchSteps     *prometheus.CounterVec
	backtracks      *prometheus.CounterVec
	divisions       *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
}

var _ model.SearchObserver = (*Metrics)(nil)

// New registers the collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	searchDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "timetabler_division_search_seconds",
		Help:    "Wall time spent searching a single division",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"strategy", "status"})

	searchSteps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetabler_search_steps_total",
		Help: "Cells visited by the assignment search",
	}, []string{"strategy"})

	backtracks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetabler_search_backtracks_total",
		Help: "Commits undone by the assignment search",
	}, []string{"strategy"})

	divisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetabler_divisions_total",
		Help: "Divisions searched grouped by outcome",
	}, []string{"strategy", "status"})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timetabler_cache_hits_total",
		Help: "Generation requests served from the cache",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timetabler_cache_misses_total",
		Help: "Generation requests that missed the cache",
	})

	registry.MustRegister(
		requestDuration, requestTotal,
		searchDuration, searchSteps, backtracks, divisions,
		cacheHits, cacheMisses,
		collectors.NewGoCollector(),
	)

	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		searchDuration:  searchDuration,
		searchSteps:     searchSteps,
		backtracks:      backtracks,
		divisions:       divisions,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveDivision implements model.SearchObserver.
func (m *Metrics) ObserveDivision(strategy model.Strategy, status model.Status, stats model.SearchStats) {
	if m == nil {
		return
	}
	m.searchDuration.WithLabelValues(string(strategy), string(status)).Observe(stats.Elapsed.Seconds())
	m.searchSteps.WithLabelValues(string(strategy)).Add(float64(stats.Steps))
	m.backtracks.WithLabelValues(string(strategy)).Add(float64(stats.Backtracks))
	m.divisions.WithLabelValues(string(strategy), string(status)).Inc()
}

// RecordCacheLookup counts a timetable cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// Middleware captures request metrics for every route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		m.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
