package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// namespace prefixes every metric exported by the service
const namespace = "plugin_registry"

// sizeBuckets cover request and response bodies from 100B to 10MB
var sizeBuckets = prometheus.ExponentialBuckets(100, 10, 6)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route and status code",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Time spent serving HTTP requests",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	httpRequestSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_size_bytes",
		Help:      "Declared size of HTTP request bodies",
		Buckets:   sizeBuckets,
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "Bytes written in HTTP responses",
		Buckets:   sizeBuckets,
	}, []string{"method", "path"})

	// Sync loop
	RegistrySyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "duration_seconds",
		Help:      "Time from pull to refreshed index for successful syncs",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	})
	RegistrySyncErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "errors_total",
		Help:      "Failed pulls or index refreshes",
	})

	// Index and rendered manifest cache
	RegistryCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Manifests served from the rendered manifest cache",
	})
	RegistryCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Manifests rendered from their source file",
	})
	RegistryCacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "entries",
		Help:      "Rendered manifests currently cached",
	})
	RegistryPluginsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "index",
		Name:      "plugins",
		Help:      "Plugins listed in index.yaml",
	})
	RegistryIndexValid = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "index",
		Name:      "valid",
		Help:      "1 when the last index.yaml load succeeded, 0 otherwise",
	})

	// Validation, labelled by origin (registry, api) and result
	ManifestValidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "manifest",
		Name:      "validations_total",
		Help:      "Manifest render attempts by origin and result",
	}, []string{"origin", "result"})
	ManifestDiagnostics = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "manifest",
		Name:      "diagnostics_total",
		Help:      "Diagnostics reported by failed manifest validations",
	})
	RangeChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "range",
		Name:      "checks_total",
		Help:      "Version range checks by result",
	}, []string{"result"})
)

// Metrics returns a middleware that records Prometheus metrics
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		route := normalizePath(r.URL.Path)
		rec := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		if r.ContentLength > 0 {
			httpRequestSize.WithLabelValues(r.Method, route).Observe(float64(r.ContentLength))
		}
		next.ServeHTTP(rec, r)

		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.Status())).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(started).Seconds())
		httpResponseSize.WithLabelValues(r.Method, route).Observe(float64(rec.BytesWritten()))
	})
}

// normalizePath maps plugin identifiers in the path to a placeholder so the
// path label keeps a bounded cardinality
func normalizePath(path string) string {
	const prefix = "/v1/plugins/"
	if !strings.HasPrefix(path, prefix) || len(path) == len(prefix) {
		return path
	}
	if strings.HasSuffix(path, "/dependencies") {
		return prefix + "{pluginID}/dependencies"
	}
	return prefix + "{pluginID}"
}
