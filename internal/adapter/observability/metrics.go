package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	VendorCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vendor_calls_total",
			Help: "Total number of vendor calls by vendor and outcome",
		},
		[]string{"vendor", "status"},
	)
	VendorCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vendor_call_duration_seconds",
			Help:    "Vendor call duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"vendor"},
	)

	JobsEnqueuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "jobs_enqueued_total",
			Help: "Total number of jobs enqueued",
		},
	)
	JobsProcessing = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jobs_processing",
			Help: "Number of jobs currently processing",
		},
		[]string{"vendor"},
	)
	JobsCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_completed_total",
			Help: "Total number of jobs completed",
		},
		[]string{"vendor"},
	)
	JobsFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_failed_total",
			Help: "Total number of jobs failed",
		},
		[]string{"vendor"},
	)

	CircuitBreakerStateGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"breaker"},
	)

	// Store-level gauges refreshed by the periodic stats updater.
	JobsByStatusGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jobs_by_status",
			Help: "Jobs in the store by status",
		},
		[]string{"status"},
	)
	JobsByVendorGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jobs_by_vendor",
			Help: "Jobs in the store by vendor",
		},
		[]string{"vendor"},
	)
	JobsRecentGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "jobs_created_last_hour",
			Help: "Jobs created within the last hour",
		},
	)
	QueueDepthGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "queue_depth",
			Help: "Entries currently in the job stream",
		},
	)
)

var initMetricsOnce sync.Once

// InitMetrics registers all collectors; call once per process.
func InitMetrics() {
	initMetricsOnce.Do(func() {
		prometheus.MustRegister(HTTPRequestsTotal)
		prometheus.MustRegister(HTTPRequestDuration)
		prometheus.MustRegister(VendorCallsTotal)
		prometheus.MustRegister(VendorCallDuration)
		prometheus.MustRegister(JobsEnqueuedTotal)
		prometheus.MustRegister(JobsProcessing)
		prometheus.MustRegister(JobsCompletedTotal)
		prometheus.MustRegister(JobsFailedTotal)
		prometheus.MustRegister(CircuitBreakerStateGauge)
		prometheus.MustRegister(JobsByStatusGauge)
		prometheus.MustRegister(JobsByVendorGauge)
		prometheus.MustRegister(JobsRecentGauge)
		prometheus.MustRegister(QueueDepthGauge)
	})
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside chi router; guard nil
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		HTTPRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(ww.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(dur)
	})
}

func EnqueueJob() {
	JobsEnqueuedTotal.Inc()
}

func StartProcessingJob(vendor string) {
	JobsProcessing.WithLabelValues(vendor).Inc()
}

func CompleteJob(vendor string) {
	JobsProcessing.WithLabelValues(vendor).Dec()
	JobsCompletedTotal.WithLabelValues(vendor).Inc()
}

func FailJob(vendor string) {
	JobsProcessing.WithLabelValues(vendor).Dec()
	JobsFailedTotal.WithLabelValues(vendor).Inc()
}

// ObserveVendorCall records one vendor invocation outcome.
func ObserveVendorCall(vendor, status string, seconds float64) {
	VendorCallsTotal.WithLabelValues(vendor, status).Inc()
	VendorCallDuration.WithLabelValues(vendor).Observe(seconds)
}

// SetCircuitBreakerState exports a breaker state transition.
func SetCircuitBreakerState(breaker string, state int) {
	CircuitBreakerStateGauge.WithLabelValues(breaker).Set(float64(state))
}
