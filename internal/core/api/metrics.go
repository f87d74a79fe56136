package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/solatis/surveylogic/internal/rules"
)

// Metrics holds the service's Prometheus collectors on a private registry.
// It implements rules.Observer for per-pass statistics.
type Metrics struct {
	registry     *prometheus.Registry
	passes       prometheus.Counter
	ruleFailures prometheus.Counter
	results      prometheus.Histogram
	passDuration prometheus.Histogram
	requests     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
}

// NewMetrics registers the surveylogic collectors plus Go runtime and
// process collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		passes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "surveylogic",
			Name:      "passes_total",
			Help:      "Page evaluation passes run.",
		}),
		ruleFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "surveylogic",
			Name:      "rule_failures_total",
			Help:      "Rules skipped as malformed during evaluation passes.",
		}),
		results: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "surveylogic",
			Name:      "pass_results",
			Help:      "Evaluation results produced per pass.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "surveylogic",
			Name:      "pass_duration_seconds",
			Help:      "Wall time of one evaluation pass.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "surveylogic",
			Name:      "requests_total",
			Help:      "Requests handled, by transport, method and status code.",
		}, []string{"transport", "method", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "surveylogic",
			Name:      "request_duration_seconds",
			Help:      "Request latency by transport and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"transport", "method"}),
	}

	m.registry.MustRegister(
		m.passes, m.ruleFailures, m.results, m.passDuration, m.requests, m.latency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObservePass implements rules.Observer.
func (m *Metrics) ObservePass(stats rules.PassStats) {
	m.passes.Inc()
	m.ruleFailures.Add(float64(stats.Failed))
	m.results.Observe(float64(stats.Results))
	m.passDuration.Observe(stats.Duration.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observeRequest(transport, method, code string, elapsed time.Duration) {
	m.requests.WithLabelValues(transport, method, code).Inc()
	m.latency.WithLabelValues(transport, method).Observe(elapsed.Seconds())
}

// UnaryInterceptor records request counts and latency for gRPC calls.
func (m *Metrics) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		m.observeRequest("grpc", info.FullMethod, status.Code(err).String(), time.Since(start))
		return resp, err
	}
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument records request counts and latency for one REST route.
func (m *Metrics) instrument(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next(rec, r)
		m.observeRequest("http", method, strconv.Itoa(rec.code), time.Since(start))
	}
}

var _ rules.Observer = (*Metrics)(nil)
