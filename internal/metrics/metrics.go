// Package metrics exposes Prometheus metrics for the HTTP API and the
// inference service.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"

	"github.com/jonnison/tower-jumps/internal/model"
)

const namespace = "towerjumps"

// Collector bundles the service metrics. It implements inference.Recorder.
type Collector struct {
	gatherer prometheus.Gatherer

	HTTPRequests   *prometheus.CounterVec
	HTTPDurations  *prometheus.HistogramVec
	Inferences     *prometheus.CounterVec
	InferencePings prometheus.Histogram
}

// NewCollector registers the metrics against reg, or the default registry
// when reg is nil. Registering twice against the same registry reuses the
// existing collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests handled, by route pattern, method and status code.",
	}, []string{"route", "method", "code"}))
	if err != nil {
		return nil, err
	}

	durations, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency in seconds, by route pattern.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"route"}))
	if err != nil {
		return nil, err
	}

	inferences, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "inferences_total",
		Help:      "Inference runs, by method id and outcome (interval, no_signal, error).",
	}, []string{"method", "outcome"}))
	if err != nil {
		return nil, err
	}

	pings, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "inference_pings",
		Help:      "Number of pings considered per inference.",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
	}))
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:       gatherer,
		HTTPRequests:   requests,
		HTTPDurations:  durations,
		Inferences:     inferences,
		InferencePings: pings,
	}, nil
}

// ObserveInference records one inference run.
func (c *Collector) ObserveInference(method model.Method, outcome string, pings int) {
	if c == nil {
		return
	}
	c.Inferences.WithLabelValues(strconv.Itoa(int(method)), outcome).Inc()
	if outcome != "error" {
		c.InferencePings.Observe(float64(pings))
	}
}

// Middleware records request counts and latency labelled by chi route
// pattern, so path parameters do not explode label cardinality.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := routePattern(r)
		c.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		c.HTTPDurations.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, eris.Wrap(err, "metrics: register collector")
	}
	return c, nil
}
