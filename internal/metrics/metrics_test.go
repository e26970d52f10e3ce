package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonnison/tower-jumps/internal/model"
)

func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)
	return c, reg
}

func TestObserveInference(t *testing.T) {
	c, reg := newTestCollector(t)

	c.ObserveInference(model.MethodClustering, "interval", 12)
	c.ObserveInference(model.MethodClustering, "interval", 3)
	c.ObserveInference(model.MethodMajorityVote, "no_signal", 0)
	c.ObserveInference(model.MethodMajorityVote, "error", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Inferences.WithLabelValues("2", "interval")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Inferences.WithLabelValues("1", "no_signal")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Inferences.WithLabelValues("1", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.InferencePings))

	families, err := reg.Gather()
	require.NoError(t, err)
	var samples uint64
	for _, mf := range families {
		if mf.GetName() == "towerjumps_inference_pings" {
			samples = mf.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	assert.Equal(t, uint64(3), samples)
}

func TestObserveInference_NilCollector(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() { c.ObserveInference(model.MethodClustering, "interval", 1) })
}

func TestMiddleware_RoutePattern(t *testing.T) {
	c, _ := newTestCollector(t)

	r := chi.NewRouter()
	r.Use(c.Middleware)
	r.Get("/subscribers/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	for _, path := range []string{"/subscribers/1", "/subscribers/2", "/health"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("/subscribers/{id}", "GET", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("/health", "GET", "200")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.HTTPDurations))
}

func TestNewCollector_ReusesRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewCollector(reg)
	require.NoError(t, err)
	second, err := NewCollector(reg)
	require.NoError(t, err)

	first.ObserveInference(model.MethodClustering, "interval", 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(second.Inferences.WithLabelValues("2", "interval")))
}

func TestHandler(t *testing.T) {
	c, _ := newTestCollector(t)
	c.ObserveInference(model.MethodClustering, "interval", 5)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "towerjumps_inferences_total")
	assert.Contains(t, body, "towerjumps_inference_pings")
}
