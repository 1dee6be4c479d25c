package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collectMetric extracts the metric matching labels from a collector
func collectMetric(t *testing.T, c prometheus.Collector, labels map[string]string) *dto.Metric {
	t.Helper()
	ch := make(chan prometheus.Metric, 100)
	c.Collect(ch)
	close(ch)

	for m := range ch {
		d := &dto.Metric{}
		if err := m.Write(d); err != nil {
			continue
		}

		match := true
		for k, v := range labels {
			found := false
			for _, lp := range d.GetLabel() {
				if lp.GetName() == k && lp.GetValue() == v {
					found = true
					break
				}
			}
			if !found {
				match = false
				break
			}
		}
		if match {
			return d
		}
	}
	return nil
}

func TestPrometheusMetrics_RecordsRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(PrometheusMetrics())
	router.GET("/metrics-test/:id", func(c *gin.Context) {
		c.Status(http.StatusTeapot)
	})

	labels := map[string]string{"method": "GET", "path": "/metrics-test/:id", "status": "418"}
	before := 0.0
	if m := collectMetric(t, httpRequestsTotal, labels); m != nil {
		before = m.GetCounter().GetValue()
	}

	for _, id := range []string{"1", "2"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/metrics-test/"+id, nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusTeapot, w.Code)
	}

	m := collectMetric(t, httpRequestsTotal, labels)
	require.NotNil(t, m)
	assert.Equal(t, before+2, m.GetCounter().GetValue())

	h := collectMetric(t, httpRequestDuration, labels)
	require.NotNil(t, h)
	assert.GreaterOrEqual(t, h.GetHistogram().GetSampleCount(), uint64(2))
}

func TestPrometheusMetrics_UnmatchedRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(PrometheusMetrics())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NotNil(t, collectMetric(t, httpRequestsTotal, map[string]string{"path": "unknown", "status": "404"}))
}
