package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerDuration(t *testing.T) {
	timer := NewTimer()
	time.Sleep(20 * time.Millisecond)

	d := timer.Duration()
	assert.GreaterOrEqual(t, d, 20*time.Millisecond)
	assert.GreaterOrEqual(t, timer.Duration(), d, "duration must not go backwards")
}

func TestTimerObserveDuration(t *testing.T) {
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_duration_seconds",
		Help:    "Test duration histogram",
		Buckets: prometheus.DefBuckets,
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(histogram)

	NewTimer().ObserveDuration(histogram)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, uint64(1), families[0].GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestTimerObserveDurationVec(t *testing.T) {
	vec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "test_duration_vec_seconds",
			Help:    "Test duration histogram vec",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(vec)

	timer := NewTimer()
	timer.ObserveDurationVec(vec, "create_alert")
	timer.ObserveDurationVec(vec, "subscribe_alert")

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Len(t, families[0].GetMetric(), 2)
}

func TestHandlerExposesRegistryMetrics(t *testing.T) {
	CommandsTotal.WithLabelValues("create_alert", "ok").Inc()
	AlertsTotal.Set(3)

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, `beacon_commands_total{op="create_alert",result="ok"}`))
	assert.Contains(t, body, "beacon_alerts_total 3")
}
