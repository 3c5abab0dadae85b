package metricsvc

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheus(t *testing.T) {
	m, err := NewPrometheus(prometheus.NewRegistry())
	require.NoError(t, err)

	m.ObserveCalculation("P.5", 30, 20*time.Millisecond, nil)
	m.ObserveCalculation("P.5", 31, time.Millisecond, errors.New("db down"))
	m.ObserveCalculation("P.6", 12, time.Millisecond, nil)
	m.ObserveExport("pdf", time.Second, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.calculationsTotal.WithLabelValues("P.5", resultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.calculationsTotal.WithLabelValues("P.5", resultError)))
	assert.Equal(t, 30.0, testutil.ToFloat64(m.rankedPupils.WithLabelValues("P.5")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.rankedPupils.WithLabelValues("P.6")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reportExportsTotal.WithLabelValues("pdf", resultSuccess)))
	assert.Equal(t, 2, testutil.CollectAndCount(m.calculationLatency))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `matokeo_ranked_pupils{class="P.5"} 30`)
}

func TestNewPrometheus_registersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheus(reg)
	require.NoError(t, err)

	_, err = NewPrometheus(reg)
	assert.Error(t, err)
}
