package metricsvc

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/matokeo/core"
)

const (
	metricPrefix = "matokeo_"

	resultSuccess = "success"
	resultError   = "error"
)

// Prometheus records calculation and export metrics.
type Prometheus struct {
	gatherer prometheus.Gatherer

	calculationsTotal   *prometheus.CounterVec
	calculationLatency  *prometheus.HistogramVec
	rankedPupils        *prometheus.GaugeVec
	reportExportsTotal  *prometheus.CounterVec
	reportExportLatency *prometheus.HistogramVec
}

var _ core.Metrics = (*Prometheus)(nil)

// NewPrometheus registers the metrics on reg.
// With a nil reg the default registry is used, which must happen at most once per process.
func NewPrometheus(reg *prometheus.Registry) (*Prometheus, error) {
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if reg != nil {
		registerer, gatherer = reg, reg
	}

	m := &Prometheus{
		gatherer: gatherer,
		calculationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "results_calculations_total",
				Help: "Total class results calculations by class and result",
			},
			[]string{"class", "result"},
		),
		calculationLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "results_calculation_latency_seconds",
				Help:    "Class results calculation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"class"},
		),
		rankedPupils: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "ranked_pupils",
				Help: "Pupils ranked by the last successful calculation of a class",
			},
			[]string{"class"},
		),
		reportExportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_exports_total",
				Help: "Total report exports by format and result",
			},
			[]string{"format", "result"},
		),
		reportExportLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_export_latency_seconds",
				Help:    "Report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format"},
		),
	}

	for _, c := range []prometheus.Collector{
		m.calculationsTotal,
		m.calculationLatency,
		m.rankedPupils,
		m.reportExportsTotal,
		m.reportExportLatency,
	} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func resultLabel(err error) string {
	if err != nil {
		return resultError
	}
	return resultSuccess
}

func (m *Prometheus) ObserveCalculation(class string, ranked int, took time.Duration, err error) {
	m.calculationsTotal.WithLabelValues(class, resultLabel(err)).Inc()
	m.calculationLatency.WithLabelValues(class).Observe(took.Seconds())
	if err == nil {
		m.rankedPupils.WithLabelValues(class).Set(float64(ranked))
	}
}

func (m *Prometheus) ObserveExport(format string, took time.Duration, err error) {
	m.reportExportsTotal.WithLabelValues(format, resultLabel(err)).Inc()
	m.reportExportLatency.WithLabelValues(format).Observe(took.Seconds())
}

// Handler serves the registered metrics.
func (m *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
