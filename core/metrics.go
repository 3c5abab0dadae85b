package core

import "time"

// Metrics is implemented by the metrics service.
type Metrics interface {
	ObserveCalculation(class string, ranked int, took time.Duration, err error)
	ObserveExport(format string, took time.Duration, err error)
}

// NopMetrics records nothing.
type NopMetrics struct{}

func (NopMetrics) ObserveCalculation(string, int, time.Duration, error) {}
func (NopMetrics) ObserveExport(string, time.Duration, error)           {}
