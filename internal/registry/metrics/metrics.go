package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	dErrors "nominal/pkg/domain-errors"
)

// Metrics provides observability for the registry service.
type Metrics struct {
	// Registrations by path ("direct", "sponsored") and asset
	Registrations *prometheus.CounterVec

	// Fee amounts settled, by asset and recipient ("treasury", "referrer")
	FeesSettled *prometheus.CounterVec

	// Failed operations by operation and error code
	Failures *prometheus.CounterVec

	// Operation latency including the store transaction
	OperationLatency *prometheus.HistogramVec
}

// New registers the registry metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nominal_registrations_total",
			Help: "Total successful name registrations by path and asset",
		}, []string{"path", "asset"}),

		FeesSettled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nominal_fees_settled_total",
			Help: "Total fee amount settled in smallest units by asset and recipient",
		}, []string{"asset", "recipient"}),

		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nominal_operation_failures_total",
			Help: "Total failed registry operations by operation and error code",
		}, []string{"operation", "code"}),

		OperationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nominal_operation_duration_seconds",
			Help:    "Duration of registry operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
	}
}

// IncrementRegistration records a committed registration.
func (m *Metrics) IncrementRegistration(path, asset string) {
	if m != nil {
		m.Registrations.WithLabelValues(path, asset).Inc()
	}
}

// AddFees records settled amounts. Amounts above 2^53 lose precision in
// the float counter; the ledger stays exact.
func (m *Metrics) AddFees(asset string, treasury, referrer uint64) {
	if m == nil {
		return
	}
	if treasury > 0 {
		m.FeesSettled.WithLabelValues(asset, "treasury").Add(float64(treasury))
	}
	if referrer > 0 {
		m.FeesSettled.WithLabelValues(asset, "referrer").Add(float64(referrer))
	}
}

// IncrementFailure records a failed operation under its error code.
func (m *Metrics) IncrementFailure(operation string, err error) {
	if m != nil {
		m.Failures.WithLabelValues(operation, string(dErrors.CodeOf(err))).Inc()
	}
}

// ObserveOperation records how long an operation took.
func (m *Metrics) ObserveOperation(operation string, start time.Time) {
	if m != nil {
		m.OperationLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
