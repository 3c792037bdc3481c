package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	dErrors "nominal/pkg/domain-errors"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementRegistration("sponsored", "near")
	m.AddFees("near", 970, 30)
	m.AddFees("near", 1000, 0)
	m.IncrementFailure("register_direct", dErrors.New(dErrors.CodeNameTaken, "taken"))
	m.IncrementFailure("register_direct", errors.New("disk on fire"))
	m.ObserveOperation("register_direct", time.Now())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Registrations.WithLabelValues("sponsored", "near")))
	assert.Equal(t, 1970.0, testutil.ToFloat64(m.FeesSettled.WithLabelValues("near", "treasury")))
	assert.Equal(t, 30.0, testutil.ToFloat64(m.FeesSettled.WithLabelValues("near", "referrer")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Failures.WithLabelValues("register_direct", "name_taken")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Failures.WithLabelValues("register_direct", "internal_error")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementRegistration("direct", "near")
		m.AddFees("near", 1, 1)
		m.IncrementFailure("op", errors.New("x"))
		m.ObserveOperation("op", time.Now())
	})
}
