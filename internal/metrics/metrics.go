package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the gate service. A nil *Metrics is
// valid and records nothing, so tests can pass nil.
type Metrics struct {
	// Scans by direction (IN/OUT) and user type (STUDENT/STAFF/UNKNOWN)
	Scans *prometheus.CounterVec

	// RegNos converged by the resolution engine
	ResolvedRegNos prometheus.Counter

	// Currently open ledger entries
	OpenEntries prometheus.Gauge
}

// New registers and returns the gate service metrics.
func New() *Metrics {
	return &Metrics{
		Scans: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gatelog_scans_total",
			Help: "Total gate scans by direction and user type",
		}, []string{"direction", "user_type"}),

		ResolvedRegNos: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatelog_resolved_regnos_total",
			Help: "Registration numbers whose unknown ledger entries were resolved",
		}),

		OpenEntries: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "gatelog_open_entries",
			Help: "Ledger entries currently checked in",
		}),
	}
}

// CountScan records one scan outcome.
func (m *Metrics) CountScan(direction, userType string) {
	if m != nil {
		m.Scans.WithLabelValues(direction, userType).Inc()
	}
}

// CountResolved records regNos converged by a resolution pass.
func (m *Metrics) CountResolved(n int) {
	if m != nil && n > 0 {
		m.ResolvedRegNos.Add(float64(n))
	}
}

// AddOpen adjusts the open-entry gauge.
func (m *Metrics) AddOpen(delta int) {
	if m != nil {
		m.OpenEntries.Add(float64(delta))
	}
}
