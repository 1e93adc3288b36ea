package dossier

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricDossiersCreated = "dossiers_created_total"
	MetricStatusChanges   = "dossier_status_changes_total"
)

// Metrics contains Prometheus metrics for dossier lifecycle operations.
type Metrics struct {
	dossiersCreated prometheus.Counter
	statusChanges   *prometheus.CounterVec
}

// NewMetrics creates the collectors without registering them; call
// Register to attach them to a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		dossiersCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricDossiersCreated,
				Help: "Total number of dossiers created",
			},
		),
		statusChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricStatusChanges,
				Help: "Total number of dossier status transitions by new status",
			},
			[]string{"nouveau_statut"},
		),
	}
}

// Register registers all collectors with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.dossiersCreated, m.statusChanges} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// DossierCreated increments the creation counter.
func (m *Metrics) DossierCreated() {
	if m == nil {
		return
	}
	m.dossiersCreated.Inc()
}

// StatusChanged increments the transition counter for the new status.
func (m *Metrics) StatusChanged(nouveau Status) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(string(nouveau)).Inc()
}
