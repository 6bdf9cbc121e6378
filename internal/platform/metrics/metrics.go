package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for both registries. Services
// treat the struct as optional; a nil *Metrics disables instrumentation.
type Metrics struct {
	ApplicationsSubmitted prometheus.Counter
	ApplicationsRejected  prometheus.Counter
	AuthoritiesRegistered prometheus.Counter
	StatusChanges         prometheus.Counter
	ProofsSubmitted       prometheus.Counter
	ProofsRevoked         prometheus.Counter
	RecordsRevoked        prometheus.Counter
	Verifications         *prometheus.CounterVec
}

// New registers all metrics on reg. Pass prometheus.DefaultRegisterer in
// main and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ApplicationsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "healthpass_applications_submitted_total",
			Help: "Total authority applications submitted.",
		}),
		ApplicationsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "healthpass_applications_rejected_total",
			Help: "Total authority applications rejected.",
		}),
		AuthoritiesRegistered: factory.NewCounter(prometheus.CounterOpts{
			Name: "healthpass_authorities_registered_total",
			Help: "Total authorities registered (applications approved).",
		}),
		StatusChanges: factory.NewCounter(prometheus.CounterOpts{
			Name: "healthpass_authority_status_changes_total",
			Help: "Total authority status transitions applied.",
		}),
		ProofsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "healthpass_proofs_submitted_total",
			Help: "Total ZK proofs submitted to the registry.",
		}),
		ProofsRevoked: factory.NewCounter(prometheus.CounterOpts{
			Name: "healthpass_proofs_revoked_total",
			Help: "Total ZK proofs revoked.",
		}),
		RecordsRevoked: factory.NewCounter(prometheus.CounterOpts{
			Name: "healthpass_health_records_revoked_total",
			Help: "Total health record hashes flagged revoked by authorities.",
		}),
		Verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "healthpass_verifications_total",
			Help: "Total proof verification calls by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) ObserveVerification(valid bool) {
	if m == nil {
		return
	}
	outcome := "invalid"
	if valid {
		outcome = "valid"
	}
	m.Verifications.WithLabelValues(outcome).Inc()
}
