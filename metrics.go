package forge

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors FORGE exposes for its
// background network operations: calendar submissions and upgrade polls.
// The core verification paths (hash/atom/Merkle) are synchronous,
// constant-memory, and deliberately carry no metrics — only the OTS
// client's network fan-out benefits from this kind of visibility.
type Metrics struct {
	submissions *prometheus.CounterVec
	upgradePoll *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance and registers its collectors with
// reg. Passing nil uses prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forge",
			Subsystem: "ots",
			Name:      "calendar_submissions_total",
			Help:      "Outcomes of OTS calendar digest submissions.",
		}, []string{"outcome"}),
		upgradePoll: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forge",
			Subsystem: "ots",
			Name:      "upgrade_polls_total",
			Help:      "Outcomes of OTS upgrade polls.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.submissions, m.upgradePoll)
	return m
}

// ObserveSubmission records the outcome of one SubmitToOTS call across all
// calendars it fanned out to.
func (m *Metrics) ObserveSubmission(successes, failures int) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues("submitted").Add(float64(successes))
	m.submissions.WithLabelValues("error").Add(float64(failures))
}

// ObserveUpgradePoll records whether a CheckOTSUpgrade call found a new
// Bitcoin attestation.
func (m *Metrics) ObserveUpgradePoll(upgraded bool) {
	if m == nil {
		return
	}
	if upgraded {
		m.upgradePoll.WithLabelValues("upgraded").Inc()
		return
	}
	m.upgradePoll.WithLabelValues("still_pending").Inc()
}
