// Package metrics exposes Prometheus counters for the account workflow.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "scholarhub"

type Metrics struct {
	reg *prometheus.Registry

	registrations  prometheus.Counter
	verifications  *prometheus.CounterVec
	loginFailures  prometheus.Counter
	approvals      *prometheus.CounterVec
	consentChanges *prometheus.CounterVec
	emails         *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
}

// New builds a registry with the process and Go runtime collectors plus the
// application counters.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Accounts created through the registration form.",
		}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verification_attempts_total",
			Help:      "Verification code checks by result.",
		}, []string{"purpose", "result"}),
		loginFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_failures_total",
			Help:      "Rejected sign-in attempts.",
		}),
		approvals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "approvals_total",
			Help:      "Account approvals by authoring identity resolution.",
		}, []string{"resolution"}),
		consentChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consent_changes_total",
			Help:      "Consent transitions by action.",
		}, []string{"action"}),
		emails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_total",
			Help:      "Outgoing emails by kind and outcome.",
		}, []string{"kind", "outcome"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Reference-data cache lookups by outcome.",
		}, []string{"outcome"}),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.registrations,
		m.verifications,
		m.loginFailures,
		m.approvals,
		m.consentChanges,
		m.emails,
		m.cacheLookups,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) Registered() {
	if m != nil {
		m.registrations.Inc()
	}
}

func (m *Metrics) Verification(purpose, result string) {
	if m != nil {
		m.verifications.WithLabelValues(purpose, result).Inc()
	}
}

func (m *Metrics) LoginFailed() {
	if m != nil {
		m.loginFailures.Inc()
	}
}

func (m *Metrics) Approved(resolution string) {
	if m != nil {
		m.approvals.WithLabelValues(resolution).Inc()
	}
}

func (m *Metrics) ConsentChanged(action string) {
	if m != nil {
		m.consentChanges.WithLabelValues(action).Inc()
	}
}

// Email counts one delivery attempt; err decides the outcome label.
func (m *Metrics) Email(kind string, err error) {
	if m == nil {
		return
	}
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	m.emails.WithLabelValues(kind, outcome).Inc()
}

// CacheLookup counts a hit, miss or error.
func (m *Metrics) CacheLookup(outcome string) {
	if m != nil {
		m.cacheLookups.WithLabelValues(outcome).Inc()
	}
}
