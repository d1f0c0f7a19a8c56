package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics — доменные счётчики аутентификации.
type Metrics struct {
	SignInFailures prometheus.Counter
	Lockouts       prometheus.Counter
	Rotations      prometheus.Counter
	TokenMismatch  prometheus.Counter
}

// NewMetrics создаёт и регистрирует счётчики в переданном Registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		SignInFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_signin_failures_total",
			Help: "Total failed sign-in attempts.",
		}),
		Lockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_lockouts_total",
			Help: "Total accounts locked after consecutive sign-in failures.",
		}),
		Rotations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_refresh_rotations_total",
			Help: "Total successful refresh-token rotations.",
		}),
		TokenMismatch: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_refresh_mismatch_total",
			Help: "Refresh tokens rejected because the stored hash did not match (possible reuse).",
		}),
	}

	registry.MustRegister(m.SignInFailures, m.Lockouts, m.Rotations, m.TokenMismatch)

	return m
}

func (m *Metrics) signInFailure() {
	if m != nil {
		m.SignInFailures.Inc()
	}
}

func (m *Metrics) lockout() {
	if m != nil {
		m.Lockouts.Inc()
	}
}

func (m *Metrics) rotation() {
	if m != nil {
		m.Rotations.Inc()
	}
}

func (m *Metrics) tokenMismatch() {
	if m != nil {
		m.TokenMismatch.Inc()
	}
}
