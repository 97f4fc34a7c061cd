package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the ERP Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	// E-invoice lifecycle
	EInvoiceTransitionsTotal *prometheus.CounterVec

	// Tax authority calls
	NICCallsTotal   *prometheus.CounterVec
	NICCallDuration *prometheus.HistogramVec

	// Access control
	AuthzDeniedTotal *prometheus.CounterVec

	// Credential provider
	CredentialReloadsTotal *prometheus.CounterVec
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		EInvoiceTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erp_einvoice_transitions_total",
				Help: "Total number of persisted e-invoice status transitions",
			},
			[]string{"status"},
		),
		NICCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erp_nic_calls_total",
				Help: "Total number of calls made to the NIC portal",
			},
			[]string{"operation", "outcome"},
		),
		NICCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "erp_nic_call_duration_seconds",
				Help:    "NIC portal call duration in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
			},
			[]string{"operation"},
		),
		AuthzDeniedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erp_authz_denied_total",
				Help: "Total number of requests rejected by an access guard",
			},
			[]string{"guard"},
		),
		CredentialReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erp_credential_reloads_total",
				Help: "Total number of GST credential reloads",
			},
			[]string{"outcome"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.EInvoiceTransitionsTotal,
		m.NICCallsTotal,
		m.NICCallDuration,
		m.AuthzDeniedTotal,
		m.CredentialReloadsTotal,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// The record helpers accept a nil receiver so callers can run without metrics.

func (m *Metrics) RecordTransition(status string) {
	if m == nil {
		return
	}
	m.EInvoiceTransitionsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordNICCall(operation, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.NICCallsTotal.WithLabelValues(operation, outcome).Inc()
	m.NICCallDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *Metrics) RecordDenied(guard string) {
	if m == nil {
		return
	}
	m.AuthzDeniedTotal.WithLabelValues(guard).Inc()
}

func (m *Metrics) RecordCredentialReload(outcome string) {
	if m == nil {
		return
	}
	m.CredentialReloadsTotal.WithLabelValues(outcome).Inc()
}
