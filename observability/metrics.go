// Package observability provides Prometheus metrics and OpenTelemetry
// tracing for botrelay.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics holds the botrelay instruments. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Registrations         *prometheus.CounterVec
	Deregistrations       *prometheus.CounterVec
	RegisteredWebhooks    prometheus.Gauge
	NotificationsSent     *prometheus.CounterVec
	NotificationsReceived *prometheus.CounterVec
	CacheLookups          *prometheus.CounterVec
	InboundUpdates        *prometheus.CounterVec
}

// NewMetrics creates the instruments and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "botrelay_webhook_registrations_total",
			Help: "setWebhook calls by result.",
		}, []string{"result"}),
		Deregistrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "botrelay_webhook_deregistrations_total",
			Help: "deleteWebhook calls by result.",
		}, []string{"result"}),
		RegisteredWebhooks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "botrelay_registered_webhooks",
			Help: "Usernames this instance believes have a live webhook.",
		}),
		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "botrelay_notifications_published_total",
			Help: "Bus messages published by kind and result.",
		}, []string{"kind", "result"}),
		NotificationsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "botrelay_notifications_received_total",
			Help: "Bus messages handled by kind.",
		}, []string{"kind"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "botrelay_cache_lookups_total",
			Help: "Bot cache lookups by result (hit, miss).",
		}, []string{"result"}),
		InboundUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "botrelay_inbound_updates_total",
			Help: "Inbound webhook calls by status code class.",
		}, []string{"status"}),
	}
	reg.MustRegister(
		m.Registrations,
		m.Deregistrations,
		m.RegisteredWebhooks,
		m.NotificationsSent,
		m.NotificationsReceived,
		m.CacheLookups,
		m.InboundUpdates,
	)
	return m
}

func result(ok bool) string {
	if ok {
		return ResultOK
	}
	return ResultError
}

// RecordRegistration counts a setWebhook attempt.
func (m *Metrics) RecordRegistration(ok bool) {
	if m == nil {
		return
	}
	m.Registrations.WithLabelValues(result(ok)).Inc()
}

// RecordDeregistration counts a deleteWebhook attempt.
func (m *Metrics) RecordDeregistration(ok bool) {
	if m == nil {
		return
	}
	m.Deregistrations.WithLabelValues(result(ok)).Inc()
}

// SetRegistered sets the registered-webhook gauge.
func (m *Metrics) SetRegistered(n int) {
	if m == nil {
		return
	}
	m.RegisteredWebhooks.Set(float64(n))
}

// RecordPublish counts a published bus message.
func (m *Metrics) RecordPublish(kind string, ok bool) {
	if m == nil {
		return
	}
	m.NotificationsSent.WithLabelValues(kind, result(ok)).Inc()
}

// RecordReceive counts a handled bus message.
func (m *Metrics) RecordReceive(kind string) {
	if m == nil {
		return
	}
	m.NotificationsReceived.WithLabelValues(kind).Inc()
}

// RecordCacheLookup counts a cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.CacheLookups.WithLabelValues("miss").Inc()
}

// RecordInbound counts an inbound webhook call by HTTP status.
func (m *Metrics) RecordInbound(status int) {
	if m == nil {
		return
	}
	class := "5xx"
	switch {
	case status < 300:
		class = "2xx"
	case status < 400:
		class = "3xx"
	case status < 500:
		class = "4xx"
	}
	m.InboundUpdates.WithLabelValues(class).Inc()
}
