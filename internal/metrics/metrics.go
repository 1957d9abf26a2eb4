// Package metrics exposes Prometheus collectors for the XMPP client.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wsroster"

// Metrics holds the client collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	framesReceived    *prometheus.CounterVec
	framesDropped     *prometheus.CounterVec
	handlerErrors     prometheus.Counter
	reconnectAttempts prometheus.Counter
	connectResults    *prometheus.CounterVec
	connectionStatus  *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		framesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "xmpp",
				Name:      "frames_received_total",
				Help:      "Decoded inbound frames by kind",
			},
			[]string{"kind"},
		),
		framesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "xmpp",
				Name:      "frames_dropped_total",
				Help:      "Inbound transport frames dropped by the codec",
			},
			[]string{"reason"},
		),
		handlerErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "xmpp",
				Name:      "handler_errors_total",
				Help:      "Stanza handlers that returned an error or panicked",
			},
		),
		reconnectAttempts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "xmpp",
				Name:      "reconnect_attempts_total",
				Help:      "Automatic reconnection attempts",
			},
		),
		connectResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "xmpp",
				Name:      "connect_results_total",
				Help:      "Completed connection attempts by result",
			},
			[]string{"result"},
		),
		connectionStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "xmpp",
				Name:      "connection_status",
				Help:      "1 for the current connection status, 0 otherwise",
			},
			[]string{"status"},
		),
	}

	collectors := []prometheus.Collector{
		m.framesReceived,
		m.framesDropped,
		m.handlerErrors,
		m.reconnectAttempts,
		m.connectResults,
		m.connectionStatus,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}
	return m, nil
}

// FrameReceived counts a decoded frame.
func (m *Metrics) FrameReceived(kind string) {
	if m == nil {
		return
	}
	m.framesReceived.WithLabelValues(kind).Inc()
}

// FrameDropped counts a transport frame the codec refused.
func (m *Metrics) FrameDropped(reason string) {
	if m == nil {
		return
	}
	m.framesDropped.WithLabelValues(reason).Inc()
}

// HandlerError counts a failed stanza handler.
func (m *Metrics) HandlerError() {
	if m == nil {
		return
	}
	m.handlerErrors.Inc()
}

// ReconnectAttempt counts an automatic reconnection.
func (m *Metrics) ReconnectAttempt() {
	if m == nil {
		return
	}
	m.reconnectAttempts.Inc()
}

// ConnectResult counts a finished connection attempt.
func (m *Metrics) ConnectResult(result string) {
	if m == nil {
		return
	}
	m.connectResults.WithLabelValues(result).Inc()
}

// SetStatus marks status as the current connection status.
func (m *Metrics) SetStatus(status string, all []string) {
	if m == nil {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == status {
			v = 1
		}
		m.connectionStatus.WithLabelValues(s).Set(v)
	}
}
