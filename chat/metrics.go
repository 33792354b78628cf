package chat

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments the connection lifecycle.
type Metrics struct {
	connectAttempts *prometheus.CounterVec
	messagesRecv    prometheus.Counter
	messagesSent    *prometheus.CounterVec
	errors          *prometheus.CounterVec
	status          prometheus.Gauge
	eventsApplied   *prometheus.CounterVec
}

// NewMetrics creates the client metrics and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connectAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat_client",
			Name:      "connect_attempts_total",
			Help:      "Connection attempts by result.",
		}, []string{"result"}),
		messagesRecv: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chat_client",
			Name:      "messages_received_total",
			Help:      "Inbound chat messages appended to the log.",
		}),
		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat_client",
			Name:      "messages_sent_total",
			Help:      "Outbound send operations by result.",
		}, []string{"result"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat_client",
			Name:      "errors_total",
			Help:      "Errors surfaced to the user by kind.",
		}, []string{"kind"}),
		status: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chat_client",
			Name:      "connection_status",
			Help:      "0 = disconnected, 1 = connecting, 2 = connected.",
		}),
		eventsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat_client",
			Name:      "events_applied_total",
			Help:      "Events applied by the dispatcher by kind.",
		}, []string{"kind"}),
	}
	if reg != nil {
		reg.MustRegister(m.connectAttempts, m.messagesRecv, m.messagesSent, m.errors, m.status, m.eventsApplied)
	}
	return m
}

func (m *Metrics) observeStatus(s Status) {
	m.status.Set(float64(s))
}

func errorKind(err error) string {
	switch err.(type) {
	case *ConnectError:
		return "connect"
	case *ParseError:
		return "parse"
	case *UnsupportedFrameTypeError:
		return "unsupported_frame"
	case *TransportError:
		return "transport"
	case *SendError:
		return "send"
	}
	if errors.Is(err, ErrNotConnected) {
		return "not_connected"
	}
	return "other"
}
