package p2p

import (
	"DCardGame/protocol"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "dcardgame"

// Metrics holds the node's Prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	framesSent        *prometheus.CounterVec
	framesReceived    *prometheus.CounterVec
	framesDropped     *prometheus.CounterVec
	bytesSent         prometheus.Counter
	bytesReceived     prometheus.Counter
	sendErrors        prometheus.Counter
	throttleCoalesced prometheus.Counter
	handlerPanics     prometheus.Counter
	sessionState      prometheus.Gauge
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		framesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "frames_sent_total",
			Help:      "Frames written to the peer channel by message kind",
		}, []string{"kind"}),

		framesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "frames_received_total",
			Help:      "Frames decoded and dispatched by message kind",
		}, []string{"kind"}),

		framesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "frames_dropped_total",
			Help:      "Inbound frames dropped because they could not be decoded",
		}, []string{"reason"}),

		bytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "bytes_sent_total",
			Help:      "Frame bytes written to the peer channel",
		}),

		bytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "bytes_received_total",
			Help:      "Frame bytes read from the peer channel",
		}),

		sendErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "send_errors_total",
			Help:      "Frames that failed to reach the peer channel",
		}),

		throttleCoalesced: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "throttle_coalesced_total",
			Help:      "Throttled messages replaced by a newer one before being sent",
		}),

		handlerPanics: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "handler_panics_total",
			Help:      "Event subscribers that panicked",
		}),

		sessionState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "session_state",
			Help:      "Session state: 0 idle, 1 connecting, 2 open, 3 closed",
		}),
	}
}

func (m *Metrics) frameSent(kind protocol.MessageKind, n int) {
	if m == nil {
		return
	}
	m.framesSent.WithLabelValues(kind.String()).Inc()
	m.bytesSent.Add(float64(n))
}

func (m *Metrics) frameReceived(n int) {
	if m == nil {
		return
	}
	m.bytesReceived.Add(float64(n))
}

func (m *Metrics) frameDispatched(kind protocol.MessageKind) {
	if m == nil {
		return
	}
	m.framesReceived.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) frameDropped(reason string) {
	if m == nil {
		return
	}
	m.framesDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) sendFailed() {
	if m == nil {
		return
	}
	m.sendErrors.Inc()
}

func (m *Metrics) coalesced() {
	if m == nil {
		return
	}
	m.throttleCoalesced.Inc()
}

func (m *Metrics) handlerPanicked() {
	if m == nil {
		return
	}
	m.handlerPanics.Inc()
}

func (m *Metrics) setState(s SessionState) {
	if m == nil {
		return
	}
	m.sessionState.Set(float64(s))
}
