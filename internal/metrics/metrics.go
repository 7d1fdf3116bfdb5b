// Package metrics exposes Prometheus collectors for the chat server.
package metrics

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"framechat/internal/pipeline"
	"framechat/internal/protocol"
)

// Metrics implements pipeline.Observer and counts room activity.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	connectionsActive prometheus.Gauge
	connectionsTotal  prometheus.Counter
	closedTotal       *prometheus.CounterVec
	framesReceived    *prometheus.CounterVec
	bytesReceived     prometheus.Counter
	framesSent        prometheus.Counter
	bytesSent         prometheus.Counter
	framesDropped     prometheus.Counter
	broadcastsTotal   *prometheus.CounterVec
	roomMembers       prometheus.Gauge
}

// New registers the collectors on reg under the given namespace.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		connectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of open chat connections",
		}),
		connectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Total number of accepted chat connections",
		}),
		closedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_closed_total",
			Help:      "Closed connections by cause",
		}, []string{"cause"}),
		framesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Decoded inbound frames by kind",
		}, []string{"kind"}),
		bytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "received_bytes_total",
			Help:      "Inbound frame bytes, header included",
		}),
		framesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Frames fully written to a transport",
		}),
		bytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sent_bytes_total",
			Help:      "Outbound frame bytes, header included",
		}),
		framesDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Queued frames discarded because their connection closed",
		}),
		broadcastsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Messages fanned out by the room, by kind",
		}, []string{"kind"}),
		roomMembers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "room_members",
			Help:      "Current room membership",
		}),
	}
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connectionsActive.Inc()
	m.connectionsTotal.Inc()
}

func (m *Metrics) ConnectionClosed(cause error) {
	if m == nil {
		return
	}
	m.connectionsActive.Dec()
	m.closedTotal.WithLabelValues(causeLabel(cause)).Inc()
}

func (m *Metrics) FrameReceived(kind protocol.Kind, size int) {
	if m == nil {
		return
	}
	m.framesReceived.WithLabelValues(kind.String()).Inc()
	m.bytesReceived.Add(float64(size))
}

func (m *Metrics) FrameSent(size int) {
	if m == nil {
		return
	}
	m.framesSent.Inc()
	m.bytesSent.Add(float64(size))
}

func (m *Metrics) FramesDropped(n int) {
	if m == nil {
		return
	}
	m.framesDropped.Add(float64(n))
}

func (m *Metrics) Broadcast(kind protocol.Kind) {
	if m == nil {
		return
	}
	m.broadcastsTotal.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) RoomSize(n int) {
	if m == nil {
		return
	}
	m.roomMembers.Set(float64(n))
}

func causeLabel(cause error) string {
	switch {
	case cause == nil:
		return "unknown"
	case errors.Is(cause, io.EOF), errors.Is(cause, io.ErrUnexpectedEOF):
		return "eof"
	case errors.Is(cause, protocol.ErrMalformedHeader), errors.Is(cause, protocol.ErrBodyTooLong):
		return "framing"
	case errors.Is(cause, net.ErrClosed), errors.Is(cause, pipeline.ErrClosed), errors.Is(cause, context.Canceled):
		return "closed"
	default:
		var opErr *net.OpError
		if errors.As(cause, &opErr) {
			return "transport"
		}
		return "other"
	}
}
