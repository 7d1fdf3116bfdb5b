package metrics

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"framechat/internal/pipeline"
	"framechat/internal/protocol"
)

func TestMetrics_CountsTraffic(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "test")

	m.ConnectionOpened()
	m.ConnectionOpened()
	m.FrameReceived(protocol.ClientRegister, 11)
	m.FrameReceived(protocol.ClientConnect, 8)
	m.FrameReceived(protocol.ClientConnect, 9)
	m.FrameSent(10)
	m.Broadcast(protocol.ServerLoginAnnounce)
	m.ConnectionClosed(fmt.Errorf("read header: %w", io.EOF))
	m.FramesDropped(3)
	m.RoomSize(1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.connectionsActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.connectionsTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.framesReceived.WithLabelValues("client_connect")))
	assert.Equal(t, 28.0, testutil.ToFloat64(m.bytesReceived))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.closedTotal.WithLabelValues("eof")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.framesDropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.broadcastsTotal.WithLabelValues("server_login_announce")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.roomMembers))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ConnectionOpened()
		m.FrameReceived(protocol.Dummy, 6)
		m.ConnectionClosed(nil)
		m.Broadcast(protocol.Dummy)
	})
}

func TestCauseLabel(t *testing.T) {
	assert.Equal(t, "framing", causeLabel(fmt.Errorf("x: %w", protocol.ErrBodyTooLong)))
	assert.Equal(t, "eof", causeLabel(io.ErrUnexpectedEOF))
	assert.Equal(t, "closed", causeLabel(pipeline.ErrClosed))
	assert.Equal(t, "other", causeLabel(errors.New("boom")))
	assert.Equal(t, "unknown", causeLabel(nil))
}
