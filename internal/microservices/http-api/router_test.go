package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gws "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"framechat/internal/metrics"
	"framechat/internal/microservices/tcp"
	"framechat/internal/protocol"
)

func newTestRouter(t *testing.T) (*httptest.Server, *tcp.TCPServer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := prometheus.NewRegistry()
	chat := tcp.NewServer(nil, tcp.WithMetrics(metrics.New(reg, "framechat")))
	srv := httptest.NewServer(NewRouter(chat, chat.Room, reg, nil))
	t.Cleanup(func() {
		chat.Stop()
		srv.Close()
	})
	return srv, chat
}

func TestRouter_Healthz(t *testing.T) {
	srv, _ := newTestRouter(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(0), body["members"])
}

func TestRouter_WebSocketJoinsRoom(t *testing.T) {
	srv, chat := newTestRouter(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := gws.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return chat.Room.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	// a frame split across two websocket messages must still decode
	frame, err := protocol.NewTextMessage(protocol.ClientRegister, "erin").Frame()
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(gws.BinaryMessage, frame[:4]))
	require.NoError(t, conn.WriteMessage(gws.BinaryMessage, frame[4:]))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(data), protocol.HeaderLength)
	length, kind, err := protocol.DecodeHeader(data[:protocol.HeaderLength])
	require.NoError(t, err)
	assert.Equal(t, protocol.ServerLoginAnnounce, kind)
	assert.Equal(t, "erin", string(data[protocol.HeaderLength:protocol.HeaderLength+length]))

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return chat.Room.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestRouter_Metrics(t *testing.T) {
	srv, _ := newTestRouter(t)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "framechat_connections_total")
}
