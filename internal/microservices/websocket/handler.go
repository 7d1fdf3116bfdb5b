package websocket

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"framechat/internal/pipeline"
)

// HTTP upgrade handler to WebSocket connections

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// allow all origins; the chat has no authentication either
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ConnServer runs a chat connection over any stream; *tcp.TCPServer implements it.
type ConnServer interface {
	ServeConn(rw io.ReadWriteCloser, opts ...pipeline.Option) error
}

// WSHandler upgrades the request and serves the frame stream until it closes.
func WSHandler(server ConnServer, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// the upgrader has already replied with an HTTP error
			logger.Warn("websocket_upgrade_failed",
				"remote_addr", c.Request.RemoteAddr,
				"error", err,
			)
			return
		}

		stream := NewStream(conn)
		logger.Info("websocket_client_connected", "remote_addr", conn.RemoteAddr().String())
		_ = server.ServeConn(stream, pipeline.WithRemoteAddr("ws://"+conn.RemoteAddr().String()))
	}
}
