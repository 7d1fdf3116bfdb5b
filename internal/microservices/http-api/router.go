// Package httpapi serves the optional HTTP listener of the chat server:
// health, Prometheus metrics, and the WebSocket gateway.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"framechat/internal/microservices/websocket"
)

// RoomCounter reports the current room membership.
type RoomCounter interface {
	Count() int
}

// NewRouter wires the routes. gatherer may be nil to disable /metrics.
func NewRouter(server websocket.ConnServer, room RoomCounter, gatherer prometheus.Gatherer, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"members": room.Count(),
		})
	})
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	r.GET("/ws", websocket.WSHandler(server, logger))
	return r
}
