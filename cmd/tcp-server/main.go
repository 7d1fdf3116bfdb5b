package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"framechat/internal/config"
	"framechat/internal/metrics"
	httpapi "framechat/internal/microservices/http-api"
	"framechat/internal/microservices/relay"
	"framechat/internal/microservices/tcp"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	// Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	// positional ports win over CHAT_PORTS
	if len(args) > 0 {
		ports, err := config.ParsePorts(args)
		if err != nil {
			return fmt.Errorf("usage: tcp-server <port> [<port> ...]: %w", err)
		}
		cfg.ChatPorts = ports
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Setup structured logging
	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry, "framechat")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	room := tcp.NewRoom(logger, m)
	opts := []tcp.Option{
		tcp.WithLogger(logger),
		tcp.WithMetrics(m),
		tcp.WithRoom(room),
		tcp.WithDefaultName(cfg.DefaultName),
		tcp.WithAcceptRetryInterval(cfg.AcceptRetryInterval),
	}

	// Optional relay so several processes share one room
	if cfg.RedisURL != "" {
		client, err := relay.NewClient(ctx, cfg.RedisURL, cfg.RedisPassword)
		if err != nil {
			return err
		}
		defer client.Close()

		bridge := relay.New(client, cfg.RedisChannel, room, logger)
		opts = append(opts, tcp.WithBroadcaster(bridge))
		go func() {
			if err := bridge.Run(ctx); err != nil {
				logger.Error("relay_stopped", "error", err.Error())
			}
		}()
	}

	server := tcp.NewServer(cfg.ChatAddrs(), opts...)
	if err := server.Listen(); err != nil {
		return err
	}

	errChan := make(chan error, 2)
	go func() {
		errChan <- server.Serve()
	}()

	// Optional HTTP listener: health, metrics, websocket gateway
	var httpServer *http.Server
	if cfg.HTTPPort != 0 {
		if !cfg.IsDevelopment() {
			gin.SetMode(gin.ReleaseMode)
		}
		httpServer = &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.ChatHost, cfg.HTTPPort),
			Handler:           httpapi.NewRouter(server, room, registry, logger),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("http_server_listening", "addr", httpServer.Addr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- fmt.Errorf("http server: %w", err)
			}
		}()
	}

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		logger.Info("received_shutdown_signal")
	case err = <-errChan:
		if err != nil {
			logger.Error("server_error", "error", err.Error())
		}
	}

	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}
	server.Stop()
	logger.Info("server_stopped")
	return err
}
