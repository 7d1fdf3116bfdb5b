package tcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"framechat/internal/metrics"
	"framechat/internal/pipeline"
)

// TCPServer accepts chat connections on one or more addresses; all of them
// feed the same Room.
type TCPServer struct {
	addrs       []string
	Room        *Room
	broadcaster Broadcaster
	logger      *slog.Logger
	metrics     *metrics.Metrics
	defaultName string
	// paces accept retries after transient errors instead of spinning
	retry *rate.Limiter

	mu        sync.Mutex
	listeners []net.Listener

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Option func(*TCPServer)

func WithLogger(logger *slog.Logger) Option {
	return func(s *TCPServer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *TCPServer) { s.metrics = m }
}

// WithBroadcaster replaces the Room as the fan-out target of sessions.
// The broadcaster is expected to deliver into s.Room eventually.
func WithBroadcaster(b Broadcaster) Option {
	return func(s *TCPServer) { s.broadcaster = b }
}

// WithDefaultName sets the display name used before a client registers.
func WithDefaultName(name string) Option {
	return func(s *TCPServer) { s.defaultName = name }
}

func WithAcceptRetryInterval(d time.Duration) Option {
	return func(s *TCPServer) { s.retry = rate.NewLimiter(rate.Every(d), 1) }
}

// WithRoom shares an existing room, e.g. with a relay created beforehand.
func WithRoom(room *Room) Option {
	return func(s *TCPServer) { s.Room = room }
}

// constructor for Server
func NewServer(addrs []string, opts ...Option) *TCPServer {
	ctx, cancel := context.WithCancel(context.Background())
	s := &TCPServer{
		addrs:       addrs,
		logger:      slog.Default(),
		defaultName: "dummy",
		retry:       rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Room == nil {
		s.Room = NewRoom(s.logger, s.metrics)
	}
	if s.broadcaster == nil {
		s.broadcaster = s.Room
	}
	return s
}

// Listen binds every configured address. If one fails, the ones already
// bound are released and the error is returned.
func (s *TCPServer) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, addr := range s.addrs {
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			for _, l := range s.listeners {
				l.Close()
			}
			s.listeners = nil
			return fmt.Errorf("failed to listen on %s: %w", addr, err)
		}
		s.listeners = append(s.listeners, listener)
		s.logger.Info("tcp_server_listening", "addr", listener.Addr().String())
	}
	return nil
}

// Addrs returns the bound listener addresses.
func (s *TCPServer) Addrs() []net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	addrs := make([]net.Addr, 0, len(s.listeners))
	for _, l := range s.listeners {
		addrs = append(addrs, l.Addr())
	}
	return addrs
}

// Serve runs one accept loop per listener and blocks until Stop is called.
func (s *TCPServer) Serve() error {
	s.mu.Lock()
	listeners := append([]net.Listener(nil), s.listeners...)
	s.mu.Unlock()
	if len(listeners) == 0 {
		return errors.New("tcp server has no listeners")
	}

	var loops sync.WaitGroup
	for _, l := range listeners {
		loops.Add(1)
		go func(l net.Listener) {
			defer loops.Done()
			s.acceptLoop(l)
		}(l)
	}
	loops.Wait()
	return nil
}

// Start binds and serves.
func (s *TCPServer) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

func (s *TCPServer) acceptLoop(listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || s.ctx.Err() != nil {
				return
			}
			s.logger.Warn("failed_to_accept_connection",
				"addr", listener.Addr().String(),
				"error", err,
			)
			if err := s.retry.Wait(s.ctx); err != nil {
				return
			}
			continue
		}
		s.wg.Add(1)
		go func(conn net.Conn) {
			defer s.wg.Done()
			s.ServeConn(conn)
		}(conn)
	}
}

// ServeConn runs the lifecycle of one client connection: join the room,
// read until the connection fails or the server stops, leave the room.
// Any stream transport may be served, not only accepted TCP connections.
func (s *TCPServer) ServeConn(rw io.ReadWriteCloser, opts ...pipeline.Option) error {
	if s.ctx.Err() != nil {
		rw.Close()
		return s.ctx.Err()
	}

	session := NewSession(s.Room, s.broadcaster, s.defaultName, s.logger)
	base := []pipeline.Option{
		pipeline.WithLogger(s.logger),
		pipeline.OnClose(func(*pipeline.Conn, error) { session.Detach() }),
	}
	if s.metrics != nil {
		base = append(base, pipeline.WithObserver(s.metrics))
	}
	conn := pipeline.New(rw, append(base, opts...)...)

	s.metrics.ConnectionOpened()
	session.Attach(conn)
	return conn.Run(s.ctx, session)
}

// Stop closes the listeners and every open connection, then waits for
// their handlers to return. Queued frames are dropped.
func (s *TCPServer) Stop() {
	s.cancel()
	s.mu.Lock()
	for _, l := range s.listeners {
		l.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	s.logger.Info("tcp_server_stopped")
}
