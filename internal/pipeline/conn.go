package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"

	"framechat/internal/protocol"
)

// Handler receives every decoded inbound message of a connection.
// Returning does not stop the read loop; only closing the connection does.
type Handler interface {
	HandleMessage(c *Conn, msg protocol.Message)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(c *Conn, msg protocol.Message)

func (f HandlerFunc) HandleMessage(c *Conn, msg protocol.Message) {
	f(c, msg)
}

// Observer is notified of frame traffic. Implementations must be safe for concurrent use.
type Observer interface {
	FrameReceived(kind protocol.Kind, size int)
	FrameSent(size int)
	FramesDropped(n int)
	ConnectionClosed(cause error)
}

// Conn is one live transport endpoint with an independent read loop and
// ordered write queue. It is used on both the server and the client side.
type Conn struct {
	ID string

	rw       io.ReadWriteCloser
	remote   string
	logger   *slog.Logger
	observer Observer

	reader ReadMachine
	queue  WriteQueue

	closeOnce sync.Once
	done      chan struct{}
	mu        sync.Mutex
	err       error
	onClose   []func(*Conn, error)
}

type Option func(*Conn)

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Conn) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver attaches a traffic observer.
func WithObserver(o Observer) Option {
	return func(c *Conn) { c.observer = o }
}

// WithRemoteAddr overrides the peer address used in logs.
func WithRemoteAddr(addr string) Option {
	return func(c *Conn) { c.remote = addr }
}

// OnClose registers fn to run once when the connection closes, with the close cause.
func OnClose(fn func(*Conn, error)) Option {
	return func(c *Conn) { c.onClose = append(c.onClose, fn) }
}

// New wraps rw. Nothing is read or written until Run or Enqueue is called.
func New(rw io.ReadWriteCloser, opts ...Option) *Conn {
	c := &Conn{
		ID:     uuid.NewString(),
		rw:     rw,
		logger: slog.Default(),
		done:   make(chan struct{}),
	}
	if nc, ok := rw.(net.Conn); ok && nc.RemoteAddr() != nil {
		c.remote = nc.RemoteAddr().String()
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RemoteAddr returns the peer address, if known.
func (c *Conn) RemoteAddr() string {
	return c.remote
}

// Enqueue appends msg to the outbound queue. If nothing was in flight the
// transmission starts immediately, otherwise msg goes out after the frames
// queued before it. Enqueue on a closed connection is a no-op.
func (c *Conn) Enqueue(msg protocol.Message) {
	frame, err := msg.Frame()
	if err != nil {
		c.logger.Warn("frame_encode_failed",
			"conn_id", c.ID,
			"kind", msg.Kind,
			"error", err,
		)
		return
	}
	if c.queue.Push(frame) {
		go c.drain(frame)
	}
}

// drain writes frames one at a time until the queue is empty.
// At most one drain runs per connection because only an idle queue starts one.
func (c *Conn) drain(frame []byte) {
	for {
		n, err := c.rw.Write(frame)
		if err == nil && n < len(frame) {
			err = io.ErrShortWrite
		}
		if err == nil && c.observer != nil {
			c.observer.FrameSent(n)
		}
		next, more := c.queue.Complete(err == nil)
		if err != nil {
			c.closeWith(fmt.Errorf("write: %w", err))
			return
		}
		if !more {
			return
		}
		frame = next
	}
}

// Run drives the read side until the connection closes and returns the close cause.
// Cancelling ctx closes the connection.
func (c *Conn) Run(ctx context.Context, h Handler) error {
	stop := context.AfterFunc(ctx, func() {
		c.closeWith(ctx.Err())
	})
	defer stop()

	for {
		buf := c.reader.Buffer()
		_, readErr := io.ReadFull(c.rw, buf)
		if err := c.reader.Complete(readErr); err != nil {
			c.closeWith(err)
			return c.Err()
		}
		if c.reader.State() != Dispatch {
			continue
		}
		msg := c.reader.Message()
		if c.observer != nil {
			c.observer.FrameReceived(msg.Kind, protocol.HeaderLength+len(msg.Body))
		}
		h.HandleMessage(c, msg)
		c.reader.Dispatched()
	}
}

// Close closes the connection without flushing queued frames.
func (c *Conn) Close() error {
	c.closeWith(ErrClosed)
	return nil
}

// Done is closed once the connection is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns the close cause, or nil while the connection is open.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Conn) closeWith(cause error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = cause
		c.mu.Unlock()

		dropped := c.queue.Close()
		_ = c.rw.Close()
		close(c.done)

		c.logClose(cause, dropped)
		if c.observer != nil {
			c.observer.ConnectionClosed(cause)
			if dropped > 0 {
				c.observer.FramesDropped(dropped)
			}
		}
		for _, fn := range c.onClose {
			fn(c, cause)
		}
	})
}

func (c *Conn) logClose(cause error, dropped int) {
	attrs := []any{
		"conn_id", c.ID,
		"remote_addr", c.remote,
		"dropped_frames", dropped,
	}
	switch {
	case errors.Is(cause, ErrClosed), errors.Is(cause, context.Canceled):
		c.logger.Debug("connection_closed", attrs...)
	case errors.Is(cause, io.EOF), errors.Is(cause, net.ErrClosed):
		c.logger.Info("client_disconnected", attrs...)
	case errors.Is(cause, protocol.ErrMalformedHeader), errors.Is(cause, protocol.ErrBodyTooLong):
		c.logger.Warn("frame_rejected", append(attrs, "error", cause.Error())...)
	default:
		c.logger.Warn("connection_failed", append(attrs, "error", cause.Error())...)
	}
}
