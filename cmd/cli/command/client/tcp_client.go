package client

// tcp_client.go = the chat client connection: register, send lines, render what the server broadcasts.

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"

	"framechat/internal/pipeline"
	"framechat/internal/protocol"
)

// ChatClient is one client-side connection to the chat server
type ChatClient struct {
	conn    *pipeline.Conn
	printer *Printer
}

// Dial connects to host:port. Resolution and connection failures are returned as is.
func Dial(ctx context.Context, host, port string, printer *Printer, logger *slog.Logger) (*ChatClient, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	if err != nil {
		return nil, fmt.Errorf("connection failed: %w", err)
	}
	return NewChatClient(conn, printer, logger), nil
}

// NewChatClient wraps an established stream.
func NewChatClient(rw io.ReadWriteCloser, printer *Printer, logger *slog.Logger) *ChatClient {
	return &ChatClient{
		conn:    pipeline.New(rw, pipeline.WithLogger(logger)),
		printer: printer,
	}
}

// Register sends the display name.
func (c *ChatClient) Register(name string) {
	c.conn.Enqueue(protocol.NewTextMessage(protocol.ClientRegister, name))
}

// Send sends one chat line; anything past the maximum body length is cut.
func (c *ChatClient) Send(line string) {
	c.conn.Enqueue(protocol.NewTextMessage(protocol.ClientConnect, line))
}

// Run reads and renders broadcasts until the connection closes.
func (c *ChatClient) Run(ctx context.Context) error {
	return c.conn.Run(ctx, pipeline.HandlerFunc(func(_ *pipeline.Conn, msg protocol.Message) {
		c.printer.Print(msg)
	}))
}

// Close drops anything still queued and closes the connection.
func (c *ChatClient) Close() error {
	return c.conn.Close()
}

// Done is closed when the connection is gone.
func (c *ChatClient) Done() <-chan struct{} {
	return c.conn.Done()
}

// ReadName reads the display name typed at the prompt.
func ReadName(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// PumpLines sends every line of r until EOF or until the connection closes.
func PumpLines(r io.Reader, c *ChatClient) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, protocol.MaxBodyLength+1), 1<<20)
	for scanner.Scan() {
		select {
		case <-c.Done():
			return nil
		default:
		}
		c.Send(scanner.Text())
	}
	return scanner.Err()
}
