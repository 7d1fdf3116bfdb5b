package websocket

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	WriteWait      = 10 * time.Second // max time to write a message to the peer
	MaxMessageSize = 4096             // inbound websocket message limit; frames may span messages
)

// Stream presents a WebSocket connection as a byte stream so the frame
// pipeline can run over it unchanged. Inbound messages are concatenated;
// every Write becomes one binary message.
type Stream struct {
	conn   *websocket.Conn
	reader io.Reader

	closeOnce sync.Once
}

// constructor for Stream
func NewStream(conn *websocket.Conn) *Stream {
	conn.SetReadLimit(MaxMessageSize)
	return &Stream{conn: conn}
}

// Read reads from the current message and moves on to the next one when it is exhausted.
// Control frames are handled by gorilla; text and binary messages both carry stream bytes.
func (s *Stream) Read(p []byte) (int, error) {
	for {
		if s.reader == nil {
			_, r, err := s.conn.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return 0, io.EOF
				}
				return 0, err
			}
			s.reader = r
		}
		n, err := s.reader.Read(p)
		if err == io.EOF {
			s.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

// Write sends p as a single binary message. Callers must not write concurrently.
func (s *Stream) Write(p []byte) (int, error) {
	if err := s.conn.SetWriteDeadline(time.Now().Add(WriteWait)); err != nil {
		return 0, err
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close sends a best-effort close message and closes the underlying connection.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		err = s.conn.Close()
	})
	return err
}

// RemoteAddr returns the peer address of the underlying connection.
func (s *Stream) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}
