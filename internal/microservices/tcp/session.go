package tcp

import (
	"log/slog"
	"sync"

	"framechat/internal/pipeline"
	"framechat/internal/protocol"
)

// Broadcaster fans a message out to the room. *Room implements it directly;
// the relay wraps a Room to also reach other server processes.
type Broadcaster interface {
	Deliver(msg protocol.Message)
}

// Session applies the server-side dispatch policy to one connection.
type Session struct {
	conn        *pipeline.Conn
	room        *Room
	broadcaster Broadcaster
	logger      *slog.Logger

	// held across Join so a close racing with Attach sees the handle
	joinMu sync.Mutex
	handle Handle

	mu   sync.RWMutex
	name string
}

// constructor for Session; name is the placeholder used until the client registers
func NewSession(room *Room, broadcaster Broadcaster, name string, logger *slog.Logger) *Session {
	if broadcaster == nil {
		broadcaster = room
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		room:        room,
		broadcaster: broadcaster,
		name:        name,
		logger:      logger,
	}
}

// Attach binds the session to conn and joins the room. It must be called
// before the connection's read loop starts.
func (s *Session) Attach(conn *pipeline.Conn) {
	s.joinMu.Lock()
	s.conn = conn
	s.handle = s.room.Join(conn)
	s.joinMu.Unlock()
	s.logger.Info("client_added",
		"client_id", conn.ID,
		"remote_addr", conn.RemoteAddr(),
	)
}

// Detach leaves the room. Safe to call more than once.
func (s *Session) Detach() {
	s.joinMu.Lock()
	left := s.room.Leave(s.handle)
	s.joinMu.Unlock()
	if left {
		s.logger.Info("client_removed",
			"client_id", s.conn.ID,
			"name", s.Name(),
		)
	}
}

// Name returns the display name.
func (s *Session) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

// HandleMessage implements pipeline.Handler.
func (s *Session) HandleMessage(c *pipeline.Conn, msg protocol.Message) {
	switch msg.Kind {
	case protocol.ClientRegister:
		name := string(msg.Body)
		s.mu.Lock()
		s.name = name
		s.mu.Unlock()

		s.logger.Info("client_registered",
			"client_id", c.ID,
			"name", name,
		)
		s.broadcaster.Deliver(protocol.NewMessage(protocol.ServerLoginAnnounce, msg.Body))
	default:
		name := s.Name()
		body := make([]byte, 0, len(name)+1+len(msg.Body))
		body = append(body, name...)
		body = append(body, '\n')
		body = append(body, msg.Body...)
		s.broadcaster.Deliver(protocol.NewMessage(protocol.Dummy, body))
	}
}
