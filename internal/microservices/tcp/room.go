package tcp

import (
	"log/slog"
	"sync"

	"framechat/internal/metrics"
	"framechat/internal/protocol"
)

// Member is anything a Room can deliver to. Implementations must be
// comparable (in practice, pointers) and Enqueue must not block on I/O.
type Member interface {
	Enqueue(msg protocol.Message)
}

// Handle addresses a Room membership. A handle becomes stale once the
// member leaves, and stale handles never match a later occupant of the same slot.
type Handle struct {
	index uint32
	gen   uint32
}

type slot struct {
	member Member
	gen    uint32
	live   bool
}

// Room is the broadcast membership set. It references members but never
// owns or closes them.
type Room struct {
	mu      sync.RWMutex
	slots   []slot            // arena, reused through free
	free    []uint32          // indexes of empty slots
	index   map[Member]Handle // membership lookup for duplicate joins
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// constructor for Room
func NewRoom(logger *slog.Logger, m *metrics.Metrics) *Room {
	if logger == nil {
		logger = slog.Default()
	}
	return &Room{
		index:   make(map[Member]Handle),
		logger:  logger,
		metrics: m,
	}
}

// Join adds member to the room. Joining twice returns the existing handle.
func (r *Room) Join(member Member) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.index[member]; ok {
		r.logger.Warn("member_already_in_room", "slot", h.index)
		return h
	}

	var idx uint32
	if n := len(r.free); n > 0 {
		idx = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		r.slots = append(r.slots, slot{gen: 1})
		idx = uint32(len(r.slots) - 1)
	}
	s := &r.slots[idx]
	s.member = member
	s.live = true

	h := Handle{index: idx, gen: s.gen}
	r.index[member] = h
	r.metrics.RoomSize(len(r.index))
	return h
}

// Leave removes the member behind h. Stale or repeated handles are ignored.
func (r *Room) Leave(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if int(h.index) >= len(r.slots) {
		return false
	}
	s := &r.slots[h.index]
	if !s.live || s.gen != h.gen {
		return false
	}
	delete(r.index, s.member)
	s.member = nil
	s.live = false
	s.gen++
	r.free = append(r.free, h.index)
	r.metrics.RoomSize(len(r.index))
	return true
}

// Contains reports whether h still refers to a member.
func (r *Room) Contains(h Handle) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(h.index) >= len(r.slots) {
		return false
	}
	s := r.slots[h.index]
	return s.live && s.gen == h.gen
}

// Deliver enqueues msg on every current member.
// Members are snapshotted first, so a member leaving during fan-out
// affects neither the iteration nor the other members.
func (r *Room) Deliver(msg protocol.Message) {
	members := r.snapshot()
	for _, m := range members {
		m.Enqueue(msg)
	}
	r.metrics.Broadcast(msg.Kind)
	r.logger.Debug("room_delivered",
		"kind", msg.Kind.String(),
		"members", len(members),
		"body_len", len(msg.Body),
	)
}

func (r *Room) snapshot() []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := make([]Member, 0, len(r.index))
	for _, s := range r.slots {
		if s.live {
			members = append(members, s.member)
		}
	}
	return members
}

// Count returns the number of members.
func (r *Room) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.index)
}
