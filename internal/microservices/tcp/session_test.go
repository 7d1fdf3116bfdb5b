package tcp

import (
	"bytes"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"framechat/internal/pipeline"
	"framechat/internal/protocol"
)

type recordingBroadcaster struct {
	delivered []protocol.Message
}

func (r *recordingBroadcaster) Deliver(msg protocol.Message) {
	r.delivered = append(r.delivered, msg)
}

func newTestSession(t *testing.T) (*Session, *pipeline.Conn, *recordingBroadcaster) {
	t.Helper()
	local, peer := net.Pipe()
	t.Cleanup(func() {
		local.Close()
		peer.Close()
	})
	out := &recordingBroadcaster{}
	room := NewRoom(nil, nil)
	s := NewSession(room, out, "dummy", nil)
	conn := pipeline.New(local)
	s.Attach(conn)
	return s, conn, out
}

func TestSession_RegisterAnnouncesName(t *testing.T) {
	s, conn, out := newTestSession(t)

	s.HandleMessage(conn, protocol.NewTextMessage(protocol.ClientRegister, "alice"))

	assert.Equal(t, "alice", s.Name())
	require.Len(t, out.delivered, 1)
	assert.Equal(t, protocol.ServerLoginAnnounce, out.delivered[0].Kind)
	assert.Equal(t, "alice", string(out.delivered[0].Body))
}

func TestSession_EmptyNameIsAccepted(t *testing.T) {
	s, conn, out := newTestSession(t)

	s.HandleMessage(conn, protocol.NewTextMessage(protocol.ClientRegister, ""))

	assert.Equal(t, "", s.Name())
	require.Len(t, out.delivered, 1)
	assert.Empty(t, out.delivered[0].Body)
}

func TestSession_MessagePrefixedWithName(t *testing.T) {
	s, conn, out := newTestSession(t)

	s.HandleMessage(conn, protocol.NewTextMessage(protocol.ClientRegister, "alice"))
	s.HandleMessage(conn, protocol.NewTextMessage(protocol.ClientConnect, "hello"))

	require.Len(t, out.delivered, 2)
	assert.Equal(t, protocol.Dummy, out.delivered[1].Kind)
	assert.Equal(t, "alice\nhello", string(out.delivered[1].Body))
}

func TestSession_UnregisteredUsesPlaceholder(t *testing.T) {
	s, conn, out := newTestSession(t)

	s.HandleMessage(conn, protocol.NewTextMessage(protocol.Kind(57), "hi"))

	require.Len(t, out.delivered, 1)
	assert.Equal(t, "dummy\nhi", string(out.delivered[0].Body))
}

func TestSession_LongMessageTruncatedOnBroadcast(t *testing.T) {
	s, conn, out := newTestSession(t)

	s.HandleMessage(conn, protocol.NewTextMessage(protocol.ClientRegister, "alice"))
	s.HandleMessage(conn, protocol.NewMessage(protocol.ClientConnect, bytes.Repeat([]byte("a"), protocol.MaxBodyLength)))

	require.Len(t, out.delivered, 2)
	assert.Len(t, out.delivered[1].Body, protocol.MaxBodyLength)
	assert.True(t, bytes.HasPrefix(out.delivered[1].Body, []byte("alice\naaa")))
}

func TestSession_DetachIsRepeatable(t *testing.T) {
	s, _, _ := newTestSession(t)
	require.Equal(t, 1, s.room.Count())

	s.Detach()
	s.Detach()
	assert.Equal(t, 0, s.room.Count())
}
