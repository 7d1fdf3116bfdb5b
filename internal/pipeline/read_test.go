package pipeline

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"framechat/internal/protocol"
)

// feed drives m with canned bytes the way Conn.Run does with a transport.
// It returns the dispatched messages and the error that closed the machine, if any.
func feed(m *ReadMachine, data []byte) ([]protocol.Message, error) {
	var out []protocol.Message
	for {
		buf := m.Buffer()
		var readErr error
		switch {
		case len(data) >= len(buf):
			copy(buf, data)
			data = data[len(buf):]
		case len(data) == 0:
			readErr = io.EOF
		default:
			readErr = io.ErrUnexpectedEOF
		}
		if err := m.Complete(readErr); err != nil {
			return out, err
		}
		if m.State() == Dispatch {
			out = append(out, m.Message())
			m.Dispatched()
		}
	}
}

func frameOf(t *testing.T, kind protocol.Kind, body string) []byte {
	t.Helper()
	frame, err := protocol.NewTextMessage(kind, body).Frame()
	require.NoError(t, err)
	return frame
}

func TestReadMachine_Transitions(t *testing.T) {
	var m ReadMachine
	assert.Equal(t, AwaitingHeader, m.State())
	assert.Len(t, m.Buffer(), protocol.HeaderLength)

	copy(m.Buffer(), "   5 2")
	require.NoError(t, m.Complete(nil))
	assert.Equal(t, AwaitingBody, m.State())
	require.Len(t, m.Buffer(), 5)

	copy(m.Buffer(), "alice")
	require.NoError(t, m.Complete(nil))
	assert.Equal(t, Dispatch, m.State())
	assert.Nil(t, m.Buffer())

	msg := m.Message()
	assert.Equal(t, protocol.ClientRegister, msg.Kind)
	assert.Equal(t, "alice", string(msg.Body))

	m.Dispatched()
	assert.Equal(t, AwaitingHeader, m.State())
}

func TestReadMachine_StreamOfFrames(t *testing.T) {
	var stream []byte
	stream = append(stream, frameOf(t, protocol.ClientRegister, "bob")...)
	stream = append(stream, frameOf(t, protocol.ClientConnect, "")...)
	stream = append(stream, frameOf(t, protocol.ClientConnect, "hi there")...)

	var m ReadMachine
	msgs, err := feed(&m, stream)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, Closed, m.State())

	require.Len(t, msgs, 3)
	assert.Equal(t, "bob", string(msgs[0].Body))
	assert.Empty(t, msgs[1].Body)
	assert.Equal(t, protocol.ClientConnect, msgs[1].Kind)
	assert.Equal(t, "hi there", string(msgs[2].Body))
}

func TestReadMachine_EmptyBodyStillCompletes(t *testing.T) {
	var m ReadMachine
	copy(m.Buffer(), "   0 2")
	require.NoError(t, m.Complete(nil))
	require.Equal(t, AwaitingBody, m.State())
	assert.NotNil(t, m.Buffer())
	assert.Empty(t, m.Buffer())

	require.NoError(t, m.Complete(nil))
	assert.Equal(t, Dispatch, m.State())
	assert.Empty(t, m.Message().Body)
}

func TestReadMachine_OversizedHeaderCloses(t *testing.T) {
	var m ReadMachine
	copy(m.Buffer(), " 513 4")
	err := m.Complete(nil)
	assert.ErrorIs(t, err, protocol.ErrBodyTooLong)
	assert.Equal(t, Closed, m.State())
	assert.Nil(t, m.Buffer())
}

func TestReadMachine_MalformedHeaderCloses(t *testing.T) {
	var m ReadMachine
	msgs, err := feed(&m, []byte("hello world"))
	assert.Empty(t, msgs)
	assert.ErrorIs(t, err, protocol.ErrMalformedHeader)
	assert.Equal(t, Closed, m.State())
}

func TestReadMachine_TransportErrorMidBody(t *testing.T) {
	stream := frameOf(t, protocol.ClientConnect, "truncated body")
	var m ReadMachine
	msgs, err := feed(&m, stream[:protocol.HeaderLength+3])
	assert.Empty(t, msgs)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, Closed, m.State())
}

func TestReadMachine_CompleteAfterClosed(t *testing.T) {
	var m ReadMachine
	require.Error(t, m.Complete(errors.New("reset by peer")))
	assert.ErrorIs(t, m.Complete(nil), ErrClosed)
}

func TestReadMachine_MessageIsACopy(t *testing.T) {
	var m ReadMachine
	msgs, _ := feed(&m, append(frameOf(t, protocol.ClientConnect, "first"), frameOf(t, protocol.ClientConnect, "other")...))
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", string(msgs[0].Body))
	assert.Equal(t, "other", string(msgs[1].Body))
}
