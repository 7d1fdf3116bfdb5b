package pipeline

import (
	"fmt"

	"framechat/internal/protocol"
)

// ReadState is the position of a connection's inbound state machine.
type ReadState int

const (
	AwaitingHeader ReadState = iota
	AwaitingBody
	Dispatch
	Closed
)

func (s ReadState) String() string {
	switch s {
	case AwaitingHeader:
		return "awaiting_header"
	case AwaitingBody:
		return "awaiting_body"
	case Dispatch:
		return "dispatch"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("read_state_%d", int(s))
	}
}

// ReadMachine decodes one frame at a time from a byte stream.
// It does no I/O itself: the driver fills Buffer() completely and reports
// the outcome to Complete, so tests can feed it canned bytes.
//
// The zero value is ready to read a header.
type ReadMachine struct {
	state   ReadState
	kind    protocol.Kind
	bodyLen int
	buf     [protocol.MaxFrameLength]byte
}

// State returns the current state.
func (m *ReadMachine) State() ReadState {
	return m.state
}

// Buffer returns the slice the next read must fill exactly.
// In AwaitingBody the slice may be empty; the read still has to be completed.
func (m *ReadMachine) Buffer() []byte {
	switch m.state {
	case AwaitingHeader:
		return m.buf[:protocol.HeaderLength]
	case AwaitingBody:
		return m.buf[protocol.HeaderLength : protocol.HeaderLength+m.bodyLen]
	default:
		return nil
	}
}

// Complete applies the result of filling Buffer().
// A transport error or an undecodable header moves the machine to Closed and is returned.
func (m *ReadMachine) Complete(readErr error) error {
	switch m.state {
	case AwaitingHeader:
		if readErr != nil {
			m.state = Closed
			return fmt.Errorf("read header: %w", readErr)
		}
		length, kind, err := protocol.DecodeHeader(m.buf[:protocol.HeaderLength])
		if err != nil {
			m.bodyLen = 0
			m.state = Closed
			return err
		}
		m.bodyLen, m.kind = length, kind
		m.state = AwaitingBody
		return nil
	case AwaitingBody:
		if readErr != nil {
			m.state = Closed
			return fmt.Errorf("read body: %w", readErr)
		}
		m.state = Dispatch
		return nil
	case Closed:
		return ErrClosed
	default:
		return fmt.Errorf("complete called in state %s", m.state)
	}
}

// Message returns a copy of the decoded message. Only meaningful in Dispatch.
func (m *ReadMachine) Message() protocol.Message {
	return protocol.NewMessage(m.kind, m.buf[protocol.HeaderLength:protocol.HeaderLength+m.bodyLen])
}

// Dispatched loops back to AwaitingHeader after the message was handed off.
func (m *ReadMachine) Dispatched() {
	if m.state == Dispatch {
		m.state = AwaitingHeader
		m.bodyLen = 0
	}
}
