package protocol

import (
	"fmt"
	"strconv"
)

// wire layout: "%4d%2d" header followed by the raw body
const (
	LengthFieldSize = 4
	KindFieldSize   = 2
	HeaderLength    = LengthFieldSize + KindFieldSize
	MaxBodyLength   = 512
	MaxFrameLength  = HeaderLength + MaxBodyLength
)

// Message is the unit of transfer between peers.
type Message struct {
	Kind Kind
	Body []byte
}

// NewMessage copies body into a new Message.
// Bodies longer than MaxBodyLength are silently cut to the first MaxBodyLength bytes.
func NewMessage(kind Kind, body []byte) Message {
	if len(body) > MaxBodyLength {
		body = body[:MaxBodyLength]
	}
	b := make([]byte, len(body))
	copy(b, body)
	return Message{Kind: kind, Body: b}
}

// NewTextMessage is NewMessage for string bodies.
func NewTextMessage(kind Kind, body string) Message {
	return NewMessage(kind, []byte(body))
}

// Frame returns the wire representation of m: header then body.
func (m Message) Frame() ([]byte, error) {
	body := m.Body
	if len(body) > MaxBodyLength {
		body = body[:MaxBodyLength]
	}
	header, err := EncodeHeader(m.Kind, len(body))
	if err != nil {
		return nil, err
	}
	frame := make([]byte, 0, HeaderLength+len(body))
	frame = append(frame, header[:]...)
	return append(frame, body...), nil
}

// EncodeHeader formats the fixed 6-byte header. Lengths above MaxBodyLength
// are clamped, matching the producer-side truncation of NewMessage.
func EncodeHeader(kind Kind, length int) ([HeaderLength]byte, error) {
	var header [HeaderLength]byte
	if !kind.Valid() {
		return header, fmt.Errorf("%w: %d", ErrInvalidKind, kind)
	}
	if length < 0 {
		length = 0
	}
	if length > MaxBodyLength {
		length = MaxBodyLength
	}
	putField(header[:LengthFieldSize], length)
	putField(header[LengthFieldSize:], int(kind))
	return header, nil
}

// DecodeHeader parses a 6-byte header.
// A declared length above MaxBodyLength fails with ErrBodyTooLong and a length of 0;
// the kind is still reported so callers can log it.
func DecodeHeader(raw []byte) (int, Kind, error) {
	if len(raw) != HeaderLength {
		return 0, 0, fmt.Errorf("%w: got %d bytes", ErrMalformedHeader, len(raw))
	}
	length, err := parseField(raw[:LengthFieldSize])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: length field %q", ErrMalformedHeader, raw[:LengthFieldSize])
	}
	code, err := parseField(raw[LengthFieldSize:])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: kind field %q", ErrMalformedHeader, raw[LengthFieldSize:])
	}
	kind := Kind(code)
	if length > MaxBodyLength {
		return 0, kind, fmt.Errorf("%w: %d > %d", ErrBodyTooLong, length, MaxBodyLength)
	}
	return length, kind, nil
}

// putField writes n right-justified and space padded into dst.
func putField(dst []byte, n int) {
	s := strconv.Itoa(n)
	pad := len(dst) - len(s)
	for i := 0; i < pad; i++ {
		dst[i] = ' '
	}
	copy(dst[pad:], s)
}

// parseField accepts leading spaces followed by at least one ASCII digit.
func parseField(field []byte) (int, error) {
	i := 0
	for i < len(field) && field[i] == ' ' {
		i++
	}
	if i == len(field) {
		return 0, ErrMalformedHeader
	}
	n := 0
	for _, c := range field[i:] {
		if c < '0' || c > '9' {
			return 0, ErrMalformedHeader
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}
