package protocol

import "errors"

var (
	ErrMalformedHeader = errors.New("malformed frame header")
	ErrBodyTooLong     = errors.New("frame body exceeds maximum length")
	ErrInvalidKind     = errors.New("kind code out of range")
)
