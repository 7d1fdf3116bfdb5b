package pipeline

import "errors"

// ErrClosed is the close cause of a connection closed on request.
var ErrClosed = errors.New("connection closed")
