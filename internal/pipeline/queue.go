package pipeline

import "sync"

// WriteQueue is the outbound FIFO of encoded frames for one connection.
// The head of the queue is the frame in flight; it is popped only after
// its write completed.
type WriteQueue struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

// Push appends frame to the tail. It returns true when the queue was empty,
// in which case the caller owns starting the transmission of frame.
// Pushing to a closed queue drops the frame.
func (q *WriteQueue) Push(frame []byte) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	idle := len(q.frames) == 0
	q.frames = append(q.frames, frame)
	return idle
}

// Complete reports the outcome of writing the head.
// On success it pops the head and returns the next frame to write, if any.
// On failure the queue is closed and every pending frame dropped.
func (q *WriteQueue) Complete(ok bool) ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, false
	}
	if !ok {
		q.closeLocked()
		return nil, false
	}
	if len(q.frames) > 0 {
		q.frames[0] = nil
		q.frames = q.frames[1:]
	}
	if len(q.frames) == 0 {
		q.frames = nil
		return nil, false
	}
	return q.frames[0], true
}

// Close drops pending frames and rejects further pushes.
// It returns how many frames were dropped, including one in flight.
func (q *WriteQueue) Close() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closeLocked()
}

func (q *WriteQueue) closeLocked() int {
	dropped := len(q.frames)
	q.frames = nil
	q.closed = true
	return dropped
}

// Len returns the number of frames queued, including one in flight.
func (q *WriteQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}
