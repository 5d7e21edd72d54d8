package subprocess

import (
	"fmt"
	"io"
)

// Stream is an owning wrapper around a single OS handle offering byte read
// and write primitives. A Stream is either open or closed; there is no third
// state. Closing an already-closed Stream is a no-op, while reading or
// writing one is a precondition violation and panics.
//
// A read that observes the peer end closed with no data remaining returns
// io.EOF and closes the Stream. A write that fails because the peer end is
// gone closes the Stream so later calls observe IsOpen() == false.
type Stream struct {
	h Handle
}

// NewStream adopts ownership of h. Closing the returned Stream closes h.
func NewStream(h Handle) *Stream {
	return &Stream{h: h}
}

// IsOpen reports whether the stream still owns a live handle. A nil Stream
// reports closed.
func (s *Stream) IsOpen() bool {
	return s != nil && s.h != NullHandle
}

// Handle returns the owned handle without relinquishing ownership.
func (s *Stream) Handle() Handle {
	if s == nil {
		return NullHandle
	}
	return s.h
}

// Release relinquishes ownership of the handle and returns it. The stream is
// closed afterwards; the caller is responsible for closing the handle.
func (s *Stream) Release() Handle {
	h := s.h
	s.h = NullHandle
	return h
}

// Close closes the owned handle. Closing a closed stream is a no-op.
func (s *Stream) Close() {
	if !s.IsOpen() {
		return
	}
	closeHandle(s.h)
	s.h = NullHandle
}

// Read reads up to len(p) bytes into p. At end of stream it returns io.EOF
// and closes the stream. Reading from a closed stream panics.
func (s *Stream) Read(p []byte) (int, error) {
	if !s.IsOpen() {
		panic("subprocess: Read on a closed stream")
	}
	n, err := readHandle(s.h, p)
	if err != nil {
		return 0, fmt.Errorf("read stream: %w", err)
	}
	if n == 0 && len(p) > 0 {
		s.Close()
		return 0, io.EOF
	}
	return n, nil
}

// Write writes p to the stream and returns the number of bytes written.
// If the peer end has gone away the stream closes itself before returning
// the error. Writing to a closed stream panics.
func (s *Stream) Write(p []byte) (int, error) {
	if !s.IsOpen() {
		panic("subprocess: Write on a closed stream")
	}
	n, err := writeHandle(s.h, p)
	if err != nil {
		if isBrokenPipe(err) {
			s.Close()
		}
		return n, fmt.Errorf("write stream: %w", err)
	}
	return n, nil
}
