package unpack

import (
	"io"

	"github.com/pkg/errors"
)

// OutputSink receives decompressed data. Write either takes all of p or fails with an
// unrecoverable error.
type OutputSink interface {
	Write(p []byte) error
}

// StreamSink passes data straight to a destination.
type StreamSink struct {
	w io.Writer
}

// NewStreamSink returns a StreamSink writing to w.
func NewStreamSink(w io.Writer) *StreamSink {
	return &StreamSink{w: w}
}

// Write writes all of p. A short write wraps ErrSinkWriteFault.
func (s *StreamSink) Write(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	n, err := s.w.Write(p)
	if n != len(p) || err != nil {
		if err == nil {
			err = io.ErrShortWrite
		}
		return wrap(ErrSinkWriteFault, errors.Wrapf(err, "wrote %d of %d bytes", n, len(p)))
	}
	return nil
}

// BoundedBufferSink collects data in memory up to a maximum size. The buffer is kept
// NUL terminated past its logical end; the terminator is not counted in Len.
type BoundedBufferSink struct {
	buf  []byte
	size int64
	max  int64
}

// NewBoundedBufferSink returns an empty sink that holds at most max bytes.
func NewBoundedBufferSink(max int64) *BoundedBufferSink {
	return &BoundedBufferSink{max: max}
}

// Write appends p. If that would exceed the maximum, the buffer is released and an
// error wrapping ErrSinkOverflow is returned; nothing is appended.
func (s *BoundedBufferSink) Write(p []byte) error {
	if s.size+int64(len(p)) > s.max {
		size := s.size
		s.Release()
		return wrap(ErrSinkOverflow, errors.Errorf("%d + %d bytes is over the %d byte limit", size, len(p), s.max))
	}
	s.buf = append(s.buf[:s.size], p...)
	s.buf = append(s.buf, 0)
	s.size += int64(len(p))
	return nil
}

// Bytes returns the collected data. The byte after the returned slice, within its
// capacity, is always 0. Bytes returns nil after Release.
func (s *BoundedBufferSink) Bytes() []byte {
	if s.buf == nil {
		return nil
	}
	return s.buf[:s.size]
}

// Len is the number of bytes collected.
func (s *BoundedBufferSink) Len() int64 {
	return s.size
}

// Max is the configured limit.
func (s *BoundedBufferSink) Max() int64 {
	return s.max
}

// Release drops the buffer.
func (s *BoundedBufferSink) Release() {
	s.buf = nil
	s.size = 0
}
