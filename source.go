package unpack

import (
	"io"
)

// Consecutive (0, nil) reads tolerated before giving up, same as bufio.
const maxEmptyReads = 100

// ByteSource reads compressed input, hiding interrupted reads from the caller.
type ByteSource struct {
	r   io.Reader
	err error
	eof bool
}

// NewByteSource wraps r.
func NewByteSource(r io.Reader) *ByteSource {
	return &ByteSource{r: r}
}

// SafeRead reads up to len(p) bytes. Reads interrupted by a signal are retried. It
// returns 0, nil at the end of input and a non-nil error, wrapping ErrRead, only for a
// genuine failure. Data read together with a failure is returned first and the failure
// is reported by the next call.
func (s *ByteSource) SafeRead(p []byte) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	if s.eof || len(p) == 0 {
		return 0, nil
	}
	for empty := 0; ; {
		n, err := s.r.Read(p)
		if n > 0 {
			switch {
			case err == io.EOF:
				s.eof = true
			case err != nil && !isInterrupted(err):
				s.err = wrap(ErrRead, err)
			}
			return n, nil
		}
		switch {
		case err == io.EOF:
			s.eof = true
			return 0, nil
		case err == nil:
			empty++
			if empty >= maxEmptyReads {
				s.err = wrap(ErrRead, io.ErrNoProgress)
				return 0, s.err
			}
		case isInterrupted(err):
		default:
			s.err = wrap(ErrRead, err)
			return 0, s.err
		}
	}
}
