package engine

import (
	"io"

	"github.com/pkg/errors"
)

// Every supported magic number, and zero padding, is at least this long.
const minFrameSize = 4

var errClosed = errors.New("engine is closed")

// framer is the codec specific half of an Engine. It knows where a frame ends and how
// to stream the decoded contents of a complete frame.
type framer interface {
	magic() []byte
	// scan looks at the first len(frame) bytes of the current frame and returns the
	// length the frame must reach before scan can tell more. complete is true once that
	// length is the full encoded size of the frame.
	scan(frame []byte) (want int, complete bool, err error)
	// start begins decoding a complete frame.
	start(frame []byte) error
	// read reads decoded bytes of the started frame. It returns io.EOF at the end of the
	// frame and an *Error if the frame is rejected.
	read(p []byte) (int, error)
	reset()
	close()
}

// frameEngine gives a framer the step semantics of Engine. Compressed frames are
// accumulated, then decoded straight into the output windows.
//
// The byte that completes the length asked for by scan is peeked, not consumed, until
// scan says whether it is the last byte of the frame. The last byte of a frame is only
// consumed once all of the frame's output has been handed out.
type frameEngine struct {
	f       framer
	op      Options
	inSize  int
	outSize int

	frame    []byte
	want     int
	complete bool
	held     bool

	draining bool
	closed   bool
}

func newFrameEngine(f framer, op Options, inSize, outSize int) *frameEngine {
	e := &frameEngine{
		f:       f,
		op:      op,
		inSize:  inSize,
		outSize: outSize,
	}
	e.reset()
	return e
}

func (e *frameEngine) Magic() []byte {
	return e.f.magic()
}

func (e *frameEngine) InSize() int {
	return e.inSize
}

func (e *frameEngine) OutSize() int {
	return e.outSize
}

func (e *frameEngine) reset() {
	e.frame = e.frame[:0]
	e.want = minFrameSize
	e.complete = false
	e.held = false
	e.draining = false
	e.f.reset()
}

func (e *frameEngine) fail(err error) (int, error) {
	e.reset()
	var ee *Error
	if !errors.As(err, &ee) {
		err = newError(CodeGeneric, err)
	}
	return 0, err
}

func (e *frameEngine) Decode(out, in *Window) (int, error) {
	if e.closed {
		return 0, errClosed
	}
	for {
		if e.draining {
			return e.drain(out, in)
		}
		if len(e.frame) < e.want-1 {
			if in.Pos >= len(in.Buf) {
				return e.want - len(e.frame), nil
			}
			n := e.want - 1 - len(e.frame)
			if avail := len(in.Buf) - in.Pos; n > avail {
				n = avail
			}
			e.frame = append(e.frame, in.Buf[in.Pos:in.Pos+n]...)
			in.Pos += n
			continue
		}
		if !e.held {
			if in.Pos >= len(in.Buf) {
				return 1, nil
			}
			e.frame = append(e.frame, in.Buf[in.Pos])
			e.held = true
		}
		if e.complete {
			if err := e.f.start(e.frame); err != nil {
				return e.fail(err)
			}
			e.draining = true
			continue
		}
		want, complete, err := e.f.scan(e.frame)
		if err != nil {
			return e.fail(err)
		}
		if want < len(e.frame) || (!complete && want == len(e.frame)) {
			return e.fail(errorf(CodeCorruptionDetected, "frame walk stalled at offset %d", len(e.frame)))
		}
		if want > e.op.MaxFrameSize {
			return e.fail(errorf(CodeWindowTooLarge, "frame of %d bytes exceeds the %d byte limit", want, e.op.MaxFrameSize))
		}
		e.want = want
		e.complete = complete
		if want > len(e.frame) {
			in.Pos++
			e.held = false
		}
	}
}

// drain fills out with decoded bytes of the current frame. The held final byte is
// consumed once the decoder reports the end of the frame.
func (e *frameEngine) drain(out, in *Window) (int, error) {
	for out.Pos < len(out.Buf) {
		n, err := e.f.read(out.Remaining())
		out.Pos += n
		switch {
		case err == io.EOF:
			in.Pos++
			e.reset()
			return 0, nil
		case err != nil:
			return e.fail(err)
		case n == 0:
			return e.fail(errorf(CodeCorruptionDetected, "decoder made no progress"))
		}
	}
	// Output is full. Whether the frame has more is only known on the next call.
	return e.outSize, nil
}

func (e *frameEngine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	e.f.close()
	e.frame = nil
	return nil
}
