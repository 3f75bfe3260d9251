// Package unpack streams compressed data from a source, through a decoding engine, to a
// sink. Input may hold any number of concatenated frames.
package unpack

import (
	"io"

	"github.com/CalebQ42/unpack/engine"
	"github.com/CalebQ42/unpack/internal/toreader"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var newEngine = engine.New

// Session is a single decompression run.
type Session struct {
	src    *ByteSource
	sink   OutputSink
	mem    *BoundedBufferSink
	op     *Options
	log    logrus.FieldLogger
	total  int64
	frames int
	ran    bool
}

// NewSession prepares a run from src to dst. If op.MemSinkMaxBytes is set the output is
// collected in memory instead and dst is ignored. A nil dst discards the output.
func NewSession(src io.Reader, dst io.Writer, op *Options) *Session {
	if op == nil {
		op = DefaultOptions()
	}
	s := &Session{
		src: NewByteSource(src),
		op:  op,
		log: op.logger(),
	}
	switch {
	case op.MemSinkMaxBytes > 0:
		s.mem = NewBoundedBufferSink(op.MemSinkMaxBytes)
		s.sink = s.mem
	case dst == nil:
		s.sink = NewStreamSink(io.Discard)
	default:
		s.sink = NewStreamSink(dst)
	}
	return s
}

// NewSessionAt is NewSession reading r starting at off.
func NewSessionAt(r io.ReaderAt, off int64, dst io.Writer, op *Options) *Session {
	return NewSession(toreader.NewReader(r, off), dst, op)
}

// Run decompresses everything. It returns the number of bytes produced if
// Options.Accounting is set, otherwise 0. On failure no output is returned and the in
// memory buffer, if any, is released.
func (s *Session) Run() (int64, error) {
	if s.ran {
		return 0, ErrSessionUsed
	}
	s.ran = true
	eng, err := newEngine(s.op.Codec, s.op.Engine)
	if err != nil {
		if errors.Is(err, engine.ErrUnknownCodec) {
			return 0, err
		}
		return 0, wrap(ErrOutOfMemory, err)
	}
	defer eng.Close()
	outSize := roundUp(eng.OutSize(), bufAlign)
	inSize := roundUp(eng.InSize(), bufAlign)
	buf := getBuffer(outSize + inSize)
	defer putBuffer(buf)

	err = s.run(eng, (*buf)[:outSize:outSize], (*buf)[outSize:])
	codec := s.op.Codec
	if codec == "" {
		codec = engine.Zstd
	}
	log := s.log.WithFields(logrus.Fields{
		"codec":  codec,
		"frames": s.frames,
		"bytes":  s.total,
	})
	if err != nil {
		if s.mem != nil {
			s.mem.Release()
		}
		log.WithError(err).Debug("decompression failed")
		return 0, err
	}
	log.Debug("decompression done")
	if !s.op.Accounting {
		return 0, nil
	}
	return s.total, nil
}

func (s *Session) run(eng engine.Engine, outBuf, inBuf []byte) error {
	magic := eng.Magic()
	copy(inBuf, magic)
	fixup := 0
	if s.op.SignatureSkipped {
		fixup = len(magic)
	}
	// Nothing decoded yet.
	last := -1
	for {
		n, err := s.src.SafeRead(inBuf[fixup:])
		if err != nil {
			return err
		}
		if n == 0 {
			break
		}
		in := engine.Window{Buf: inBuf[:fixup+n]}
		fixup = 0
		// The engine holds back the last byte of a frame until the frame's output is
		// out, so unconsumed input means there may be more output.
		for in.Pos < len(in.Buf) {
			out := engine.Window{Buf: outBuf}
			last, err = eng.Decode(&out, &in)
			if err != nil {
				return newDecodeError(err)
			}
			if err = s.sink.Write(out.Buf[:out.Pos]); err != nil {
				return err
			}
			s.total += int64(out.Pos)
			if last == 0 {
				s.frames++
				s.log.WithField("frame", s.frames).Debug("frame complete")
			}
		}
	}
	switch {
	case last == 0:
		return nil
	case last < 0:
		return errors.WithMessage(ErrTruncated, "no compressed data")
	}
	return errors.WithMessagef(ErrTruncated, "input ended inside a frame, %d more bytes expected", last)
}

// Bytes returns the in memory output after a successful Run. It is nil if the session
// writes to a destination or Run failed.
func (s *Session) Bytes() []byte {
	if s.mem == nil {
		return nil
	}
	return s.mem.Bytes()
}

// Frames is the number of frames completed so far.
func (s *Session) Frames() int {
	return s.frames
}

// Unpack decompresses src into dst.
func Unpack(src io.Reader, dst io.Writer, op *Options) (int64, error) {
	return NewSession(src, dst, op).Run()
}

// UnpackToMemory decompresses src into memory, failing if the output is over max bytes.
func UnpackToMemory(src io.Reader, max int64, op *Options) ([]byte, error) {
	if max <= 0 {
		return nil, errors.Errorf("invalid memory limit %d", max)
	}
	o := DefaultOptions()
	if op != nil {
		cp := *op
		o = &cp
	}
	o.MemSinkMaxBytes = max
	s := NewSession(src, nil, o)
	if _, err := s.Run(); err != nil {
		return nil, err
	}
	return s.Bytes(), nil
}
