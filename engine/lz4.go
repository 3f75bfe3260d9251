package engine

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
)

const (
	lz4Magic        = 0x184D2204
	lz4LegacyMagic  = 0x184C2102
	lz4BlockMaxSize = 4 << 20

	lz4FlagVersion         = 0xc0
	lz4FlagBlockChecksum   = 0x10
	lz4FlagContentSize     = 0x08
	lz4FlagContentChecksum = 0x04
	lz4FlagDictID          = 0x01

	lz4InSize  = 4 + 64<<10
	lz4OutSize = 64 << 10
)

var lz4MagicBytes = []byte{0x04, 0x22, 0x4d, 0x18}

type lz4Framer struct {
	rdr *lz4.Reader

	skippable       bool
	blockChecksum   bool
	contentChecksum bool
	off             int // Offset of the next block size, 0 until the frame descriptor is read.
	active          bool
}

// NewLZ4 returns an Engine for LZ4 frames, decoded with pierrec/lz4. Decoding memory
// is bounded by the 4MiB block size.
func NewLZ4(op Options) (Engine, error) {
	op = op.withDefaults()
	return newFrameEngine(&lz4Framer{rdr: lz4.NewReader(nil)}, op, lz4InSize, lz4OutSize), nil
}

func (l *lz4Framer) magic() []byte {
	return lz4MagicBytes
}

func (l *lz4Framer) reset() {
	l.skippable = false
	l.blockChecksum = false
	l.contentChecksum = false
	l.off = 0
	l.active = false
}

func (l *lz4Framer) close() {
	l.rdr = nil
}

func (l *lz4Framer) scan(frame []byte) (int, bool, error) {
	switch {
	case len(frame) == 4:
		m := binary.LittleEndian.Uint32(frame)
		switch {
		case m&skippableMask == skippableMagic:
			l.skippable = true
			return 8, false, nil
		case m == lz4LegacyMagic:
			return 0, false, errorf(CodeFrameParamUnsupported, "legacy lz4 frames are not supported")
		case m != lz4Magic:
			return 0, false, errorf(CodePrefixUnknown, "unknown lz4 magic %#08x", m)
		}
		// magic, FLG and BD
		return 6, false, nil
	case l.skippable:
		return 8 + int(binary.LittleEndian.Uint32(frame[4:8])), true, nil
	case l.off == 0:
		flg := frame[4]
		if flg&lz4FlagVersion != 0x40 {
			return 0, false, errorf(CodeFrameParamUnsupported, "lz4 frame version %d", flg>>6)
		}
		l.blockChecksum = flg&lz4FlagBlockChecksum != 0
		l.contentChecksum = flg&lz4FlagContentChecksum != 0
		// magic, FLG, BD and HC
		l.off = 7
		if flg&lz4FlagContentSize != 0 {
			l.off += 8
		}
		if flg&lz4FlagDictID != 0 {
			l.off += 4
		}
		return l.off + 4, false, nil
	}
	size := binary.LittleEndian.Uint32(frame[l.off:])
	if size == 0 {
		total := l.off + 4
		if l.contentChecksum {
			total += 4
		}
		return total, true, nil
	}
	size &= 0x7fffffff
	if size > lz4BlockMaxSize {
		return 0, false, errorf(CodeCorruptionDetected, "block size %d at offset %d is too large", size, l.off)
	}
	l.off += 4 + int(size)
	if l.blockChecksum {
		l.off += 4
	}
	return l.off + 4, false, nil
}

func (l *lz4Framer) start(frame []byte) error {
	if l.skippable {
		return nil
	}
	l.rdr.Reset(bytes.NewReader(frame))
	l.active = true
	return nil
}

func (l *lz4Framer) read(p []byte) (int, error) {
	if !l.active {
		return 0, io.EOF
	}
	n, err := l.rdr.Read(p)
	if err != nil && err != io.EOF {
		return n, lz4Error(err)
	}
	return n, err
}

func lz4Error(err error) *Error {
	switch {
	case errors.Is(err, lz4.ErrInvalidFrame):
		return newError(CodePrefixUnknown, err)
	case errors.Is(err, lz4.ErrInvalidHeaderChecksum),
		errors.Is(err, lz4.ErrInvalidBlockChecksum),
		errors.Is(err, lz4.ErrInvalidFrameChecksum):
		return newError(CodeChecksumWrong, err)
	}
	return newError(CodeCorruptionDetected, err)
}
