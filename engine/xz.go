package engine

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	"github.com/ulikunitz/xz"
)

const (
	xzHeaderSize = 12
	xzFooterSize = 12
	xzLZMA2      = 0x21
	xzMaxVarint  = 9

	// An LZMA2 chunk holds at most 64KiB compressed plus a 6 byte header.
	xzInSize  = 6 + 64<<10
	xzOutSize = 64 << 10
)

const (
	xzStreamHeader = iota
	xzBlockStart
	xzBlockHeader
	xzChunk
	xzIndex
)

var xzMagicBytes = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}

// Check field sizes by check ID.
var xzCheckSizes = [16]int{0, 4, 4, 4, 8, 8, 8, 16, 16, 16, 32, 32, 32, 64, 64, 64}

// xzFramer walks one xz stream per frame. Blocks without a stored compressed size are
// measured by walking their LZMA2 chunk headers. Zero stream padding between streams
// is handled as a frame with no output.
type xzFramer struct {
	op  Options
	rdr *xz.Reader

	padding bool
	stage   int
	check   int // Size of each block's check field.
	off     int // Start of the current block, or of the index.
	hdrEnd  int // End of the current block header.
	chunk   int // Offset of the current LZMA2 chunk.
	blocks  int
}

// NewXZ returns an Engine for xz streams, decoded with ulikunitz/xz. Only LZMA2 filter
// chains are supported.
func NewXZ(op Options) (Engine, error) {
	op = op.withDefaults()
	return newFrameEngine(&xzFramer{op: op}, op, xzInSize, xzOutSize), nil
}

func (x *xzFramer) magic() []byte {
	return xzMagicBytes
}

func (x *xzFramer) reset() {
	x.padding = false
	x.stage = xzStreamHeader
	x.check = 0
	x.off = 0
	x.hdrEnd = 0
	x.chunk = 0
	x.blocks = 0
	x.rdr = nil
}

func (x *xzFramer) close() {
	x.rdr = nil
}

func align4(n int) int {
	return (n + 3) &^ 3
}

// xzUvarint decodes an xz multibyte integer from the start of b. n is 0 if b ends
// before the integer does.
func xzUvarint(b []byte) (v uint64, n int, err error) {
	for i := 0; i < len(b); i++ {
		if i == xzMaxVarint {
			return 0, 0, errorf(CodeCorruptionDetected, "xz integer too long")
		}
		v |= uint64(b[i]&0x7f) << (7 * i)
		if b[i]&0x80 == 0 {
			if i > 0 && b[i] == 0 {
				return 0, 0, errorf(CodeCorruptionDetected, "xz integer not minimally encoded")
			}
			return v, i + 1, nil
		}
	}
	return 0, 0, nil
}

// varint reads one integer from a block header that is fully available.
func (x *xzFramer) varint(h []byte, p *int) (uint64, error) {
	v, n, err := xzUvarint(h[*p:])
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, errorf(CodeCorruptionDetected, "xz block header at offset %d is malformed", x.off)
	}
	*p += n
	return v, nil
}

func xzDictSize(prop byte) (uint64, error) {
	switch {
	case prop > 40:
		return 0, errorf(CodeCorruptionDetected, "invalid LZMA2 dictionary size %d", prop)
	case prop == 40:
		return 0xffffffff, nil
	}
	return uint64(2|prop&1) << (prop/2 + 11), nil
}

func (x *xzFramer) scan(frame []byte) (int, bool, error) {
	if len(frame) == minFrameSize && x.stage == xzStreamHeader {
		if binary.LittleEndian.Uint32(frame) == 0 {
			x.padding = true
			return minFrameSize, true, nil
		}
		return xzHeaderSize, false, nil
	}
	switch x.stage {
	case xzStreamHeader:
		if !bytes.Equal(frame[:len(xzMagicBytes)], xzMagicBytes) {
			return 0, false, errorf(CodePrefixUnknown, "unknown xz magic % x", frame[:len(xzMagicBytes)])
		}
		flags := frame[6:8]
		if flags[0] != 0 || flags[1]&0xf0 != 0 {
			return 0, false, errorf(CodeFrameParamUnsupported, "xz stream flags %#04x", binary.BigEndian.Uint16(flags))
		}
		switch id := flags[1]; id {
		case xz.None, xz.CRC32, xz.CRC64, xz.SHA256:
			x.check = xzCheckSizes[id]
		default:
			return 0, false, errorf(CodeFrameParamUnsupported, "xz check type %#x", id)
		}
		x.off = xzHeaderSize
		x.stage = xzBlockStart
		return x.off + 1, false, nil
	case xzBlockStart:
		b := frame[x.off]
		if b == 0 {
			x.stage = xzIndex
			return x.off + 2, false, nil
		}
		x.stage = xzBlockHeader
		return x.off + (int(b)+1)*4, false, nil
	case xzBlockHeader:
		return x.blockHeader(frame)
	case xzChunk:
		return x.scanChunk(frame)
	}
	return x.scanIndex(frame)
}

func (x *xzFramer) blockHeader(frame []byte) (int, bool, error) {
	h := frame[x.off:]
	flags := h[1]
	if flags&0x3c != 0 {
		return 0, false, errorf(CodeCorruptionDetected, "reserved xz block flags set at offset %d", x.off)
	}
	p := 2
	compressed := -1
	if flags&0x40 != 0 {
		v, err := x.varint(h, &p)
		if err != nil {
			return 0, false, err
		}
		if v == 0 {
			return 0, false, errorf(CodeCorruptionDetected, "empty xz block at offset %d", x.off)
		}
		if v > uint64(x.op.MaxFrameSize) {
			return 0, false, errorf(CodeWindowTooLarge, "xz block of %d bytes exceeds the %d byte limit", v, x.op.MaxFrameSize)
		}
		compressed = int(v)
	}
	if flags&0x80 != 0 {
		if _, err := x.varint(h, &p); err != nil {
			return 0, false, err
		}
	}
	if filters := int(flags&3) + 1; filters != 1 {
		return 0, false, errorf(CodeFrameParamUnsupported, "xz filter chain of %d filters", filters)
	}
	id, err := x.varint(h, &p)
	if err != nil {
		return 0, false, err
	}
	size, err := x.varint(h, &p)
	if err != nil {
		return 0, false, err
	}
	if id != xzLZMA2 || size != 1 || p >= len(h)-4 {
		return 0, false, errorf(CodeFrameParamUnsupported, "xz filter %#x", id)
	}
	dict, err := xzDictSize(h[p])
	if err != nil {
		return 0, false, err
	}
	if limit := x.op.windowLimit(); dict > limit {
		return 0, false, errorf(CodeWindowTooLarge, "xz dictionary size %d exceeds the %d byte limit", dict, limit)
	}
	x.hdrEnd = len(frame)
	if compressed >= 0 {
		return x.endBlock(compressed)
	}
	x.chunk = x.hdrEnd
	x.stage = xzChunk
	return x.chunk + 1, false, nil
}

// endBlock skips the block padding and check after compressed bytes of data.
func (x *xzFramer) endBlock(compressed int) (int, bool, error) {
	x.blocks++
	x.off = x.hdrEnd + align4(compressed) + x.check
	x.stage = xzBlockStart
	return x.off + 1, false, nil
}

func (x *xzFramer) scanChunk(frame []byte) (int, bool, error) {
	c := frame[x.chunk]
	var hdr int
	switch {
	case c == 0:
		return x.endBlock(x.chunk + 1 - x.hdrEnd)
	case c == 1, c == 2:
		hdr = 3
	case c >= 0xc0:
		hdr = 6
	case c >= 0x80:
		hdr = 5
	default:
		return 0, false, errorf(CodeCorruptionDetected, "invalid LZMA2 chunk type %#02x at offset %d", c, x.chunk)
	}
	if len(frame) < x.chunk+hdr {
		return x.chunk + hdr, false, nil
	}
	var size int
	if c < 0x80 {
		size = int(binary.BigEndian.Uint16(frame[x.chunk+1:])) + 1
	} else {
		size = int(binary.BigEndian.Uint16(frame[x.chunk+3:])) + 1
	}
	x.chunk += hdr + size
	return x.chunk + 1, false, nil
}

// scanIndex parses the index from its indicator byte at x.off, asking for one more byte
// until every record is there. The index must list each block walked.
func (x *xzFramer) scanIndex(frame []byte) (int, bool, error) {
	idx := frame[x.off+1:]
	p := 0
	count, n, err := xzUvarint(idx)
	if err != nil {
		return 0, false, err
	}
	if n == 0 {
		return len(frame) + 1, false, nil
	}
	if count != uint64(x.blocks) {
		return 0, false, errorf(CodeCorruptionDetected, "xz index lists %d blocks, stream has %d", count, x.blocks)
	}
	p += n
	for i := 0; i < 2*x.blocks; i++ {
		_, n, err = xzUvarint(idx[p:])
		if err != nil {
			return 0, false, err
		}
		if n == 0 {
			return len(frame) + 1, false, nil
		}
		p += n
	}
	// Indicator, records, padding, CRC32, then the stream footer.
	return x.off + align4(1+p) + 4 + xzFooterSize, true, nil
}

func (x *xzFramer) start(frame []byte) error {
	if x.padding {
		return nil
	}
	rdr, err := xz.ReaderConfig{SingleStream: true}.NewReader(bytes.NewReader(frame))
	if err != nil {
		return xzError(err)
	}
	x.rdr = rdr
	return nil
}

func (x *xzFramer) read(p []byte) (int, error) {
	if x.rdr == nil {
		return 0, io.EOF
	}
	n, err := x.rdr.Read(p)
	if err != nil && err != io.EOF {
		return n, xzError(err)
	}
	return n, err
}

// ulikunitz/xz does not export its errors, everything it rejects is corrupt data.
func xzError(err error) *Error {
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return newError(CodeCorruptionDetected, errors.Wrap(err, "xz stream ended early"))
	}
	return newError(CodeCorruptionDetected, err)
}
