package engine

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

const (
	zstdMagic           = 0xFD2FB528
	skippableMask       = 0xFFFFFFF0
	skippableMagic      = 0x184D2A50
	zstdBlockSizeMax    = 128 << 10
	zstdBlockHeaderSize = 3
	zstdChecksumSize    = 4

	// Matches ZSTD_DStreamInSize and ZSTD_DStreamOutSize.
	zstdInSize  = zstdBlockSizeMax + zstdBlockHeaderSize
	zstdOutSize = zstdBlockSizeMax
)

const (
	zstdBlockRaw = iota
	zstdBlockRLE
	zstdBlockCompressed
	zstdBlockReserved
)

var zstdMagicBytes = []byte{0x28, 0xb5, 0x2f, 0xfd}

type zstdFramer struct {
	dec *zstd.Decoder
	op  Options

	skippable bool
	checksum  bool
	off       int // Offset of the next block header, 0 until the frame header is read.
	active    bool
}

// NewZstd returns an Engine for zstd frames, decoded with klauspost/compress. Decoding
// memory is bounded by the frame's window, not by its decoded size.
func NewZstd(op Options) (Engine, error) {
	op = op.withDefaults()
	dec, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(op.MaxMemory),
		zstd.WithDecoderMaxWindow(op.MaxWindow),
	)
	if err != nil {
		return nil, errors.Wrap(err, "creating zstd decoder")
	}
	return newFrameEngine(&zstdFramer{dec: dec, op: op}, op, zstdInSize, zstdOutSize), nil
}

func (z *zstdFramer) magic() []byte {
	return zstdMagicBytes
}

func (z *zstdFramer) reset() {
	z.skippable = false
	z.checksum = false
	z.off = 0
	z.active = false
}

func (z *zstdFramer) close() {
	if z.dec != nil {
		z.dec.Close()
		z.dec = nil
	}
}

// zstdHeaderSize returns the size of the frame header, magic included, described by
// the frame header descriptor byte.
func zstdHeaderSize(fhd byte) int {
	single := fhd&(1<<5) != 0
	size := 4 + 1
	if !single {
		size++
	}
	size += [4]int{0, 1, 2, 4}[fhd&3]
	switch fhd >> 6 {
	case 0:
		if single {
			size++
		}
	case 1:
		size += 2
	case 2:
		size += 4
	case 3:
		size += 8
	}
	return size
}

func (z *zstdFramer) scan(frame []byte) (int, bool, error) {
	switch {
	case len(frame) == 4:
		m := binary.LittleEndian.Uint32(frame)
		if m&skippableMask == skippableMagic {
			z.skippable = true
			return 8, false, nil
		}
		if m != zstdMagic {
			return 0, false, errorf(CodePrefixUnknown, "unknown zstd magic %#08x", m)
		}
		return 5, false, nil
	case z.skippable:
		return 8 + int(binary.LittleEndian.Uint32(frame[4:8])), true, nil
	case len(frame) == 5:
		return zstdHeaderSize(frame[4]), false, nil
	case z.off == 0:
		var h zstd.Header
		if err := h.Decode(frame); err != nil {
			return 0, false, zstdError(err)
		}
		window := h.WindowSize
		if h.SingleSegment {
			window = h.FrameContentSize
		}
		if limit := z.op.windowLimit(); window > limit {
			return 0, false, errorf(CodeWindowTooLarge, "window size %d exceeds the %d byte limit", window, limit)
		}
		z.checksum = h.HasCheckSum
		z.off = len(frame)
		return z.off + zstdBlockHeaderSize, false, nil
	}
	bh := uint32(frame[z.off]) | uint32(frame[z.off+1])<<8 | uint32(frame[z.off+2])<<16
	last := bh&1 == 1
	size := int(bh >> 3)
	if size > zstdBlockSizeMax {
		return 0, false, errorf(CodeCorruptionDetected, "block size %d at offset %d is too large", size, z.off)
	}
	switch (bh >> 1) & 3 {
	case zstdBlockRLE:
		size = 1
	case zstdBlockReserved:
		return 0, false, newError(CodeCorruptionDetected, zstd.ErrReservedBlockType)
	}
	z.off += zstdBlockHeaderSize + size
	if last {
		total := z.off
		if z.checksum {
			total += zstdChecksumSize
		}
		return total, true, nil
	}
	return z.off + zstdBlockHeaderSize, false, nil
}

func (z *zstdFramer) start(frame []byte) error {
	if z.skippable {
		return nil
	}
	// A bytes.Reader, unlike a bytes.Buffer, keeps the decoder streaming block by block.
	if err := z.dec.Reset(bytes.NewReader(frame)); err != nil {
		return zstdError(err)
	}
	z.active = true
	return nil
}

func (z *zstdFramer) read(p []byte) (int, error) {
	if !z.active {
		return 0, io.EOF
	}
	n, err := z.dec.Read(p)
	if err != nil && err != io.EOF {
		return n, zstdError(err)
	}
	return n, err
}

func zstdError(err error) *Error {
	switch {
	case errors.Is(err, zstd.ErrMagicMismatch):
		return newError(CodePrefixUnknown, err)
	case errors.Is(err, zstd.ErrCRCMismatch):
		return newError(CodeChecksumWrong, err)
	case errors.Is(err, zstd.ErrWindowSizeExceeded), errors.Is(err, zstd.ErrDecoderSizeExceeded):
		return newError(CodeWindowTooLarge, err)
	case errors.Is(err, zstd.ErrUnknownDictionary):
		return newError(CodeDictionaryWrong, err)
	}
	return newError(CodeCorruptionDetected, err)
}
