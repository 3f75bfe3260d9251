// Package engine holds the decoders driven by unpack. Each Engine walks the codec's
// frame and block headers so it can report exactly when a frame ends, then streams the
// frame through the codec's decoder.
package engine

import (
	"bytes"
	"strings"

	"github.com/pkg/errors"
)

// Codec names a compressed format.
type Codec string

// The supported codecs.
const (
	Zstd Codec = "zstd"
	LZ4  Codec = "lz4"
	XZ   Codec = "xz"
)

// ErrUnknownCodec is returned for codec names that have no Engine.
var ErrUnknownCodec = errors.New("unknown codec")

// ParseCodec turns a codec name, or a file extension, into a Codec.
func ParseCodec(name string) (Codec, error) {
	switch strings.TrimPrefix(strings.ToLower(name), ".") {
	case "zstd", "zst", "":
		return Zstd, nil
	case "lz4":
		return LZ4, nil
	case "xz":
		return XZ, nil
	}
	return "", errors.Wrap(ErrUnknownCodec, name)
}

// Magic returns the signature that starts every regular frame of the codec.
func (c Codec) Magic() []byte {
	switch c {
	case LZ4:
		return lz4MagicBytes
	case XZ:
		return xzMagicBytes
	default:
		return zstdMagicBytes
	}
}

// Extension is the usual file extension, dot included.
func (c Codec) Extension() string {
	switch c {
	case LZ4:
		return ".lz4"
	case XZ:
		return ".xz"
	default:
		return ".zst"
	}
}

// New creates a decoding context for the codec.
func New(c Codec, op Options) (Engine, error) {
	switch c {
	case Zstd, "":
		return NewZstd(op)
	case LZ4:
		return NewLZ4(op)
	case XZ:
		return NewXZ(op)
	}
	return nil, errors.Wrap(ErrUnknownCodec, string(c))
}

// Detect reports the codec whose magic number starts prefix.
func Detect(prefix []byte) (Codec, bool) {
	for _, c := range []Codec{Zstd, LZ4, XZ} {
		if bytes.HasPrefix(prefix, c.Magic()) {
			return c, true
		}
	}
	return "", false
}
