package unpack

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundedBufferSink(t *testing.T) {
	s := NewBoundedBufferSink(10)
	require.NoError(t, s.Write(nil))
	assert.NotNil(t, s.Bytes())
	assert.Empty(t, s.Bytes())

	require.NoError(t, s.Write([]byte("hello")))
	require.NoError(t, s.Write([]byte("world")))
	assert.Equal(t, int64(10), s.Len())
	b := s.Bytes()
	assert.Equal(t, "helloworld", string(b))
	assert.Equal(t, byte(0), b[:len(b)+1][len(b)])

	err := s.Write([]byte("!"))
	assert.ErrorIs(t, err, ErrSinkOverflow)
	assert.Nil(t, s.Bytes())
	assert.Zero(t, s.Len())
	assert.Equal(t, int64(10), s.Max())
}

func TestBoundedBufferSinkFirstWriteTooBig(t *testing.T) {
	s := NewBoundedBufferSink(3)
	assert.ErrorIs(t, s.Write([]byte("four")), ErrSinkOverflow)
	assert.Nil(t, s.Bytes())
}

type limitedWriter struct {
	buf   bytes.Buffer
	limit int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	if len(p) > w.limit {
		p = p[:w.limit]
	}
	w.limit -= len(p)
	return w.buf.Write(p)
}

func TestStreamSink(t *testing.T) {
	w := &limitedWriter{limit: 8}
	s := NewStreamSink(w)
	require.NoError(t, s.Write([]byte("12345")))
	require.NoError(t, s.Write(nil))
	err := s.Write([]byte("6789"))
	assert.ErrorIs(t, err, ErrSinkWriteFault)
	assert.Equal(t, "12345678", w.buf.String())
}

func TestRoundUp(t *testing.T) {
	assert.Equal(t, 0, roundUp(0, bufAlign))
	assert.Equal(t, 1024, roundUp(1, bufAlign))
	assert.Equal(t, 1024, roundUp(1024, bufAlign))
	assert.Equal(t, 132096, roundUp(131075, bufAlign))
}

func TestBufferPool(t *testing.T) {
	b := getBuffer(2048)
	assert.Len(t, *b, 2048)
	putBuffer(b)
	b = getBuffer(4096)
	assert.Len(t, *b, 4096)
	putBuffer(b)
}
