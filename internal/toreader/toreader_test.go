package toreader

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReader(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte("0123456789")), 4)
	buf := make([]byte, 4)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "4567", string(buf[:n]))
	n, err = r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "89", string(buf[:n]))
	assert.Equal(t, int64(10), r.Offset())
	_, err = r.Read(buf)
	assert.Equal(t, io.EOF, err)
}
