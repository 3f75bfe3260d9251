package unpack

import (
	"bytes"
	"io"
	"testing"
	"testing/iotest"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByteSourceEOF(t *testing.T) {
	s := NewByteSource(bytes.NewReader([]byte("abc")))
	buf := make([]byte, 8)
	n, err := s.SafeRead(buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	for i := 0; i < 2; i++ {
		n, err = s.SafeRead(buf)
		require.NoError(t, err)
		assert.Zero(t, n)
	}
}

func TestByteSourceDataWithEOF(t *testing.T) {
	s := NewByteSource(iotest.DataErrReader(bytes.NewReader([]byte("abc"))))
	buf := make([]byte, 8)
	n, err := s.SafeRead(buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = s.SafeRead(buf)
	require.NoError(t, err)
	assert.Zero(t, n)
}

type scriptReader struct {
	steps []func(p []byte) (int, error)
}

func (r *scriptReader) Read(p []byte) (int, error) {
	if len(r.steps) == 0 {
		return 0, io.EOF
	}
	step := r.steps[0]
	r.steps = r.steps[1:]
	return step(p)
}

func TestByteSourceErrorAfterData(t *testing.T) {
	cause := errors.New("broken pipe")
	s := NewByteSource(&scriptReader{steps: []func([]byte) (int, error){
		func(p []byte) (int, error) { return copy(p, "ab"), cause },
	}})
	buf := make([]byte, 8)
	n, err := s.SafeRead(buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	_, err = s.SafeRead(buf)
	assert.ErrorIs(t, err, ErrRead)
	assert.ErrorIs(t, err, cause)
	_, err = s.SafeRead(buf)
	assert.ErrorIs(t, err, cause)
}

func TestByteSourceNoProgress(t *testing.T) {
	s := NewByteSource(&scriptReader{steps: func() []func([]byte) (int, error) {
		steps := make([]func([]byte) (int, error), maxEmptyReads)
		for i := range steps {
			steps[i] = func([]byte) (int, error) { return 0, nil }
		}
		return steps
	}()})
	_, err := s.SafeRead(make([]byte, 8))
	assert.ErrorIs(t, err, io.ErrNoProgress)
}

func TestByteSourceEmptyReadsRetried(t *testing.T) {
	s := NewByteSource(&scriptReader{steps: []func([]byte) (int, error){
		func([]byte) (int, error) { return 0, nil },
		func([]byte) (int, error) { return 0, nil },
		func(p []byte) (int, error) { return copy(p, "x"), nil },
	}})
	n, err := s.SafeRead(make([]byte, 8))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
