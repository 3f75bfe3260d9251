package unpack

import (
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestWrap(t *testing.T) {
	err := wrap(ErrRead, io.ErrUnexpectedEOF)
	assert.ErrorIs(t, err, ErrRead)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.NotErrorIs(t, err, ErrTruncated)
	assert.Equal(t, io.ErrUnexpectedEOF, errors.Cause(err))
	assert.Equal(t, "read error: unexpected EOF", err.Error())

	wrapped := errors.Wrap(wrap(ErrSinkWriteFault, io.ErrShortWrite), "copying")
	assert.ErrorIs(t, wrapped, ErrSinkWriteFault)
	assert.True(t, IsUnrecoverable(wrapped))
	assert.Equal(t, io.ErrShortWrite, errors.Cause(wrapped))
}
