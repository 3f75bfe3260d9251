package unpack

import (
	"fmt"

	"github.com/CalebQ42/unpack/engine"
	"github.com/pkg/errors"
)

var (
	//ErrRead is returned when the source fails. The underlying error is wrapped.
	ErrRead = errors.New("read error")
	//ErrTruncated is returned when the input ends before the current frame does, including when there is no input at all.
	ErrTruncated = errors.New("truncated compressed stream")
	//ErrSinkOverflow is returned when in memory output would exceed Options.MemSinkMaxBytes. The output buffer is released.
	ErrSinkOverflow = errors.New("output exceeds memory limit")
	//ErrSinkWriteFault is returned when the destination accepts fewer bytes than given.
	ErrSinkWriteFault = errors.New("short write to destination")
	//ErrOutOfMemory is returned when a decoding context can't be created.
	ErrOutOfMemory = errors.New("cannot create decoding context")
	//ErrSessionUsed is returned when Run is called a second time.
	ErrSessionUsed = errors.New("session already ran")
)

// DecodeError is returned when the decoder rejects the compressed data.
type DecodeError struct {
	Code int
	Err  error
}

func newDecodeError(err error) *DecodeError {
	return &DecodeError{
		Code: engine.CodeOf(err),
		Err:  err,
	}
}

// Name is the human readable name of Code.
func (e *DecodeError) Name() string {
	return (&engine.Error{Code: e.Code}).Name()
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoder error: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsUnrecoverable reports whether err is a fault after which a sink's partial output is
// unusable. The only way forward is a fresh Session.
func IsUnrecoverable(err error) bool {
	return errors.Is(err, ErrSinkOverflow) ||
		errors.Is(err, ErrSinkWriteFault) ||
		errors.Is(err, ErrOutOfMemory)
}

// kindError marks a cause with one of the sentinel errors above. errors.Is matches the
// sentinel, and the cause stays reachable through Unwrap and errors.Cause.
type kindError struct {
	kind  error
	cause error
}

func wrap(kind, cause error) error {
	return &kindError{kind: kind, cause: cause}
}

func (e *kindError) Error() string {
	return e.kind.Error() + ": " + e.cause.Error()
}

func (e *kindError) Is(target error) bool {
	return target == e.kind
}

func (e *kindError) Unwrap() error {
	return e.cause
}

func (e *kindError) Cause() error {
	return e.cause
}
