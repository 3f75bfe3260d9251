package engine

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error codes, numbered like zstd_errors.h so they read the same in diagnostics.
const (
	CodeGeneric               = 1
	CodePrefixUnknown         = 10
	CodeFrameParamUnsupported = 14
	CodeWindowTooLarge        = 16
	CodeCorruptionDetected    = 20
	CodeChecksumWrong         = 22
	CodeDictionaryWrong       = 32
	CodeMemoryAllocation      = 64
)

var codeNames = map[int]string{
	CodeGeneric:               "Error (generic)",
	CodePrefixUnknown:         "Unknown frame descriptor",
	CodeFrameParamUnsupported: "Unsupported frame parameter",
	CodeWindowTooLarge:        "Frame requires too much memory for decoding",
	CodeCorruptionDetected:    "Data corruption detected",
	CodeChecksumWrong:         "Restored data doesn't match checksum",
	CodeDictionaryWrong:       "Dictionary mismatch",
	CodeMemoryAllocation:      "Allocation error : not enough memory",
}

// Error is returned by Decode when the compressed data is rejected.
type Error struct {
	Code int
	Err  error
}

func newError(code int, err error) *Error {
	return &Error{Code: code, Err: err}
}

func errorf(code int, format string, args ...interface{}) *Error {
	return &Error{Code: code, Err: errors.Errorf(format, args...)}
}

// Name is the human readable name of the error code.
func (e *Error) Name() string {
	if n, ok := codeNames[e.Code]; ok {
		return n
	}
	return codeNames[CodeGeneric]
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s (code %d)", e.Name(), e.Code)
	}
	return fmt.Sprintf("%s (code %d): %v", e.Name(), e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the engine error code carried by err, or CodeGeneric if err does not
// carry one.
func CodeOf(err error) int {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Code
	}
	return CodeGeneric
}
