//go:build unix

package unpack

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

func isInterrupted(err error) bool {
	return errors.Is(err, unix.EINTR)
}
