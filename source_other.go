//go:build !unix

package unpack

func isInterrupted(error) bool {
	return false
}
