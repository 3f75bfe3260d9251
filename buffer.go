package unpack

import "sync"

// Both buffer regions are rounded up to this.
const bufAlign = 1024

func roundUp(size, align int) int {
	return (size + align - 1) &^ (align - 1)
}

// Session buffers. A buffer is owned by one Run at a time.
var bufPool sync.Pool

func getBuffer(size int) *[]byte {
	if b, ok := bufPool.Get().(*[]byte); ok && cap(*b) >= size {
		*b = (*b)[:size]
		return b
	}
	b := make([]byte, size)
	return &b
}

var putBuffer = func(b *[]byte) {
	bufPool.Put(b)
}
