package toreader

import "io"

// Reader reads an io.ReaderAt sequentially, starting at an offset.
type Reader struct {
	r      io.ReaderAt
	offset int64
}

func NewReader(r io.ReaderAt, start int64) *Reader {
	return &Reader{
		r:      r,
		offset: start,
	}
}

func (r *Reader) Read(b []byte) (int, error) {
	n, err := r.r.ReadAt(b, r.offset)
	r.offset += int64(n)
	if err == io.EOF && n > 0 {
		err = nil
	}
	return n, err
}

// Offset is the position the next Read starts at.
func (r *Reader) Offset() int64 {
	return r.offset
}
