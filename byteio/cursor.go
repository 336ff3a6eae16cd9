package byteio

import (
	"fmt"
	"io"
)

// Cursor adapts a stateless Source into a positioned io.ReadSeeker for
// libraries (archive/zip, the Ion decoder) that require a stream interface.
// Each Cursor owns a private position; the underlying Source is never
// mutated, so many Cursors may share one Source safely.
type Cursor struct {
	src Source
	pos int64
}

// NewCursor returns a Cursor positioned at offset 0.
func NewCursor(src Source) *Cursor {
	return &Cursor{src: src}
}

func (c *Cursor) Read(p []byte) (int, error) {
	remaining := c.src.Len() - c.pos
	if remaining <= 0 {
		return 0, io.EOF
	}
	n := len(p)
	if int64(n) > remaining {
		n = int(remaining)
	}
	data, err := c.src.ReadAt(c.pos, n)
	if err != nil {
		return 0, err
	}
	copy(p, data)
	c.pos += int64(n)
	return n, nil
}

func (c *Cursor) ReadAt(p []byte, off int64) (int, error) {
	n := len(p)
	if off+int64(n) > c.src.Len() {
		n = int(c.src.Len() - off)
		if n < 0 {
			n = 0
		}
	}
	if n == 0 {
		return 0, io.EOF
	}
	data, err := c.src.ReadAt(off, n)
	if err != nil {
		return 0, err
	}
	copy(p, data)
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (c *Cursor) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = c.pos + offset
	case io.SeekEnd:
		newPos = c.src.Len() + offset
	default:
		return 0, fmt.Errorf("byteio: invalid whence %d", whence)
	}
	if newPos < 0 {
		return 0, fmt.Errorf("byteio: negative seek position %d", newPos)
	}
	c.pos = newPos
	return newPos, nil
}

// Size returns the total length of the underlying Source.
func (c *Cursor) Size() int64 { return c.src.Len() }
