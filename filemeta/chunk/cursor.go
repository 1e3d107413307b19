package chunk

import (
	"bytes"
	"encoding/binary"
	"io"

	metaerrors "github.com/flaneur2020/filemeta/filemeta/errors"
)

// Cursor is a bounds-checked read position over a sized byte source.
//
// Errors are sticky: the first failed read is kept in Err and every later read
// returns a zero value, so fixed headers can be decoded field by field and checked once.
// A read that would pass the end of the source fails with a truncation error before
// any bytes are requested from the underlying reader.
type Cursor struct {
	r    io.ReaderAt
	data []byte
	size int64
	pos  int64
	buf  []byte
	err  error
}

// NewCursor returns a cursor over the first size bytes of r.
func NewCursor(r io.ReaderAt, size int64) *Cursor {
	return &Cursor{r: r, size: size}
}

// NewBytesCursor returns a cursor whose reads are views into b.
func NewBytesCursor(b []byte) *Cursor {
	if b == nil {
		b = []byte{}
	}
	return &Cursor{data: b, size: int64(len(b))}
}

// Err returns the first error encountered.
func (c *Cursor) Err() error { return c.err }

// Pos returns the current offset.
func (c *Cursor) Pos() int64 { return c.pos }

// Size returns the total source size.
func (c *Cursor) Size() int64 { return c.size }

// Remaining returns the number of bytes after the current offset.
func (c *Cursor) Remaining() int64 {
	if c.pos >= c.size {
		return 0
	}
	return c.size - c.pos
}

func (c *Cursor) need(n int64) bool {
	if c.err != nil {
		return false
	}
	if n < 0 || n > c.Remaining() {
		c.err = metaerrors.NewTruncatedError(c.pos, n, c.Remaining())
		return false
	}
	return true
}

// view returns the n bytes at the cursor without advancing.
// The slice is valid until the next read.
func (c *Cursor) view(n int) ([]byte, bool) {
	if !c.need(int64(n)) {
		return nil, false
	}
	if c.data != nil {
		end := c.pos + int64(n)
		return c.data[c.pos:end:end], true
	}
	if cap(c.buf) < n {
		c.buf = make([]byte, n)
	}
	b := c.buf[:n]
	if n == 0 {
		return b, true
	}
	m, err := c.r.ReadAt(b, c.pos)
	if m < n {
		if err == nil || err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		c.err = metaerrors.NewIOError(c.pos, err)
		return nil, false
	}
	return b, true
}

// Bytes reads n bytes and advances. The returned slice is borrowed: it stays valid
// only until the next read through this cursor.
func (c *Cursor) Bytes(n int) []byte {
	b, ok := c.view(n)
	if !ok {
		return nil
	}
	c.pos += int64(n)
	return b
}

// Peek returns the next n bytes without advancing.
func (c *Cursor) Peek(n int) []byte {
	b, _ := c.view(n)
	return b
}

// Skip advances n bytes without reading them.
func (c *Cursor) Skip(n int64) {
	if c.need(n) {
		c.pos += n
	}
}

// SeekTo moves to an absolute offset within the source.
func (c *Cursor) SeekTo(pos int64) {
	if c.err != nil {
		return
	}
	if pos < 0 || pos > c.size {
		c.err = metaerrors.ErrTruncated.
			WithMessage("seek out of range").
			WithDetail("offset", pos).
			WithDetail("size", c.size)
		return
	}
	c.pos = pos
}

// Uint reads an n-byte unsigned integer (1 <= n <= 8) in the given byte order
// and advances. order must be binary.BigEndian or binary.LittleEndian.
func (c *Cursor) Uint(n int, order binary.ByteOrder) uint64 {
	if n < 1 || n > 8 {
		panic("chunk: integer width out of range")
	}
	b := c.Bytes(n)
	if b == nil {
		return 0
	}
	var v uint64
	if order == binary.LittleEndian {
		for i := n - 1; i >= 0; i-- {
			v = v<<8 | uint64(b[i])
		}
		return v
	}
	for i := 0; i < n; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// U8 reads one byte.
func (c *Cursor) U8() uint8 { return uint8(c.Uint(1, binary.BigEndian)) }

// U16 reads a 16-bit unsigned integer.
func (c *Cursor) U16(order binary.ByteOrder) uint16 { return uint16(c.Uint(2, order)) }

// U32 reads a 32-bit unsigned integer.
func (c *Cursor) U32(order binary.ByteOrder) uint32 { return uint32(c.Uint(4, order)) }

// I32 reads a 32-bit signed integer.
func (c *Cursor) I32(order binary.ByteOrder) int32 { return int32(c.Uint(4, order)) }

// CString reads a NUL-terminated string of at most max bytes and consumes the terminator.
func (c *Cursor) CString(max int) string {
	if c.err != nil {
		return ""
	}
	n := int64(max) + 1
	if r := c.Remaining(); r < n {
		n = r
	}
	b, ok := c.view(int(n))
	if !ok {
		return ""
	}
	i := bytes.IndexByte(b, 0)
	if i < 0 {
		if n <= int64(max) {
			c.err = metaerrors.NewTruncatedError(c.pos, n+1, n)
		} else {
			c.err = metaerrors.ErrFormat.
				WithMessage("string exceeds maximum length").
				WithDetail("offset", c.pos).
				WithDetail("max", max)
		}
		return ""
	}
	s := string(b[:i])
	c.pos += int64(i) + 1
	return s
}
