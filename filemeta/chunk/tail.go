package chunk

import (
	"io"
)

// Tail is the end of a source as located by LocateTail.
type Tail struct {
	// Offset is the file offset of Data[0].
	Offset int64
	Data   []byte
	// Index is the position in Data of the last byte that is not padding,
	// or -1 when the window holds only padding.
	Index int
}

// LocateTail is the first phase of a backward read: it reads the last window bytes
// of r and scans backward past pad bytes. Callers decode a pointer near Index and
// seek to it for the second phase.
func LocateTail(r io.ReaderAt, size int64, window int, pad byte) (Tail, error) {
	c := NewCursor(r, size)
	if size < int64(window) {
		c.Skip(int64(window))
		return Tail{}, c.Err()
	}
	c.SeekTo(size - int64(window))
	data := append([]byte(nil), c.Bytes(window)...)
	if err := c.Err(); err != nil {
		return Tail{}, err
	}

	i := len(data) - 1
	for i >= 0 && data[i] == pad {
		i--
	}
	return Tail{Offset: size - int64(window), Data: data, Index: i}, nil
}
