// Package chunk walks tagged, length-prefixed binary containers.
//
// A Scanner validates a dialect's signature, then yields one Chunk per call to
// Scan in file order. Every declared length is checked against the remaining
// source before it is read, so a crafted length fails with a truncation error
// instead of reading out of bounds.
package chunk

import (
	"fmt"
	"io"
	"os"

	metaerrors "github.com/flaneur2020/filemeta/filemeta/errors"
)

// Chunk is one record of a container.
type Chunk struct {
	Tag    string
	Type   string
	Offset int64
	Length int
	// HeaderSize counts the framing bytes around the payload: the header,
	// the trailer and any sub-block length bytes.
	HeaderSize int
	// Payload is borrowed and valid until the next call to Scan.
	Payload []byte
}

// End returns the offset just past the chunk.
func (c Chunk) End() int64 {
	return c.Offset + int64(c.HeaderSize) + int64(c.Length)
}

// Marker returns the first tag byte, which is the marker for JPEG and GIF tags.
func (c Chunk) Marker() byte {
	if c.Tag == "" {
		return 0
	}
	return c.Tag[0]
}

// Scanner yields the chunks of one container. It is not restartable.
type Scanner struct {
	c          *Cursor
	d          Dialect
	start      int64
	chunk      Chunk
	scratch    []byte
	terminal   Chunk
	terminated bool
	done       bool
	err        error
}

// NewScanner validates the dialect signature of the first size bytes of r.
func NewScanner(r io.ReaderAt, size int64, d Dialect) (*Scanner, error) {
	return newScanner(NewCursor(r, size), d)
}

// NewBytesScanner scans an in-memory container. Payloads are views into b.
func NewBytesScanner(b []byte, d Dialect) (*Scanner, error) {
	return newScanner(NewBytesCursor(b), d)
}

func newScanner(c *Cursor, d Dialect) (*Scanner, error) {
	err := d.Signature(c)
	if err == nil {
		err = c.Err()
	}
	if err != nil {
		if metaerrors.IsTruncated(err) {
			return nil, metaerrors.ErrFormat.
				WithMessage("source shorter than signature").
				WithDetail("format", d.Name()).
				WithCause(err)
		}
		return nil, err
	}
	return &Scanner{c: c, d: d, start: c.Pos()}, nil
}

// Dialect returns the dialect being scanned.
func (s *Scanner) Dialect() Dialect { return s.d }

// Start returns the offset of the first chunk, just past the signature.
func (s *Scanner) Start() int64 { return s.start }

// Scan advances to the next chunk. It returns false at the terminal tag, at a
// clean end of source on a chunk boundary, or on error.
func (s *Scanner) Scan() bool {
	if s.done {
		return false
	}
	if s.c.Remaining() == 0 {
		s.done = true
		return false
	}

	start := s.c.Pos()
	h, err := s.d.Header(s.c)
	if err == nil {
		err = s.c.Err()
	}
	if err != nil {
		return s.fail(err)
	}

	if h.Terminal {
		s.terminal = Chunk{
			Tag:        h.Tag,
			Type:       h.Type,
			Offset:     start,
			HeaderSize: int(s.c.Pos() - start),
		}
		s.terminated = true
		s.done = true
		return false
	}
	if h.Length < 0 {
		return s.fail(metaerrors.NewFormatError(s.d.Name(), fmt.Sprintf("chunk %q has negative length", h.Tag)))
	}

	var payload []byte
	switch h.Framing {
	case SubBlocks:
		payload = s.readSubBlocks(h.Length)
	default:
		payload = s.c.Bytes(h.Length)
	}
	s.c.Skip(int64(h.Trailer))
	if err := s.c.Err(); err != nil {
		return s.fail(err)
	}

	s.chunk = Chunk{
		Tag:        h.Tag,
		Type:       h.Type,
		Offset:     start,
		Length:     len(payload),
		HeaderSize: int(s.c.Pos()-start) - len(payload),
		Payload:    payload,
	}
	return true
}

// readSubBlocks collects fixed bytes followed by length-prefixed sub-blocks into
// the scanner's scratch buffer, consuming the zero-length terminator.
func (s *Scanner) readSubBlocks(fixed int) []byte {
	buf := append(s.scratch[:0], s.c.Bytes(fixed)...)
	for s.c.Err() == nil {
		n := s.c.U8()
		if n == 0 {
			break
		}
		buf = append(buf, s.c.Bytes(int(n))...)
	}
	s.scratch = buf
	return buf
}

func (s *Scanner) fail(err error) bool {
	s.err = err
	s.done = true
	return false
}

// Chunk returns the chunk produced by the last successful Scan.
func (s *Scanner) Chunk() Chunk { return s.chunk }

// Err returns the error that stopped the scan, or nil.
func (s *Scanner) Err() error { return s.err }

// Terminal returns the terminal chunk header once iteration reached it.
func (s *Scanner) Terminal() (Chunk, bool) { return s.terminal, s.terminated }

// Walk calls fn for each remaining chunk and stops at the first error.
func (s *Scanner) Walk(fn func(Chunk) error) error {
	for s.Scan() {
		if err := fn(s.chunk); err != nil {
			return err
		}
	}
	return s.err
}

// Collect walks the remaining chunks and returns copies of them.
func (s *Scanner) Collect() ([]Chunk, error) {
	var chunks []Chunk
	err := s.Walk(func(c Chunk) error {
		c.Payload = append([]byte(nil), c.Payload...)
		chunks = append(chunks, c)
		return nil
	})
	return chunks, err
}

// FileScanner is a Scanner that owns the file it reads.
type FileScanner struct {
	*Scanner
	f *os.File
}

// Open opens path and validates the dialect signature. The file is closed if
// validation fails.
func Open(path string, d Dialect) (*FileScanner, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, metaerrors.NewIOError(0, err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, metaerrors.NewIOError(0, err)
	}
	s, err := NewScanner(f, stat.Size(), d)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &FileScanner{Scanner: s, f: f}, nil
}

// Close releases the underlying file.
func (s *FileScanner) Close() error {
	return s.f.Close()
}
