package formats

import (
	"bytes"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/flaneur2020/filemeta/filemeta/chunk"
	metaerrors "github.com/flaneur2020/filemeta/filemeta/errors"
)

// maxTextHeader bounds scans of text headers (PS comments, XPM values, XBM defines).
var maxTextHeader int64 = 1 << 20

// SetMaxTextHeader changes the bound for text header scans.
func SetMaxTextHeader(n int64) {
	if n > 0 {
		maxTextHeader = n
	}
}

func newCursor(src Source) *chunk.Cursor {
	return chunk.NewCursor(src, src.Size())
}

// readHeader reads exactly n leading bytes; a shorter source is a format error
// for fixed-layout formats, since the magic cannot be trusted without its header.
func readHeader(src Source, format string, n int) ([]byte, error) {
	if src.Size() < int64(n) {
		return nil, metaerrors.NewFormatError(format, "source shorter than header")
	}
	c := newCursor(src)
	b := append([]byte(nil), c.Bytes(n)...)
	return b, c.Err()
}

// readTextHeader returns up to maxTextHeader leading bytes.
func readTextHeader(src Source) ([]byte, error) {
	n := src.Size()
	if n > maxTextHeader {
		n = maxTextHeader
	}
	buf := make([]byte, n)
	if _, err := src.ReadAt(buf, 0); err != nil && err != io.EOF {
		return nil, metaerrors.NewIOError(0, err)
	}
	return buf, nil
}

// latin1 decodes ISO 8859-1 bytes.
func latin1(b []byte) string {
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}

// simplify trims s and collapses internal whitespace runs to single spaces.
func simplify(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// cstring returns b up to the first NUL.
func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func hasAnyPrefix(head []byte, prefixes ...string) bool {
	for _, p := range prefixes {
		if bytes.HasPrefix(head, []byte(p)) {
			return true
		}
	}
	return false
}

// expectPrefix consumes magic from c. A short or mismatching magic is a format error.
func expectPrefix(c *chunk.Cursor, format, magic string) error {
	b := c.Bytes(len(magic))
	if c.Err() != nil || string(b) != magic {
		return errBadMagic(format)
	}
	return nil
}

func errBadMagic(format string) error {
	return metaerrors.NewFormatError(format, "bad magic")
}
