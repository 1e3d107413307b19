package formats

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"strconv"
	"strings"

	metaerrors "github.com/flaneur2020/filemeta/filemeta/errors"
	"github.com/flaneur2020/filemeta/filemeta/metainfo"
)

// psDOSMagic starts a DOS EPS file with a binary preview header.
var psDOSMagic = []byte{0xc5, 0xd0, 0xd3, 0xc6}

// psComments maps DSC header comments to item keys.
var psComments = []struct {
	prefix, key string
}{
	{"%%Title:", "Title"},
	{"%%Creator:", "Creator"},
	{"%%CreationDate:", "CreationDate"},
	{"%%For:", "For"},
	{"%%Pages:", "Pages"},
}

type psExtractor struct{}

func (psExtractor) Name() string { return "ps" }
func (psExtractor) MimeTypes() []string {
	return []string{"application/postscript", "image/x-eps"}
}
func (psExtractor) Extensions() []string { return []string{"ps", "eps", "epsi", "epsf"} }

func (psExtractor) Match(head []byte) bool {
	return hasAnyPrefix(head, "%!", string(psDOSMagic))
}

func (psExtractor) Extract(ctx context.Context, src Source, info *metainfo.Info) error {
	start, end, err := psSection(src)
	if err != nil {
		return err
	}

	limit := min(end-start, maxTextHeader)
	sc := bufio.NewScanner(io.NewSectionReader(src, start, limit))
	sc.Buffer(make([]byte, 0, 4096), int(min(limit, 1<<16))+1)

	if !sc.Scan() || !strings.HasPrefix(sc.Text(), "%!") {
		return metaerrors.NewFormatError("ps", "missing %! header")
	}

	general := info.Group(metainfo.GroupGeneral)
	found := make(map[string]bool, len(psComments))
	pagesAtEnd := false
	for sc.Scan() && len(found) < len(psComments) {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.HasPrefix(line, "%%EndComments") {
			break
		}
		if !strings.HasPrefix(line, "%") {
			// the header ends at the first non-comment line
			break
		}
		for _, c := range psComments {
			if found[c.key] || !strings.HasPrefix(line, c.prefix) {
				continue
			}
			value := psText(line[len(c.prefix):])
			found[c.key] = true
			if c.key != "Pages" {
				general.Append(c.key, value)
				break
			}
			if value == "atend" {
				pagesAtEnd = true
			} else if n, ok := psPages(value); ok {
				general.Append("Pages", n)
			}
			break
		}
	}
	if err := sc.Err(); err != nil && err != bufio.ErrTooLong {
		return metaerrors.NewIOError(start, err)
	}

	if pagesAtEnd {
		if n, ok := psTrailerPages(src, start, end); ok {
			general.Append("Pages", n)
		}
	}
	return nil
}

// psSection returns the byte range holding PostScript. DOS EPS files embed it
// after a binary header.
func psSection(src Source) (int64, int64, error) {
	head, err := readHeader(src, "ps", 2)
	if err != nil {
		return 0, 0, err
	}
	if head[0] == '%' {
		return 0, src.Size(), nil
	}

	c := newCursor(src)
	if err := expectPrefix(c, "ps", string(psDOSMagic)); err != nil {
		return 0, 0, err
	}
	off := int64(c.U32(binary.LittleEndian))
	n := int64(c.U32(binary.LittleEndian))
	if err := c.Err(); err != nil {
		return 0, 0, err
	}
	if off+n > src.Size() || n < 2 {
		return 0, 0, metaerrors.NewTruncatedError(off, n, src.Size()-off)
	}
	return off, off + n, nil
}

// psText strips the DSC text parentheses. DSC text is Latin-1.
func psText(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 2 && v[0] == '(' && v[len(v)-1] == ')' {
		v = v[1 : len(v)-1]
	}
	return latin1([]byte(v))
}

func psPages(v string) (int, bool) {
	f := strings.Fields(v)
	if len(f) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(f[0])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// psTrailerPages finds the last %%Pages: comment in the trailer.
func psTrailerPages(src Source, start, end int64) (int, bool) {
	n := min(end-start, maxTextHeader)
	buf := make([]byte, n)
	if _, err := src.ReadAt(buf, end-n); err != nil && err != io.EOF {
		return 0, false
	}
	i := bytes.LastIndex(buf, []byte("%%Pages:"))
	if i < 0 {
		return 0, false
	}
	line := buf[i+len("%%Pages:"):]
	if j := bytes.IndexAny(line, "\r\n"); j >= 0 {
		line = line[:j]
	}
	return psPages(string(line))
}
