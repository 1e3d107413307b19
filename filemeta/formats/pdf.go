package formats

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/ledongthuc/pdf"

	metaerrors "github.com/flaneur2020/filemeta/filemeta/errors"
	"github.com/flaneur2020/filemeta/filemeta/logger"
	"github.com/flaneur2020/filemeta/filemeta/metainfo"
)

var pdfVersionPattern = regexp.MustCompile(`^%PDF-(\d+\.\d+)`)

// pdfLinearizedWindow is how far into the file the linearization dictionary may start.
const pdfLinearizedWindow = 1024

var pdfInfoKeys = []string{"Title", "Subject", "Author", "Keywords", "Creator", "Producer"}

type pdfExtractor struct{}

func (pdfExtractor) Name() string         { return "pdf" }
func (pdfExtractor) MimeTypes() []string  { return []string{"application/pdf"} }
func (pdfExtractor) Extensions() []string { return []string{"pdf"} }

func (pdfExtractor) Match(head []byte) bool {
	return hasAnyPrefix(head, "%PDF-")
}

func (pdfExtractor) Extract(ctx context.Context, src Source, info *metainfo.Info) error {
	head := make([]byte, min(src.Size(), pdfLinearizedWindow))
	if _, err := src.ReadAt(head, 0); err != nil && err != io.EOF {
		return metaerrors.NewIOError(0, err)
	}
	m := pdfVersionPattern.FindSubmatch(head)
	if m == nil {
		return metaerrors.NewFormatError("pdf", "missing %PDF- header")
	}

	doc := info.Group(metainfo.GroupDocument)
	doc.Append("Version", string(m[1]))
	doc.Append("Linearized", bytes.Contains(head, []byte("/Linearized")))

	r, err := openPDF(src)
	if stderrors.Is(err, pdf.ErrInvalidPassword) {
		doc.Append("Protected", true)
		return nil
	}
	if err != nil {
		return err
	}

	if err := readPDFInfo(r, doc); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if n, ok := pdfPages(r); ok {
		doc.Append("Pages", n)
	} else {
		logger.Debug("pdf: page tree of %s is unreadable", src.Name())
	}
	return nil
}

// readPDFInfo copies the document information dictionary. Objects resolve
// lazily, so malformed ones panic here rather than in NewReader.
func readPDFInfo(r *pdf.Reader, doc *metainfo.Group) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = metaerrors.NewFormatError("pdf", fmt.Sprintf("bad trailer: %v", p))
		}
	}()

	trailer := r.Trailer()
	doc.Append("Protected", !trailer.Key("Encrypt").IsNull())

	infoDict := trailer.Key("Info")
	for _, k := range pdfInfoKeys {
		if s := infoDict.Key(k).Text(); s != "" {
			doc.Append(k, s)
		}
	}
	if t, ok := parsePDFDate(infoDict.Key("CreationDate").RawString()); ok {
		doc.Append("Creation date", t)
	}
	if t, ok := parsePDFDate(infoDict.Key("ModDate").RawString()); ok {
		doc.Append("Modification date", t)
	}
	return nil
}

// openPDF opens src with the parser, which panics on some malformed files.
func openPDF(src Source) (r *pdf.Reader, err error) {
	defer func() {
		if p := recover(); p != nil {
			r, err = nil, metaerrors.NewFormatError("pdf", fmt.Sprintf("parser panic: %v", p))
		}
	}()
	r, err = pdf.NewReader(src, src.Size())
	if err != nil && !stderrors.Is(err, pdf.ErrInvalidPassword) {
		return nil, metaerrors.ErrFormat.
			WithMessage("unreadable document").
			WithDetail("format", "pdf").
			WithCause(err)
	}
	return r, err
}

func pdfPages(r *pdf.Reader) (n int, ok bool) {
	defer func() {
		if recover() != nil {
			n, ok = 0, false
		}
	}()
	return r.NumPage(), true
}

// parsePDFDate parses D:YYYYMMDDHHmmSSOHH'mm'. Every field after the year is
// optional. Some producers wrote the year as 19 followed by years since 1900.
func parsePDFDate(s string) (time.Time, bool) {
	if len(s) >= 2 && s[:2] == "D:" {
		s = s[2:]
	}
	if len(s) < 4 {
		return time.Time{}, false
	}
	year, ok := pdfDigits(s, 0, 4)
	if !ok {
		return time.Time{}, false
	}
	rest := s[4:]
	if year < 1930 && len(s) > 14 {
		century, ok1 := pdfDigits(s, 0, 2)
		since, ok2 := pdfDigits(s, 2, 3)
		if !ok1 || !ok2 {
			return time.Time{}, false
		}
		year = century*100 + since
		rest = s[5:]
	}

	fields := [5]int{1, 1, 0, 0, 0} // month, day, hour, minute, second
	for i := range fields {
		v, ok := pdfDigits(rest, 0, 2)
		if !ok {
			break
		}
		fields[i] = v
		rest = rest[2:]
	}

	loc := time.UTC
	if len(rest) > 0 && (rest[0] == '+' || rest[0] == '-') {
		hh, _ := pdfDigits(rest, 1, 2)
		mm := 0
		if len(rest) > 4 && rest[3] == '\'' {
			mm, _ = pdfDigits(rest, 4, 2)
		}
		offset := hh*3600 + mm*60
		if rest[0] == '-' {
			offset = -offset
		}
		loc = time.FixedZone("", offset)
	}

	t := time.Date(year, time.Month(fields[0]), fields[1], fields[2], fields[3], fields[4], 0, loc)
	return t, true
}

func pdfDigits(s string, off, n int) (int, bool) {
	if off+n > len(s) {
		return 0, false
	}
	v := 0
	for _, b := range []byte(s[off : off+n]) {
		if b < '0' || b > '9' {
			return 0, false
		}
		v = v*10 + int(b-'0')
	}
	return v, true
}
