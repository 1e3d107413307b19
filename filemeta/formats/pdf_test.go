package formats

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	metaerrors "github.com/flaneur2020/filemeta/filemeta/errors"
	"github.com/flaneur2020/filemeta/filemeta/metainfo"
)

// buildPDF writes a document with a classic xref table. objects are the
// bodies of objects 1..n.
func buildPDF(version string, trailer string, objects ...string) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%%PDF-%s\n%%\xe2\xe3\xcf\xd3\n", version)
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d %s >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, trailer, xref)
	return b.Bytes()
}

func TestPDFExtract(t *testing.T) {
	data := buildPDF("1.4", "/Root 1 0 R /Info 4 0 R",
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>",
		"<< /Title (Quarterly Report) /Author (Alice) /Producer (pdfTeX-1.40) /CreationDate (D:20210304050607Z) >>",
	)
	info := mustExtract(t, pdfExtractor{}, "report.pdf", data)
	checkItems(t, info, []item{
		{metainfo.GroupDocument, "Version", "1.4"},
		{metainfo.GroupDocument, "Linearized", false},
		{metainfo.GroupDocument, "Protected", false},
		{metainfo.GroupDocument, "Title", "Quarterly Report"},
		{metainfo.GroupDocument, "Author", "Alice"},
		{metainfo.GroupDocument, "Producer", "pdfTeX-1.40"},
		{metainfo.GroupDocument, "Creation date", time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC)},
		{metainfo.GroupDocument, "Pages", 1},
	})
	checkAbsent(t, info, metainfo.GroupDocument, "Subject")
	checkAbsent(t, info, metainfo.GroupDocument, "Modification date")
}

func TestPDFErrors(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		wantCode string
	}{
		{"no header", []byte("%PS-1.4\n%%EOF\n"), "FORMAT_ERROR"},
		{"empty", nil, "FORMAT_ERROR"},
		{"header only", append([]byte("%PDF-1.7\n"), bytes.Repeat([]byte("x"), 200)...), "FORMAT_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := extract(t, pdfExtractor{}, "a.pdf", tt.data)
			if got := metaerrors.GetErrorCode(err); got != tt.wantCode {
				t.Errorf("Extract() error = %v, want code %s", err, tt.wantCode)
			}
		})
	}
}

func TestParsePDFDate(t *testing.T) {
	tests := []struct {
		in     string
		want   time.Time
		wantOK bool
	}{
		{"D:20210304050607+02'00'", time.Date(2021, 3, 4, 5, 6, 7, 0, time.FixedZone("", 2*3600)), true},
		{"D:199812231952-08'30'", time.Date(1998, 12, 23, 19, 52, 0, 0, time.FixedZone("", -(8*3600+30*60))), true},
		{"D:2021", time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), true},
		{"20210304Z", time.Date(2021, 3, 4, 0, 0, 0, 0, time.UTC), true},
		{"D:191210304050607", time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC), true},
		{"D:20", time.Time{}, false},
		{"D:yyyy0304", time.Time{}, false},
		{"", time.Time{}, false},
	}
	for _, tt := range tests {
		got, ok := parsePDFDate(tt.in)
		if ok != tt.wantOK {
			t.Errorf("parsePDFDate(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("parsePDFDate(%q) = %v, want %v", tt.in, got, tt.want)
		}
		if _, off := got.Zone(); ok && off != zoneOffset(tt.want) {
			t.Errorf("parsePDFDate(%q) offset = %d, want %d", tt.in, off, zoneOffset(tt.want))
		}
	}
}

func zoneOffset(t time.Time) int {
	_, off := t.Zone()
	return off
}
