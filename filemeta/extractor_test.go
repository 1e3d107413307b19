package filemeta

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/opencontainers/go-digest"

	metaerrors "github.com/flaneur2020/filemeta/filemeta/errors"
	"github.com/flaneur2020/filemeta/filemeta/metainfo"
	"github.com/flaneur2020/filemeta/filemeta/storage"
)

// tinyGIF is a 2x1 GIF with no colour table and no frames.
var tinyGIF = []byte("GIF89a\x02\x00\x01\x00\x00\x00\x00\x3b")

func newTestExtractor(t *testing.T, opts ...Option) *Extractor {
	t.Helper()
	e, err := NewExtractor(opts...)
	if err != nil {
		t.Fatalf("NewExtractor() error = %v", err)
	}
	return e
}

func TestExtractor_Extract(t *testing.T) {
	e := newTestExtractor(t)
	info, err := e.Extract(context.Background(), storage.NewBytesBlob("tiny.gif", tinyGIF))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if info.Format != "gif" || info.MimeType != "image/gif" {
		t.Errorf("Extract() format = %s (%s)", info.Format, info.MimeType)
	}
	if info.Groups[0].Name != metainfo.GroupFile {
		t.Errorf("first group = %s, want %s", info.Groups[0].Name, metainfo.GroupFile)
	}

	tests := []struct {
		key  string
		want interface{}
	}{
		{"Name", "tiny.gif"},
		{"Size", int64(len(tinyGIF))},
		{"Digest", digest.FromBytes(tinyGIF).String()},
	}
	for _, tt := range tests {
		if got, _ := info.Lookup(metainfo.GroupFile, tt.key); got != tt.want {
			t.Errorf("File/%s = %v, want %v", tt.key, got, tt.want)
		}
	}
	if got, _ := info.Lookup(metainfo.GroupGeneral, "Dimensions"); got != (metainfo.Size{Width: 2, Height: 1}) {
		t.Errorf("General/Dimensions = %v", got)
	}
	for _, g := range info.Groups {
		if len(g.Items) == 0 {
			t.Errorf("empty group %s kept", g.Name)
		}
	}
}

func TestExtractor_CacheReturnsCopies(t *testing.T) {
	e := newTestExtractor(t)
	ctx := context.Background()

	first, err := e.Extract(ctx, storage.NewBytesBlob("a.gif", tinyGIF))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	n := first.Len()
	first.Group(metainfo.GroupGeneral).Append("Injected", true)

	second, err := e.Extract(ctx, storage.NewBytesBlob("b.gif", tinyGIF))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if second.Len() != n {
		t.Errorf("cached result has %d items, want %d", second.Len(), n)
	}
	if got, _ := second.Lookup(metainfo.GroupFile, "Name"); got != "b.gif" {
		t.Errorf("cached result name = %v, want b.gif", got)
	}
	if e.cache.Len() != 1 {
		t.Errorf("cache holds %d entries, want 1", e.cache.Len())
	}
}

func TestExtractor_NoCache(t *testing.T) {
	e := newTestExtractor(t, WithCacheSize(0))
	if e.cache != nil {
		t.Fatal("WithCacheSize(0) created a cache")
	}
	if _, err := e.Extract(context.Background(), storage.NewBytesBlob("a.gif", tinyGIF)); err != nil {
		t.Errorf("Extract() error = %v", err)
	}
}

func TestExtractor_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := newTestExtractor(t).Extract(ctx, storage.NewBytesBlob("notes.txt", []byte("just text")))
	if got := metaerrors.GetErrorCode(err); got != "UNSUPPORTED_FORMAT" {
		t.Errorf("Extract(text) error = %v, want UNSUPPORTED_FORMAT", err)
	}

	// a forced format skips sniffing; the partial result still names the file
	info, err := newTestExtractor(t, WithFormat("png")).Extract(ctx, storage.NewBytesBlob("a.gif", tinyGIF))
	if got := metaerrors.GetErrorCode(err); got != "FORMAT_ERROR" {
		t.Errorf("Extract(forced png) error = %v, want FORMAT_ERROR", err)
	}
	if info == nil {
		t.Fatal("Extract(forced png) returned no partial result")
	}
	if got, _ := info.Lookup(metainfo.GroupFile, "Name"); got != "a.gif" {
		t.Errorf("partial File/Name = %v", got)
	}

	if _, err := NewExtractor(WithFormat("webp")); metaerrors.GetErrorCode(err) != "UNSUPPORTED_FORMAT" {
		t.Errorf("NewExtractor(webp) error = %v, want UNSUPPORTED_FORMAT", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := newTestExtractor(t).Extract(cancelled, storage.NewBytesBlob("a.gif", tinyGIF)); err != context.Canceled {
		t.Errorf("Extract(cancelled) error = %v", err)
	}
}

// mtimeBlob overrides the modification time of a blob.
type mtimeBlob struct {
	storage.Blob
	mtime time.Time
}

func (b mtimeBlob) ModTime() time.Time { return b.mtime }

// onePageDVI is a one-page DVI file: preamble, an empty page, postamble and
// post_post with four padding bytes.
func onePageDVI() []byte {
	var buf bytes.Buffer
	be := func(v interface{}) { binary.Write(&buf, binary.BigEndian, v) }
	buf.Write([]byte{247, 2})
	be([]uint32{25400000, 473628672, 1000})
	buf.Write([]byte{1, 'x'})
	buf.WriteByte(139)
	buf.Write(make([]byte, 44))
	buf.WriteByte(140)

	post := uint32(buf.Len())
	buf.WriteByte(248)
	be([]uint32{0, 25400000, 473628672, 1000, 0, 0})
	be([]uint16{10, 1})
	buf.WriteByte(249)
	be(post)
	buf.Write([]byte{2, 223, 223, 223, 223})
	return buf.Bytes()
}

func TestExtractor_CacheKeepsModTime(t *testing.T) {
	e := newTestExtractor(t)
	data := onePageDVI()

	tests := []struct {
		name  string
		mtime time.Time
		want  string
	}{
		{"a.dvi", time.Date(2001, 1, 1, 0, 0, 0, 0, time.Local), "2001-01-01 00:00"},
		{"b.dvi", time.Date(2024, 6, 6, 6, 6, 0, 0, time.Local), "2024-06-06 06:06"},
		{"c.dvi", time.Date(2001, 1, 1, 0, 0, 0, 0, time.Local), "2001-01-01 00:00"},
	}
	for _, tt := range tests {
		blob := mtimeBlob{Blob: storage.NewBytesBlob(tt.name, data), mtime: tt.mtime}
		info, err := e.Extract(context.Background(), blob)
		if err != nil {
			t.Fatalf("Extract(%s) error = %v", tt.name, err)
		}
		if got, _ := info.Lookup(metainfo.GroupGeneral, "Modified"); got != tt.want {
			t.Errorf("%s Modified = %v, want %s", tt.name, got, tt.want)
		}
	}
	if n := e.cache.Len(); n != 2 {
		t.Errorf("cache.Len() = %d, want 2", n)
	}
}
