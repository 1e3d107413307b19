package formats

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"testing"

	"github.com/klauspost/compress/zlib"

	metaerrors "github.com/flaneur2020/filemeta/filemeta/errors"
	"github.com/flaneur2020/filemeta/filemeta/metainfo"
)

func pngChunk(buf *bytes.Buffer, tag string, payload []byte) {
	binary.Write(buf, binary.BigEndian, uint32(len(payload)))
	buf.WriteString(tag)
	buf.Write(payload)
	binary.Write(buf, binary.BigEndian, crc32.ChecksumIEEE(append([]byte(tag), payload...)))
}

func pngIHDR(width, height uint32, depth, colorType, interlace byte) []byte {
	p := make([]byte, 13)
	binary.BigEndian.PutUint32(p[0:4], width)
	binary.BigEndian.PutUint32(p[4:8], height)
	p[8], p[9], p[12] = depth, colorType, interlace
	return p
}

func zlibBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write([]byte(s)); err != nil {
		t.Fatalf("zlib write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zlib close: %v", err)
	}
	return buf.Bytes()
}

func TestPNGExtract(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(pngMagic)
	pngChunk(&buf, "IHDR", pngIHDR(640, 480, 8, 6, 1))
	pngChunk(&buf, "tEXt", []byte("Title\x00Caf\xe9"))
	pngChunk(&buf, "zTXt", append([]byte("Comment\x00\x00"), zlibBytes(t, "squeezed")...))
	pngChunk(&buf, "iTXt", append([]byte("Author\x00\x00\x00en\x00Autor\x00"), "Łukasz"...))
	pngChunk(&buf, "tEXt", []byte("\x00no keyword"))
	pngChunk(&buf, "IEND", nil)
	pngChunk(&buf, "tEXt", []byte("After\x00ignored"))

	info := mustExtract(t, pngExtractor{}, "a.png", buf.Bytes())
	checkItems(t, info, []item{
		{metainfo.GroupTechnical, "Resolution", metainfo.Size{Width: 640, Height: 480}},
		{metainfo.GroupTechnical, "Bitdepth", 32},
		{metainfo.GroupTechnical, "Color mode", "RGB/Alpha"},
		{metainfo.GroupTechnical, "Compression", "deflate"},
		{metainfo.GroupTechnical, "Interlace", "Adam7"},
		{metainfo.GroupComment, "Title", "Café"},
		{metainfo.GroupComment, "Comment", "squeezed"},
		{metainfo.GroupComment, "Author", "Łukasz"},
	})
	checkAbsent(t, info, metainfo.GroupComment, "After")
	if n := len(info.Group(metainfo.GroupComment).Items); n != 3 {
		t.Errorf("got %d comments, want 3", n)
	}
}

func TestPNGBitDepth(t *testing.T) {
	tests := []struct {
		colorType byte
		depth     byte
		wantBits  int
		wantMode  string
	}{
		{0, 16, 16, "Grayscale"},
		{2, 8, 24, "RGB"},
		{3, 4, 4, "Palette"},
		{4, 8, 16, "Grayscale/Alpha"},
		{6, 16, 64, "RGB/Alpha"},
		{5, 8, 8, "Unknown"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		buf.Write(pngMagic)
		pngChunk(&buf, "IHDR", pngIHDR(1, 1, tt.depth, tt.colorType, 0))
		pngChunk(&buf, "IEND", nil)

		info := mustExtract(t, pngExtractor{}, "a.png", buf.Bytes())
		checkItems(t, info, []item{
			{metainfo.GroupTechnical, "Bitdepth", tt.wantBits},
			{metainfo.GroupTechnical, "Color mode", tt.wantMode},
			{metainfo.GroupTechnical, "Interlace", "None"},
		})
	}
}

func TestPNGErrors(t *testing.T) {
	var missing bytes.Buffer
	missing.Write(pngMagic)
	pngChunk(&missing, "IDAT", []byte{1, 2, 3})

	var short bytes.Buffer
	short.Write(pngMagic)
	pngChunk(&short, "IHDR", []byte{0, 0, 0, 1})

	var truncated bytes.Buffer
	truncated.Write(pngMagic)
	pngChunk(&truncated, "IHDR", pngIHDR(1, 1, 8, 2, 0))
	cut := truncated.Bytes()[:truncated.Len()-6]

	tests := []struct {
		name     string
		data     []byte
		wantCode string
	}{
		{"bad magic", []byte("\x89PNX\r\n\x1a\n"), "FORMAT_ERROR"},
		{"empty", nil, "FORMAT_ERROR"},
		{"first chunk not IHDR", missing.Bytes(), "FORMAT_ERROR"},
		{"short IHDR", short.Bytes(), "FORMAT_ERROR"},
		{"truncated IHDR", cut, "TRUNCATED_CHUNK"},
		{"no chunks", pngMagic, "FORMAT_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := extract(t, pngExtractor{}, "a.png", tt.data)
			if got := metaerrors.GetErrorCode(err); got != tt.wantCode {
				t.Errorf("Extract() error = %v, want code %s", err, tt.wantCode)
			}
		})
	}
}
