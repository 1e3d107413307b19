package formats

import (
	"encoding/binary"
	"testing"

	metaerrors "github.com/flaneur2020/filemeta/filemeta/errors"
	"github.com/flaneur2020/filemeta/filemeta/metainfo"
)

func buildTGA(imageType uint8, width, height uint16, depth uint8) []byte {
	b := newBuilder(binary.LittleEndian)
	b.u8(0, 0, imageType)
	b.zeros(5)
	b.u16(0, 0, width, height).u8(depth, 0)
	return b.bytes()
}

func TestTGAExtract(t *testing.T) {
	tests := []struct {
		imageType    uint8
		wantMode     string
		wantCompress string
	}{
		{1, "Color-mapped", "Uncompressed"},
		{2, "RGB", "Uncompressed"},
		{3, "Black and white", "Uncompressed"},
		{9, "Color-mapped", "Runlength encoded"},
		{10, "RGB", "Runlength encoded"},
		{11, "Black and white", "Runlength encoded"},
		{32, "Color-mapped", "Huffman, Delta & RLE"},
		{33, "RGB", "Huffman, Delta, RLE (4-pass quadtree)"},
		{7, "Unknown", "Unknown"},
	}
	for _, tt := range tests {
		info := mustExtract(t, tgaExtractor{}, "a.tga", buildTGA(tt.imageType, 200, 100, 24))
		checkItems(t, info, []item{
			{metainfo.GroupTechnical, "Resolution", metainfo.Size{Width: 200, Height: 100}},
			{metainfo.GroupTechnical, "Bitdepth", 24},
			{metainfo.GroupTechnical, "Color mode", tt.wantMode},
			{metainfo.GroupTechnical, "Compression", tt.wantCompress},
		})
	}
}

func TestTGAErrors(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		wantCode string
	}{
		{"no image data", buildTGA(0, 1, 1, 8), "FORMAT_ERROR"},
		{"empty", nil, "FORMAT_ERROR"},
		{"truncated", buildTGA(2, 1, 1, 8)[:13], "TRUNCATED_CHUNK"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := extract(t, tgaExtractor{}, "a.tga", tt.data)
			if got := metaerrors.GetErrorCode(err); got != tt.wantCode {
				t.Errorf("Extract() error = %v, want code %s", err, tt.wantCode)
			}
		})
	}
}

func TestTGAMatch(t *testing.T) {
	tests := []struct {
		name string
		head []byte
		want bool
	}{
		{"rgb", buildTGA(2, 1, 1, 24), true},
		{"rle grey", buildTGA(11, 1, 1, 8), true},
		{"bad depth", buildTGA(2, 1, 1, 7), false},
		{"no image", buildTGA(0, 1, 1, 8), false},
		{"short", buildTGA(2, 1, 1, 24)[:10], false},
	}
	for _, tt := range tests {
		if got := (tgaExtractor{}).Match(tt.head); got != tt.want {
			t.Errorf("Match(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
