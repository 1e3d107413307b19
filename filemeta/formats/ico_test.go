package formats

import (
	"encoding/binary"
	"testing"

	metaerrors "github.com/flaneur2020/filemeta/filemeta/errors"
	"github.com/flaneur2020/filemeta/filemeta/metainfo"
)

func buildICO(typ, count uint16, width, height, colors uint8, bitCount uint16) []byte {
	b := newBuilder(binary.LittleEndian)
	b.u16(0, typ, count)
	b.u8(width, height, colors, 0).u16(1, bitCount).u32(1024, 22)
	return b.bytes()
}

func TestICOExtract(t *testing.T) {
	tests := []struct {
		name  string
		data  []byte
		items []item
	}{
		{"single with palette", buildICO(1, 1, 16, 16, 16, 4), []item{
			{metainfo.GroupTechnical, "Number", 1},
			{metainfo.GroupTechnical, "Dimensions", metainfo.Size{Width: 16, Height: 16}},
			{metainfo.GroupTechnical, "Colors", 16},
		}},
		{"single true colour", buildICO(1, 1, 0, 0, 0, 8), []item{
			{metainfo.GroupTechnical, "Dimensions", metainfo.Size{Width: 256, Height: 256}},
			{metainfo.GroupTechnical, "Colors", 256},
		}},
		{"several", buildICO(1, 3, 48, 48, 0, 24), []item{
			{metainfo.GroupTechnical, "Number", 3},
			{metainfo.GroupTechnical, "Dimensions (1st icon)", metainfo.Size{Width: 48, Height: 48}},
			{metainfo.GroupTechnical, "Colors (1st icon)", 1 << 24},
		}},
		{"cursor", buildICO(2, 1, 32, 32, 2, 1), []item{
			{metainfo.GroupTechnical, "Colors", 2},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := mustExtract(t, icoExtractor{}, "a.ico", tt.data)
			checkItems(t, info, tt.items)
		})
	}
}

func TestICOErrors(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		wantCode string
	}{
		{"reserved set", buildICO(1, 1, 1, 1, 0, 1)[2:], "FORMAT_ERROR"},
		{"bad type", buildICO(3, 1, 1, 1, 0, 1), "FORMAT_ERROR"},
		{"no images", buildICO(1, 0, 1, 1, 0, 1), "FORMAT_ERROR"},
		{"short header", []byte{0, 0, 1}, "FORMAT_ERROR"},
		{"truncated entry", buildICO(1, 1, 1, 1, 0, 1)[:9], "TRUNCATED_CHUNK"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := extract(t, icoExtractor{}, "a.ico", tt.data)
			if got := metaerrors.GetErrorCode(err); got != tt.wantCode {
				t.Errorf("Extract() error = %v, want code %s", err, tt.wantCode)
			}
		})
	}
}
