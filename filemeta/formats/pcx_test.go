package formats

import (
	"encoding/binary"
	"testing"

	metaerrors "github.com/flaneur2020/filemeta/filemeta/errors"
	"github.com/flaneur2020/filemeta/filemeta/metainfo"
)

func buildPCX(encoding, bpp, planes uint8) []byte {
	b := newBuilder(binary.LittleEndian)
	b.u8(10, 5, encoding, bpp)
	b.u16(10, 20, 109, 69, 300, 150)
	b.zeros(48 + 1)
	b.u8(planes).u16(100, 1, 0, 0)
	b.zeros(54)
	return b.bytes()
}

func TestPCXExtract(t *testing.T) {
	info := mustExtract(t, pcxExtractor{}, "a.pcx", buildPCX(1, 8, 3))
	checkItems(t, info, []item{
		{metainfo.GroupGeneral, "Dimensions", metainfo.Size{Width: 100, Height: 50}},
		{metainfo.GroupGeneral, "BitDepth", 24},
		{metainfo.GroupGeneral, "Resolution", metainfo.Size{Width: 300, Height: 150}},
		{metainfo.GroupGeneral, "Compression", "Yes (RLE)"},
	})

	info = mustExtract(t, pcxExtractor{}, "a.pcx", buildPCX(0, 1, 1))
	checkItems(t, info, []item{
		{metainfo.GroupGeneral, "BitDepth", 1},
		{metainfo.GroupGeneral, "Compression", "None"},
	})
}

func TestPCXErrors(t *testing.T) {
	bad := buildPCX(1, 8, 1)
	bad[0] = 11
	tests := []struct {
		name     string
		data     []byte
		wantCode string
	}{
		{"bad manufacturer", bad, "FORMAT_ERROR"},
		{"empty", nil, "FORMAT_ERROR"},
		{"truncated", buildPCX(1, 8, 1)[:30], "TRUNCATED_CHUNK"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := extract(t, pcxExtractor{}, "a.pcx", tt.data)
			if got := metaerrors.GetErrorCode(err); got != tt.wantCode {
				t.Errorf("Extract() error = %v, want code %s", err, tt.wantCode)
			}
		})
	}
}

func TestPCXMatch(t *testing.T) {
	if !(pcxExtractor{}).Match(buildPCX(1, 8, 1)) {
		t.Error("Match() = false for a pcx header")
	}
	if (pcxExtractor{}).Match([]byte{10, 9, 1, 8}) {
		t.Error("Match() = true for an unknown version")
	}
}
