package formats

import (
	"encoding/binary"
	"testing"

	metaerrors "github.com/flaneur2020/filemeta/filemeta/errors"
	"github.com/flaneur2020/filemeta/filemeta/metainfo"
)

type ddsFixture struct {
	size, flags, pfSize, caps1, caps2 uint32
	pfFlags, bitCount                 uint32
	fourCC                            string
	depth                             uint32
}

func defaultDDS() ddsFixture {
	return ddsFixture{
		size:    124,
		flags:   0x1 | 0x2 | 0x4 | 0x1000,
		pfSize:  32,
		caps1:   0x1000,
		pfFlags: 0x40,
		fourCC:  "\x00\x00\x00\x00",
	}
}

func (f ddsFixture) bytes() []byte {
	b := newBuilder(binary.LittleEndian)
	b.str("DDS ")
	b.u32(f.size, f.flags, 256, 512, 0, f.depth, 9)
	b.zeros(11 * 4)
	b.u32(f.pfSize, f.pfFlags).str(f.fourCC).u32(f.bitCount)
	b.zeros(4 * 4)
	b.u32(f.caps1, f.caps2, 0, 0, 0)
	return b.bytes()
}

func TestDDSExtract(t *testing.T) {
	rgba := defaultDDS()
	rgba.pfFlags |= 0x1
	rgba.bitCount = 32

	dxt1 := defaultDDS()
	dxt1.pfFlags = 0x4
	dxt1.fourCC = "DXT1"

	dxt5Cube := defaultDDS()
	dxt5Cube.pfFlags = 0x4
	dxt5Cube.fourCC = "DXT5"
	dxt5Cube.caps2 = 0x200

	volume := defaultDDS()
	volume.caps2 = 0x200000
	volume.depth = 7
	volume.bitCount = 24

	unknown := defaultDDS()
	unknown.pfFlags = 0x4
	unknown.fourCC = "ATI2"

	tests := []struct {
		name  string
		data  []byte
		items []item
	}{
		{"rgba", rgba.bytes(), []item{
			{metainfo.GroupTechnical, "Type", "2D Texture"},
			{metainfo.GroupTechnical, "BitDepth", 32},
			{metainfo.GroupTechnical, "Compression", "Uncompressed"},
			{metainfo.GroupTechnical, "ColorMode", "RGB/Alpha"},
		}},
		{"dxt1", dxt1.bytes(), []item{
			{metainfo.GroupTechnical, "BitDepth", 4},
			{metainfo.GroupTechnical, "Compression", "DXT1"},
			{metainfo.GroupTechnical, "ColorMode", "RGB"},
		}},
		{"dxt5 cube map", dxt5Cube.bytes(), []item{
			{metainfo.GroupTechnical, "Type", "Cube Map Texture"},
			{metainfo.GroupTechnical, "BitDepth", 16},
			{metainfo.GroupTechnical, "ColorMode", "RGB/Alpha"},
		}},
		{"volume", volume.bytes(), []item{
			{metainfo.GroupTechnical, "Type", "Volume Texture"},
			{metainfo.GroupTechnical, "Depth", 7},
			{metainfo.GroupTechnical, "ColorMode", "RGB"},
		}},
		{"unknown fourcc", unknown.bytes(), []item{
			{metainfo.GroupTechnical, "Compression", "Unknown"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := mustExtract(t, ddsExtractor{}, "a.dds", tt.data)
			checkItems(t, info, []item{
				{metainfo.GroupTechnical, "Dimensions", metainfo.Size{Width: 512, Height: 256}},
				{metainfo.GroupTechnical, "MipmapCount", 9},
			})
			checkItems(t, info, tt.items)
		})
	}
}

func TestDDSErrors(t *testing.T) {
	badSize := defaultDDS()
	badSize.size = 100
	noTexture := defaultDDS()
	noTexture.caps1 = 0
	noFlags := defaultDDS()
	noFlags.flags = 0x1
	badPF := defaultDDS()
	badPF.pfSize = 24

	tests := []struct {
		name     string
		data     []byte
		wantCode string
	}{
		{"bad magic", []byte("DDX \x7c\x00\x00\x00"), "FORMAT_ERROR"},
		{"short magic", []byte("DD"), "FORMAT_ERROR"},
		{"bad header size", badSize.bytes(), "FORMAT_ERROR"},
		{"missing flags", noFlags.bytes(), "FORMAT_ERROR"},
		{"bad pixel format size", badPF.bytes(), "FORMAT_ERROR"},
		{"not a texture", noTexture.bytes(), "FORMAT_ERROR"},
		{"truncated", defaultDDS().bytes()[:60], "TRUNCATED_CHUNK"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := extract(t, ddsExtractor{}, "a.dds", tt.data)
			if got := metaerrors.GetErrorCode(err); got != tt.wantCode {
				t.Errorf("Extract() error = %v, want code %s", err, tt.wantCode)
			}
		})
	}
}
