package formats

import (
	"encoding/binary"
	"testing"

	metaerrors "github.com/flaneur2020/filemeta/filemeta/errors"
	"github.com/flaneur2020/filemeta/filemeta/metainfo"
)

func jpegSegment(b *builder, marker byte, payload []byte) {
	b.u8(0xff, marker).u16(uint16(len(payload) + 2))
	b.Write(payload)
}

func jpegSOF(marker byte, width, height uint16, components int) []byte {
	p := newBuilder(binary.BigEndian).u8(8).u16(height, width).u8(uint8(components))
	for i := 0; i < components; i++ {
		p.u8(uint8(i+1), 0x11, 0)
	}
	return p.bytes()
}

func buildJPEG(exifTIFF []byte, sofMarker byte, components int, comment string) []byte {
	b := newBuilder(binary.BigEndian)
	b.u8(0xff, 0xd8)
	if exifTIFF != nil {
		jpegSegment(b, 0xe1, append([]byte("Exif\x00\x00"), exifTIFF...))
	}
	if comment != "" {
		jpegSegment(b, 0xfe, []byte(comment))
	}
	jpegSegment(b, 0xdb, make([]byte, 65))
	jpegSegment(b, sofMarker, jpegSOF(sofMarker, 800, 600, components))
	jpegSegment(b, 0xda, []byte{1, 1, 0, 0, 0x3f, 0})
	b.u8(0x12, 0x34, 0xff, 0x00, 0x56)
	b.u8(0xff, 0xd9)
	return b.bytes()
}

func TestJPEGFrameAndComment(t *testing.T) {
	info := mustExtract(t, jpegExtractor{}, "a.jpg", buildJPEG(nil, 0xc2, 3, "shot on a tripod"))
	checkItems(t, info, []item{
		{metainfo.GroupGeneral, "Comment", "shot on a tripod"},
		{metainfo.GroupGeneral, "Resolution", metainfo.Size{Width: 800, Height: 600}},
		{metainfo.GroupGeneral, "Color/bw", "Color"},
		{metainfo.GroupGeneral, "JPEG Process", "Progressive"},
	})
	if g := info.Group(metainfo.GroupCamera); len(g.Items) != 0 {
		t.Errorf("camera group = %v, want empty without exif", g.Items)
	}
}

func TestJPEGGrayscaleLatin1Comment(t *testing.T) {
	info := mustExtract(t, jpegExtractor{}, "a.jpg", buildJPEG(nil, 0xc0, 1, "caf\xe9"))
	checkItems(t, info, []item{
		{metainfo.GroupGeneral, "Comment", "café"},
		{metainfo.GroupGeneral, "Color/bw", "Black and white"},
		{metainfo.GroupGeneral, "JPEG Process", "Baseline"},
	})
}

func TestJPEGExif(t *testing.T) {
	tiff := buildTIFF(
		asciiEntry(0x010f, "Canon"),
		asciiEntry(0x0110, "Canon EOS 5D"),
		shortEntry(0x0112, 6),
		asciiEntry(0x0132, "2005:06:03 17:13:33"),
		rationalEntry(0x829a, 1, 250),
		rationalEntry(0x829d, 28, 10),
		shortEntry(0x8827, 400),
		shortEntry(0x9209, 0x19),
		rationalEntry(0x920a, 50, 1),
	)
	info := mustExtract(t, jpegExtractor{}, "a.jpg", buildJPEG(tiff, 0xc0, 3, ""))
	checkItems(t, info, []item{
		{metainfo.GroupCamera, "Camera make", "Canon"},
		{metainfo.GroupCamera, "Camera model", "Canon EOS 5D"},
		{metainfo.GroupCamera, "Orientation", 6},
		{metainfo.GroupCamera, "Date/Time", "2005:06:03 17:13:33"},
		{metainfo.GroupCamera, "Exposure time", " 0.004 (1/250)"},
		{metainfo.GroupCamera, "Aperture", "f/2.8"},
		{metainfo.GroupCamera, "ISO equiv.", "400"},
		{metainfo.GroupCamera, "Flash used", "Auto Fired"},
		{metainfo.GroupCamera, "Focal length", "50.0 mm"},
	})
}

func TestJPEGCCDWidth(t *testing.T) {
	tests := []struct {
		name    string
		entries []tiffEntry
		want35  string
		wantCCD string
	}{
		{
			name: "inches, derived 35mm equivalent",
			entries: []tiffEntry{
				rationalEntry(0x920a, 50, 1),
				longEntry(0xa002, 3000),
				shortEntry(0xa003, 2000),
				rationalEntry(0xa20e, 3000, 1),
				shortEntry(0xa210, 2),
			},
			want35:  "69 mm",
			wantCCD: "25.40 mm",
		},
		{
			name: "centimetres, recorded 35mm equivalent wins",
			entries: []tiffEntry{
				rationalEntry(0x920a, 20, 1),
				shortEntry(0xa002, 1500),
				shortEntry(0xa003, 2000),
				rationalEntry(0xa20e, 1000, 1),
				shortEntry(0xa210, 3),
				shortEntry(0xa405, 30),
			},
			want35:  "30 mm",
			wantCCD: "20.00 mm",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := mustExtract(t, jpegExtractor{}, "a.jpg", buildJPEG(buildTIFF(tt.entries...), 0xc0, 3, ""))
			checkItems(t, info, []item{
				{metainfo.GroupCamera, "35mm equivalent", tt.want35},
				{metainfo.GroupCamera, "CCD Width", tt.wantCCD},
			})
		})
	}
}

func TestJPEGNoCCDWidthWithoutResolution(t *testing.T) {
	tiff := buildTIFF(
		rationalEntry(0x920a, 50, 1),
		longEntry(0xa002, 3000),
	)
	info := mustExtract(t, jpegExtractor{}, "a.jpg", buildJPEG(tiff, 0xc0, 3, ""))
	checkAbsent(t, info, metainfo.GroupCamera, "CCD Width")
	checkAbsent(t, info, metainfo.GroupCamera, "35mm equivalent")
}

func TestJPEGErrors(t *testing.T) {
	badSOF := newBuilder(binary.BigEndian)
	badSOF.u8(0xff, 0xd8)
	jpegSegment(badSOF, 0xc0, []byte{8, 0, 1})

	truncated := buildJPEG(nil, 0xc0, 3, "")[:20]

	tests := []struct {
		name     string
		data     []byte
		wantCode string
	}{
		{"bad magic", []byte{0xff, 0xd9, 0xff}, "FORMAT_ERROR"},
		{"short frame header", badSOF.bytes(), "FORMAT_ERROR"},
		{"truncated segment", truncated, "TRUNCATED_CHUNK"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := extract(t, jpegExtractor{}, "a.jpg", tt.data)
			if got := metaerrors.GetErrorCode(err); got != tt.wantCode {
				t.Errorf("Extract() error = %v, want code %s", err, tt.wantCode)
			}
		})
	}
}

func TestFormatExposure(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1.0 / 60, " 0.017 (1/60)"},
		{0.5, " 0.500 (1/2)"},
		{2, " 2.000"},
	}
	for _, tt := range tests {
		if got := formatExposure(tt.in); got != tt.want {
			t.Errorf("formatExposure(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
