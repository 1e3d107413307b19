package formats

import (
	"testing"

	metaerrors "github.com/flaneur2020/filemeta/filemeta/errors"
	"github.com/flaneur2020/filemeta/filemeta/metainfo"
)

func TestXBMExtract(t *testing.T) {
	data := "#define star_width 16\n#define star_height 12\n#define star_x_hot 3\nstatic unsigned char star_bits[] = {\n  0x00, 0x01 };\n"
	info := mustExtract(t, xbmExtractor{}, "star.xbm", []byte(data))
	checkItems(t, info, []item{
		{metainfo.GroupTechnical, "Dimensions", metainfo.Size{Width: 16, Height: 12}},
	})
}

func TestXBMErrors(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		wantCode string
	}{
		{"not xbm", "static char x;", "FORMAT_ERROR"},
		{"missing height", "#define a_width 4\n", "FORMAT_ERROR"},
		{"zero width", "#define a_width 0\n#define a_height 4\n", "FORMAT_ERROR"},
		{"bad number", "#define a_width four\n#define a_height 4\n", "FORMAT_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := extract(t, xbmExtractor{}, "a.xbm", []byte(tt.data))
			if got := metaerrors.GetErrorCode(err); got != tt.wantCode {
				t.Errorf("Extract() error = %v, want code %s", err, tt.wantCode)
			}
		})
	}
}

func TestXBMDefine(t *testing.T) {
	tests := []struct {
		line     string
		wantName string
		wantV    int
		wantOK   bool
	}{
		{"#define x_width 8", "x_width", 8, true},
		{"  #define   x_height\t3 ", "x_height", 3, true},
		{"#define x_bits", "", 0, false},
		{"#ifdef x_width 8", "", 0, false},
	}
	for _, tt := range tests {
		name, v, ok := xbmDefine(tt.line)
		if name != tt.wantName || v != tt.wantV || ok != tt.wantOK {
			t.Errorf("xbmDefine(%q) = %q, %d, %v", tt.line, name, v, ok)
		}
	}
}
