package formats

import (
	"context"
	"encoding/binary"

	metaerrors "github.com/flaneur2020/filemeta/filemeta/errors"
	"github.com/flaneur2020/filemeta/filemeta/metainfo"
)

var bmpTypes = map[string]string{
	"BM": "Windows Bitmap",
	"BA": "OS/2 Bitmap Array",
	"CI": "OS/2 Color Icon",
	"CP": "OS/2 Color Pointer",
	"IC": "OS/2 Icon",
	"PT": "OS/2 Pointer",
}

var bmpCompressions = map[uint32]string{
	0: "None",
	1: "RLE 8bit/pixel",
	2: "RLE 4bit/pixel",
	3: "Bitfields",
}

// bmpCoreHeaderSize is the info header size of OS/2 1.x bitmaps.
const bmpCoreHeaderSize = 12

type bmpExtractor struct{}

func (bmpExtractor) Name() string         { return "bmp" }
func (bmpExtractor) MimeTypes() []string  { return []string{"image/bmp", "image/x-bmp"} }
func (bmpExtractor) Extensions() []string { return []string{"bmp", "dib"} }

func (bmpExtractor) Match(head []byte) bool {
	if len(head) < 2 {
		return false
	}
	_, ok := bmpTypes[string(head[:2])]
	return ok
}

func (bmpExtractor) Extract(ctx context.Context, src Source, info *metainfo.Info) error {
	le := binary.LittleEndian
	c := newCursor(src)

	kind, ok := bmpTypes[string(c.Bytes(2))]
	if err := c.Err(); err != nil {
		return metaerrors.NewFormatError("bmp", "missing magic")
	}
	if !ok {
		return metaerrors.NewFormatError("bmp", "unknown bitmap type")
	}
	tech := info.Group(metainfo.GroupTechnical)
	tech.Append("Type", kind)

	// file size, two reserved words and the pixel offset
	c.Skip(12)
	infoSize := c.U32(le)

	var width, height int
	var bitCount uint16
	compression := uint32(0)
	if infoSize == bmpCoreHeaderSize {
		width = int(c.U16(le))
		height = int(c.U16(le))
		c.Skip(2)
		bitCount = c.U16(le)
	} else {
		width = int(c.I32(le))
		height = int(c.I32(le))
		c.Skip(2)
		bitCount = c.U16(le)
		compression = c.U32(le)
	}
	if err := c.Err(); err != nil {
		return err
	}
	// top-down bitmaps store a negative height
	if height < 0 {
		height = -height
	}

	tech.Append("Dimensions", metainfo.Size{Width: width, Height: height})
	tech.Append("BitDepth", int(bitCount))
	if name, ok := bmpCompressions[compression]; ok {
		tech.Append("Compression", name)
	} else {
		tech.Append("Compression", "Unknown")
	}
	return nil
}
