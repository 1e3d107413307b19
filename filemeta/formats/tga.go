package formats

import (
	"context"
	"encoding/binary"

	metaerrors "github.com/flaneur2020/filemeta/filemeta/errors"
	"github.com/flaneur2020/filemeta/filemeta/metainfo"
)

const tgaHeaderSize = 18

var tgaColorModes = map[byte]string{
	1:  "Color-mapped",
	9:  "Color-mapped",
	32: "Color-mapped",
	2:  "RGB",
	10: "RGB",
	33: "RGB",
	3:  "Black and white",
	11: "Black and white",
}

var tgaCompressions = map[byte]string{
	1:  "Uncompressed",
	2:  "Uncompressed",
	3:  "Uncompressed",
	9:  "Runlength encoded",
	10: "Runlength encoded",
	11: "Runlength encoded",
	32: "Huffman, Delta & RLE",
	33: "Huffman, Delta, RLE (4-pass quadtree)",
}

// TGA has no magic number, so it is only sniffed after every other format.
type tgaExtractor struct{}

func (tgaExtractor) Name() string         { return "tga" }
func (tgaExtractor) MimeTypes() []string  { return []string{"image/x-tga", "image/x-targa"} }
func (tgaExtractor) Extensions() []string { return []string{"tga", "tpic"} }

func (tgaExtractor) weakMatch() {}

func (tgaExtractor) Match(head []byte) bool {
	if len(head) < tgaHeaderSize {
		return false
	}
	if head[1] > 1 {
		return false
	}
	if _, ok := tgaColorModes[head[2]]; !ok {
		return false
	}
	switch head[16] {
	case 8, 15, 16, 24, 32:
		return true
	}
	return false
}

func (tgaExtractor) Extract(ctx context.Context, src Source, info *metainfo.Info) error {
	le := binary.LittleEndian
	c := newCursor(src)

	c.Skip(2) // id length and colour map type
	imageType := c.U8()
	if c.Err() != nil {
		return metaerrors.NewFormatError("tga", "missing header")
	}
	if imageType == 0 {
		return metaerrors.NewFormatError("tga", "no image data")
	}
	c.Skip(5 + 4) // colour map fields, x and y origin
	width := int(c.U16(le))
	height := int(c.U16(le))
	depth := int(c.U8())
	if err := c.Err(); err != nil {
		return err
	}

	tech := info.Group(metainfo.GroupTechnical)
	tech.Append("Resolution", metainfo.Size{Width: width, Height: height})
	tech.Append("Bitdepth", depth)
	if mode, ok := tgaColorModes[imageType]; ok {
		tech.Append("Color mode", mode)
	} else {
		tech.Append("Color mode", "Unknown")
	}
	if comp, ok := tgaCompressions[imageType]; ok {
		tech.Append("Compression", comp)
	} else {
		tech.Append("Compression", "Unknown")
	}
	return nil
}
