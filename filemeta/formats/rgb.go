package formats

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/text/encoding/charmap"

	"github.com/flaneur2020/filemeta/filemeta/chunk"
	metaerrors "github.com/flaneur2020/filemeta/filemeta/errors"
	"github.com/flaneur2020/filemeta/filemeta/metainfo"
)

const (
	rgbMagic      = 474
	rgbHeaderSize = 512

	// the image name field holds at most 79 bytes and a NUL
	rgbNameOffset = 24
	rgbNameField  = 80
	rgbNameMax    = rgbNameField - 1
)

var rgbColorModes = map[uint16]string{
	1: "Grayscale",
	2: "Grayscale/Alpha",
	3: "RGB",
	4: "RGB/Alpha",
}

type rgbExtractor struct{}

func (rgbExtractor) Name() string         { return "rgb" }
func (rgbExtractor) MimeTypes() []string  { return []string{"image/x-rgb", "image/sgi"} }
func (rgbExtractor) Extensions() []string { return []string{"rgb", "rgba", "bw", "sgi", "int", "inta"} }

func (rgbExtractor) Match(head []byte) bool {
	return len(head) >= 2 && binary.BigEndian.Uint16(head) == rgbMagic
}

func (rgbExtractor) Extract(ctx context.Context, src Source, info *metainfo.Info) error {
	be := binary.BigEndian
	c := newCursor(src)

	if m := c.U16(be); c.Err() != nil || m != rgbMagic {
		return errBadMagic("rgb")
	}
	storage := c.U8()
	bpc := int(c.U8())
	dimension := c.U16(be)
	xSize := int(c.U16(be))
	ySize := int(c.U16(be))
	zSize := c.U16(be)
	c.Skip(12) // pixmin, pixmax and a dummy word
	name := rgbImageName(c.Bytes(rgbNameField))
	c.SeekTo(rgbHeaderSize)
	if err := c.Err(); err != nil {
		return err
	}

	if dimension == 1 {
		ySize = 1
	}

	tech := info.Group(metainfo.GroupTechnical)
	tech.Append("Dimensions", metainfo.Size{Width: xSize, Height: ySize})
	tech.Append("BitDepth", int(zSize)*8*bpc)
	if mode, ok := rgbColorModes[zSize]; ok {
		tech.Append("ColorMode", mode)
	}

	switch storage {
	case 0:
		tech.Append("Compression", "Uncompressed")
	case 1:
		verbatim := int64(xSize) * int64(ySize) * int64(zSize)
		if verbatim > 0 {
			ratio := float64(src.Size()-rgbHeaderSize) * 100 / float64(verbatim)
			tech.Append("Compression", fmt.Sprintf("Runlength Encoded, %.1f%%", ratio))
		} else {
			tech.Append("Compression", "Runlength Encoded")
		}
		shared, err := rgbSharedRows(c, ySize*int(zSize))
		if err != nil {
			return err
		}
		tech.Append("SharedRows", shared)
	default:
		tech.Append("Compression", "Unknown")
	}

	info.Group(metainfo.GroupComment).Append("ImageName", latin1([]byte(name)))
	return nil
}

func rgbImageName(field []byte) string {
	if len(field) > rgbNameMax {
		field = field[:rgbNameMax]
	}
	return cstring(field)
}

// WriteComment stores comment as the Latin-1 image name, cut to the width of
// the header field. The rest of the file is copied unchanged.
func (rgbExtractor) WriteComment(ctx context.Context, src Source, w io.Writer, comment string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	head, err := readHeader(src, "rgb", rgbHeaderSize)
	if err != nil {
		return err
	}
	if binary.BigEndian.Uint16(head) != rgbMagic {
		return errBadMagic("rgb")
	}
	name, err := charmap.ISO8859_1.NewEncoder().String(comment)
	if err != nil {
		return fmt.Errorf("rgb: image name %q is not Latin-1: %w", comment, err)
	}
	if len(name) > rgbNameMax {
		name = name[:rgbNameMax]
	}
	field := head[rgbNameOffset : rgbNameOffset+rgbNameField]
	clear(field)
	copy(field, name)

	if _, err := w.Write(head); err != nil {
		return metaerrors.NewIOError(0, err)
	}
	return copyRange(w, src, rgbHeaderSize, src.Size()-rgbHeaderSize)
}

// rgbSharedRows reports the share of RLE rows whose start offset repeats an
// earlier row.
func rgbSharedRows(c *chunk.Cursor, rows int) (string, error) {
	if rows == 0 {
		return "None", nil
	}
	if want := int64(rows) * 4; c.Remaining() < want {
		return "", metaerrors.NewTruncatedError(c.Pos(), want, c.Remaining())
	}
	seen := make(map[uint32]struct{}, rows)
	dup := 0
	for i := 0; i < rows; i++ {
		off := c.U32(binary.BigEndian)
		if _, ok := seen[off]; ok {
			dup++
			continue
		}
		seen[off] = struct{}{}
	}
	if err := c.Err(); err != nil {
		return "", err
	}
	if dup == 0 {
		return "None", nil
	}
	return fmt.Sprintf("%.1f%%", float64(dup)*100/float64(rows)), nil
}
