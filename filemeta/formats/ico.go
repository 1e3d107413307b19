package formats

import (
	"context"
	"encoding/binary"

	metaerrors "github.com/flaneur2020/filemeta/filemeta/errors"
	"github.com/flaneur2020/filemeta/filemeta/metainfo"
)

const (
	icoTypeIcon   = 1
	icoTypeCursor = 2
)

type icoExtractor struct{}

func (icoExtractor) Name() string { return "ico" }
func (icoExtractor) MimeTypes() []string {
	return []string{"image/vnd.microsoft.icon", "image/x-ico"}
}
func (icoExtractor) Extensions() []string { return []string{"ico", "cur"} }

func (icoExtractor) Match(head []byte) bool {
	if len(head) < 6 {
		return false
	}
	le := binary.LittleEndian
	typ := le.Uint16(head[2:4])
	return le.Uint16(head[0:2]) == 0 && (typ == icoTypeIcon || typ == icoTypeCursor) && le.Uint16(head[4:6]) > 0
}

func (icoExtractor) Extract(ctx context.Context, src Source, info *metainfo.Info) error {
	le := binary.LittleEndian
	c := newCursor(src)

	reserved := c.U16(le)
	typ := c.U16(le)
	count := c.U16(le)
	if c.Err() != nil {
		return metaerrors.NewFormatError("ico", "missing header")
	}
	if reserved != 0 || (typ != icoTypeIcon && typ != icoTypeCursor) {
		return metaerrors.NewFormatError("ico", "bad header")
	}
	if count < 1 {
		return metaerrors.NewFormatError("ico", "no images")
	}

	width := int(c.U8())
	height := int(c.U8())
	colorCount := int(c.U8())
	c.Skip(1 + 2) // reserved and planes
	bitCount := c.U16(le)
	if err := c.Err(); err != nil {
		return err
	}
	if width == 0 {
		width = 256
	}
	if height == 0 {
		height = 256
	}

	dimensionsKey, colorsKey := "Dimensions", "Colors"
	if count > 1 {
		dimensionsKey, colorsKey = "Dimensions (1st icon)", "Colors (1st icon)"
	}

	tech := info.Group(metainfo.GroupTechnical)
	tech.Append("Number", int(count))
	tech.Append(dimensionsKey, metainfo.Size{Width: width, Height: height})
	switch {
	case colorCount > 0:
		tech.Append(colorsKey, colorCount)
	case bitCount > 0 && bitCount < 32:
		tech.Append(colorsKey, 1<<bitCount)
	}
	return nil
}
