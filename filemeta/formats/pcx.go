package formats

import (
	"context"
	"encoding/binary"

	metaerrors "github.com/flaneur2020/filemeta/filemeta/errors"
	"github.com/flaneur2020/filemeta/filemeta/metainfo"
)

const (
	pcxManufacturer = 10
	pcxRLE          = 1
)

type pcxExtractor struct{}

func (pcxExtractor) Name() string         { return "pcx" }
func (pcxExtractor) MimeTypes() []string  { return []string{"image/x-pcx", "image/vnd.zbrush.pcx"} }
func (pcxExtractor) Extensions() []string { return []string{"pcx"} }

func (pcxExtractor) Match(head []byte) bool {
	return len(head) >= 4 && head[0] == pcxManufacturer && head[1] <= 5 && head[2] <= pcxRLE
}

func (pcxExtractor) Extract(ctx context.Context, src Source, info *metainfo.Info) error {
	le := binary.LittleEndian
	c := newCursor(src)

	if m := c.U8(); c.Err() != nil || m != pcxManufacturer {
		return metaerrors.NewFormatError("pcx", "bad manufacturer byte")
	}
	c.Skip(1) // version
	encoding := c.U8()
	bpp := int(c.U8())
	xMin := int(c.U16(le))
	yMin := int(c.U16(le))
	xMax := int(c.U16(le))
	yMax := int(c.U16(le))
	hDpi := int(c.U16(le))
	vDpi := int(c.U16(le))
	c.Skip(48 + 1) // palette and reserved
	planes := int(c.U8())
	if err := c.Err(); err != nil {
		return err
	}

	general := info.Group(metainfo.GroupGeneral)
	general.Append("Dimensions", metainfo.Size{Width: xMax - xMin + 1, Height: yMax - yMin + 1})
	general.Append("BitDepth", bpp*planes)
	general.Append("Resolution", metainfo.Size{Width: hDpi, Height: vDpi})
	if encoding == pcxRLE {
		general.Append("Compression", "Yes (RLE)")
	} else {
		general.Append("Compression", "None")
	}
	return nil
}
