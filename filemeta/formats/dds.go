package formats

import (
	"context"
	"encoding/binary"

	metaerrors "github.com/flaneur2020/filemeta/filemeta/errors"
	"github.com/flaneur2020/filemeta/filemeta/metainfo"
)

const (
	ddsHeaderSize      = 124
	ddsPixelFormatSize = 32

	ddsdHeight      = 0x2
	ddsdWidth       = 0x4
	ddsdPixelFormat = 0x1000

	ddsCapsTexture  = 0x1000
	ddsCaps2Cubemap = 0x200
	ddsCaps2Volume  = 0x200000

	ddpfAlphaPixels = 0x1
	ddpfFourCC      = 0x4
	ddpfRGB         = 0x40
)

type ddsFourCC struct {
	bitDepth  int
	colorMode string
}

var ddsFourCCs = map[string]ddsFourCC{
	"DXT1": {4, "RGB"},
	"DXT2": {16, "RGB/Alpha"},
	"DXT3": {16, "RGB/Alpha"},
	"DXT4": {16, "RGB/Alpha"},
	"DXT5": {16, "RGB/Alpha"},
	"RXGB": {16, "RGB"},
}

type ddsExtractor struct{}

func (ddsExtractor) Name() string         { return "dds" }
func (ddsExtractor) MimeTypes() []string  { return []string{"image/x-dds"} }
func (ddsExtractor) Extensions() []string { return []string{"dds"} }

func (ddsExtractor) Match(head []byte) bool {
	return hasAnyPrefix(head, "DDS ")
}

func (ddsExtractor) Extract(ctx context.Context, src Source, info *metainfo.Info) error {
	le := binary.LittleEndian
	c := newCursor(src)
	if err := expectPrefix(c, "dds", "DDS "); err != nil {
		return err
	}

	size := c.U32(le)
	flags := c.U32(le)
	height := c.U32(le)
	width := c.U32(le)
	c.Skip(4) // pitch
	depth := c.U32(le)
	mipmaps := c.U32(le)
	c.Skip(11 * 4)

	pfSize := c.U32(le)
	pfFlags := c.U32(le)
	fourCC := string(c.Bytes(4))
	bitCount := c.U32(le)
	c.Skip(4 * 4) // channel masks

	caps1 := c.U32(le)
	caps2 := c.U32(le)
	if err := c.Err(); err != nil {
		return err
	}

	const required = ddsdWidth | ddsdHeight | ddsdPixelFormat
	switch {
	case size != ddsHeaderSize:
		return metaerrors.NewFormatError("dds", "bad header size")
	case flags&required != required:
		return metaerrors.NewFormatError("dds", "missing required header flags")
	case pfSize != ddsPixelFormatSize:
		return metaerrors.NewFormatError("dds", "bad pixel format size")
	case caps1&ddsCapsTexture == 0:
		return metaerrors.NewFormatError("dds", "not a texture")
	}

	tech := info.Group(metainfo.GroupTechnical)
	tech.Append("Dimensions", metainfo.Size{Width: int(width), Height: int(height)})
	tech.Append("MipmapCount", int(mipmaps))

	switch {
	case caps2&ddsCaps2Cubemap != 0:
		tech.Append("Type", "Cube Map Texture")
	case caps2&ddsCaps2Volume != 0:
		tech.Append("Type", "Volume Texture")
		tech.Append("Depth", int(depth))
	default:
		tech.Append("Type", "2D Texture")
	}

	switch {
	case pfFlags&ddpfRGB != 0:
		tech.Append("BitDepth", int(bitCount))
		tech.Append("Compression", "Uncompressed")
		if pfFlags&ddpfAlphaPixels != 0 {
			tech.Append("ColorMode", "RGB/Alpha")
		} else {
			tech.Append("ColorMode", "RGB")
		}
	case pfFlags&ddpfFourCC != 0:
		if f, ok := ddsFourCCs[fourCC]; ok {
			tech.Append("BitDepth", f.bitDepth)
			tech.Append("Compression", fourCC)
			tech.Append("ColorMode", f.colorMode)
		} else {
			tech.Append("Compression", "Unknown")
		}
	default:
		tech.Append("Compression", "Unknown")
	}
	return nil
}
