package formats

import (
	"bytes"
	"context"
	"encoding/binary"
	"image/jpeg"
	"io"
	"strings"

	"github.com/rwcarlsen/goexif/exif"

	metaerrors "github.com/flaneur2020/filemeta/filemeta/errors"
	"github.com/flaneur2020/filemeta/filemeta/logger"
	"github.com/flaneur2020/filemeta/filemeta/metainfo"
)

const rafMagic = "FUJIFILMCCD-RAW "

// rafJPEGPointer is the offset of the embedded JPEG offset and length in a RAF header.
const rafJPEGPointer = 84

// rawTIFFVariants are raw headers that keep the TIFF layout behind a vendor magic.
var rawTIFFVariants = []string{
	"IIRO",    // Olympus ORF
	"IIRS",    // Olympus ORF
	"MMOR",    // Olympus ORF
	"IIU\x00", // Panasonic RW2
}

type rawExtractor struct{}

func (rawExtractor) Name() string        { return "raw" }
func (rawExtractor) MimeTypes() []string { return []string{"image/x-dcraw"} }
func (rawExtractor) Extensions() []string {
	return []string{"cr2", "crw", "nef", "nrw", "dng", "arw", "srf", "sr2", "pef", "orf", "rw2", "raf", "erf", "mrw", "kdc", "dcr"}
}

func (rawExtractor) Match(head []byte) bool {
	// TIFF based raws without a vendor magic are claimed by extension only,
	// since a plain TIFF is sniffed first.
	return isTIFF(head) || hasAnyPrefix(head, rafMagic) || hasAnyPrefix(head, rawTIFFVariants...)
}

func (rawExtractor) Extract(ctx context.Context, src Source, info *metainfo.Info) error {
	head, err := readHeader(src, "raw", 4)
	if err != nil {
		return err
	}

	var r io.Reader
	switch {
	case isTIFF(head):
		r = io.NewSectionReader(src, 0, src.Size())
	case hasAnyPrefix(head, rawTIFFVariants...):
		// goexif only accepts the plain TIFF magic
		magic := "II*\x00"
		if head[0] == 'M' {
			magic = "MM\x00*"
		}
		r = io.MultiReader(strings.NewReader(magic), io.NewSectionReader(src, 4, src.Size()-4))
	case bytes.HasPrefix(head, []byte(rafMagic[:4])):
		r, err = rafPreview(src)
		if err != nil {
			return err
		}
	default:
		return errBadMagic("raw")
	}

	x, err := decodeExifReader(r, src.Name(), "raw")
	if err != nil {
		return err
	}

	camera := info.Group(metainfo.GroupCamera)
	if s, ok := exifString(x, exif.Make); ok {
		camera.Append("Manufacturer", s)
	}
	if s, ok := exifString(x, exif.Model); ok {
		camera.Append("Model", s)
	}
	if s, ok := exifDateTime(x); ok {
		camera.Append("Date/Time", s)
	}

	if thumb, err := x.JpegThumbnail(); err == nil {
		if cfg, err := jpeg.DecodeConfig(bytes.NewReader(thumb)); err == nil {
			info.Group(metainfo.GroupThumbnail).Append("Dimensions", metainfo.Size{Width: cfg.Width, Height: cfg.Height})
		} else {
			logger.Debug("raw: undecodable thumbnail in %s: %v", src.Name(), err)
		}
	}
	return ctx.Err()
}

// rafPreview returns the embedded JPEG of a Fujifilm RAF file, which carries the EXIF block.
func rafPreview(src Source) (io.Reader, error) {
	c := newCursor(src)
	if err := expectPrefix(c, "raw", rafMagic); err != nil {
		return nil, err
	}
	c.SeekTo(rafJPEGPointer)
	off := int64(c.U32(binary.BigEndian))
	n := int64(c.U32(binary.BigEndian))
	if err := c.Err(); err != nil {
		return nil, err
	}
	if off+n > src.Size() {
		return nil, metaerrors.NewTruncatedError(off, n, src.Size()-off)
	}
	return io.NewSectionReader(src, off, n), nil
}
