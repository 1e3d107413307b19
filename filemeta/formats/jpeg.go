package formats

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/flaneur2020/filemeta/filemeta/chunk"
	metaerrors "github.com/flaneur2020/filemeta/filemeta/errors"
	"github.com/flaneur2020/filemeta/filemeta/logger"
	"github.com/flaneur2020/filemeta/filemeta/metainfo"
)

var jpegProcesses = map[byte]string{
	0xc0: "Baseline",
	0xc1: "Extended sequential",
	0xc2: "Progressive",
	0xc3: "Lossless",
	0xc5: "Differential sequential",
	0xc6: "Differential progressive",
	0xc7: "Differential lossless",
	0xc9: "Extended sequential, arithmetic coding",
	0xca: "Progressive, arithmetic coding",
	0xcb: "Lossless, arithmetic coding",
	0xcd: "Differential sequential, arithmetic coding",
	0xce: "Differential progressive, arithmetic coding",
	0xcf: "Differential lossless, arithmetic coding",
}

// jpegMaxComment is the largest COM payload a 16-bit segment length can hold.
const jpegMaxComment = 0xffff - 2

type jpegExtractor struct{}

func (jpegExtractor) Name() string         { return "jpeg" }
func (jpegExtractor) MimeTypes() []string  { return []string{"image/jpeg"} }
func (jpegExtractor) Extensions() []string { return []string{"jpg", "jpeg", "jpe", "jfif"} }

func (jpegExtractor) Match(head []byte) bool {
	return len(head) >= 3 && head[0] == 0xff && head[1] == 0xd8 && head[2] == 0xff
}

func (jpegExtractor) Extract(ctx context.Context, src Source, info *metainfo.Info) error {
	s, err := chunk.NewScanner(src, src.Size(), chunk.JPEG)
	if err != nil {
		return err
	}

	general := info.Group(metainfo.GroupGeneral)
	sawFrame := false
	err = s.Walk(func(c chunk.Chunk) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		m := c.Marker()
		switch {
		case c.Tag == chunk.JPEGComment:
			general.Append("Comment", jpegComment(c.Payload))
		case chunk.IsSOF(m) && !sawFrame:
			if len(c.Payload) < 6 {
				return metaerrors.NewFormatError("jpeg", fmt.Sprintf("frame header at offset %d too short", c.Offset))
			}
			sawFrame = true
			height := binary.BigEndian.Uint16(c.Payload[1:3])
			width := binary.BigEndian.Uint16(c.Payload[3:5])
			general.Append("Resolution", metainfo.Size{Width: int(width), Height: int(height)})
			if c.Payload[5] >= 3 {
				general.Append("Color/bw", "Color")
			} else {
				general.Append("Color/bw", "Black and white")
			}
			general.Append("JPEG Process", jpegProcesses[m])
		}
		return nil
	})
	if err != nil {
		return err
	}

	x, err := decodeExif(src, "jpeg")
	if err != nil {
		logger.Debug("jpeg: %s has no exif: %v", src.Name(), err)
		return nil
	}
	appendCameraExif(x, info.Group(metainfo.GroupCamera))
	return nil
}

// jpegComment decodes a COM segment, which is UTF-8 by convention and Latin-1 otherwise.
func jpegComment(p []byte) string {
	p = []byte(cstring(p))
	if utf8.Valid(p) {
		return string(p)
	}
	return latin1(p)
}

// WriteComment rewrites the segments before the first frame header without
// their COM segments and puts a single COM holding comment right before the
// frame. Everything from the frame header on is copied unchanged.
func (jpegExtractor) WriteComment(ctx context.Context, src Source, w io.Writer, comment string) error {
	if len(comment) > jpegMaxComment {
		return fmt.Errorf("jpeg: comment of %d bytes does not fit in a COM segment (max %d)", len(comment), jpegMaxComment)
	}
	s, err := chunk.NewScanner(src, src.Size(), chunk.JPEG)
	if err != nil {
		return err
	}
	if err := copyRange(w, src, 0, s.Start()); err != nil {
		return err
	}

	for s.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		c := s.Chunk()
		if c.Tag == chunk.JPEGComment {
			continue
		}
		if chunk.IsSOF(c.Marker()) {
			return jpegWriteTail(w, src, c.Offset, comment)
		}
		if err := copyRange(w, src, c.Offset, c.End()-c.Offset); err != nil {
			return err
		}
	}
	if err := s.Err(); err != nil {
		return err
	}
	if t, ok := s.Terminal(); ok && t.Tag == chunk.JPEGEOI {
		return jpegWriteTail(w, src, t.Offset, comment)
	}
	return metaerrors.NewFormatError("jpeg", "no frame header before scan data")
}

// jpegWriteTail writes the COM segment, if any, followed by src from off to the end.
func jpegWriteTail(w io.Writer, src Source, off int64, comment string) error {
	if comment != "" {
		seg := make([]byte, 4, 4+len(comment))
		seg[0], seg[1] = 0xff, chunk.JPEGComment[0]
		binary.BigEndian.PutUint16(seg[2:], uint16(len(comment)+2))
		if _, err := w.Write(append(seg, comment...)); err != nil {
			return metaerrors.NewIOError(off, err)
		}
	}
	return copyRange(w, src, off, src.Size()-off)
}
