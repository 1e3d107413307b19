package formats

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/flaneur2020/filemeta/filemeta/chunk"
	metaerrors "github.com/flaneur2020/filemeta/filemeta/errors"
	"github.com/flaneur2020/filemeta/filemeta/metainfo"
)

const (
	dviPre     = 247
	dviPost    = 248
	dviID      = 2
	dviPadding = 223

	// dviTailWindow holds the post_post pointer, the id byte and 4 to 7 padding bytes.
	dviTailWindow = 13
	// dviPagesOffset is the offset of the page count within the postamble.
	dviPagesOffset = 27
)

type dviExtractor struct{}

func (dviExtractor) Name() string         { return "dvi" }
func (dviExtractor) MimeTypes() []string  { return []string{"application/x-dvi"} }
func (dviExtractor) Extensions() []string { return []string{"dvi"} }

func (dviExtractor) Match(head []byte) bool {
	return len(head) >= 2 && head[0] == dviPre && head[1] == dviID
}

func (dviExtractor) Extract(ctx context.Context, src Source, info *metainfo.Info) error {
	c := newCursor(src)
	if pre, id := c.U8(), c.U8(); c.Err() != nil || pre != dviPre || id != dviID {
		return metaerrors.NewFormatError("dvi", "bad preamble")
	}
	// numerator, denominator and magnification
	c.Skip(12)
	n := int(c.U8())
	comment := latin1(c.Bytes(n))
	if err := c.Err(); err != nil {
		return err
	}

	general := info.Group(metainfo.GroupGeneral)
	general.Append("Type", "TeX Device Independent file")
	general.Append("Comment", simplify(comment))

	tail, err := chunk.LocateTail(src, src.Size(), dviTailWindow, dviPadding)
	if err != nil {
		return err
	}
	i := tail.Index
	if i < 5 || i > 8 || tail.Data[i] != dviID {
		return metaerrors.NewFormatError("dvi", "bad postamble trailer")
	}
	ptr := int64(binary.BigEndian.Uint32(tail.Data[i-4 : i]))

	c.SeekTo(ptr)
	if op := c.U8(); c.Err() == nil && op != dviPost {
		return metaerrors.NewFormatError("dvi", fmt.Sprintf("no postamble at offset %d", ptr))
	}
	c.SeekTo(ptr + dviPagesOffset)
	pages := c.U16(binary.BigEndian)
	if err := c.Err(); err != nil {
		return err
	}
	general.Append("Pages", int(pages))
	general.Append("Modified", src.ModTime().Format("2006-01-02 15:04"))
	return nil
}
