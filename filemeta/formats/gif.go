package formats

import (
	"context"
	"encoding/binary"

	"github.com/flaneur2020/filemeta/filemeta/chunk"
	"github.com/flaneur2020/filemeta/filemeta/metainfo"
)

type gifExtractor struct{}

func (gifExtractor) Name() string         { return "gif" }
func (gifExtractor) MimeTypes() []string  { return []string{"image/gif"} }
func (gifExtractor) Extensions() []string { return []string{"gif"} }

func (gifExtractor) Match(head []byte) bool {
	return hasAnyPrefix(head, "GIF87a", "GIF89a")
}

func (gifExtractor) Extract(ctx context.Context, src Source, info *metainfo.Info) error {
	s, err := chunk.NewScanner(src, src.Size(), chunk.GIF)
	if err != nil {
		return err
	}

	head, err := readHeader(src, "gif", 13)
	if err != nil {
		return err
	}
	width := binary.LittleEndian.Uint16(head[6:8])
	height := binary.LittleEndian.Uint16(head[8:10])
	packed := head[10]

	general := info.Group(metainfo.GroupGeneral)
	switch string(head[:6]) {
	case "GIF89a":
		general.Append("Version", "GIF Version 89a")
	case "GIF87a":
		general.Append("Version", "GIF Version 87a")
	}
	general.Append("Dimensions", metainfo.Size{Width: int(width), Height: int(height)})
	general.Append("BitDepth", int(packed&0x07)+1)
	general.Append("ColorResolution", int((packed&0x70)>>4)+1)

	comments := info.Group(metainfo.GroupComment)
	frames := 0
	err = s.Walk(func(c chunk.Chunk) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch c.Tag {
		case chunk.GIFImage:
			frames++
		case chunk.GIFComment:
			comments.Append("Comment", latin1(c.Payload))
		}
		return nil
	})
	general.Append("Frames", frames)
	return err
}
