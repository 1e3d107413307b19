package formats

import (
	"bytes"
	"context"
	"math/bits"
	"strconv"
	"strings"

	metaerrors "github.com/flaneur2020/filemeta/filemeta/errors"
	"github.com/flaneur2020/filemeta/filemeta/metainfo"
)

const xpmMagic = "/* XPM */"

type xpmExtractor struct{}

func (xpmExtractor) Name() string         { return "xpm" }
func (xpmExtractor) MimeTypes() []string  { return []string{"image/x-xpixmap"} }
func (xpmExtractor) Extensions() []string { return []string{"xpm"} }

func (xpmExtractor) Match(head []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(head, " \t\r\n"), []byte(xpmMagic))
}

func (e xpmExtractor) Extract(ctx context.Context, src Source, info *metainfo.Info) error {
	head, err := readTextHeader(src)
	if err != nil {
		return err
	}
	if !e.Match(head) {
		return metaerrors.NewFormatError("xpm", "missing XPM comment")
	}

	// the values string is the first string literal
	start := bytes.IndexByte(head, '"')
	if start < 0 {
		return xpmTruncated()
	}
	end := bytes.IndexByte(head[start+1:], '"')
	if end < 0 {
		return xpmTruncated()
	}
	values := strings.Fields(string(head[start+1 : start+1+end]))
	if len(values) < 4 {
		return metaerrors.NewFormatError("xpm", "short values string")
	}
	var v [4]int
	for i := range v {
		n, err := strconv.Atoi(values[i])
		if err != nil || n < 0 {
			return metaerrors.NewFormatError("xpm", "bad values string")
		}
		v[i] = n
	}
	width, height, colors := v[0], v[1], v[2]

	depth := bits.Len(uint(colors - 1))
	if colors <= 1 {
		depth = 1
	}

	tech := info.Group(metainfo.GroupTechnical)
	tech.Append("Dimension", metainfo.Size{Width: width, Height: height})
	tech.Append("Colors", colors)
	tech.Append("BitDepth", depth)
	return nil
}

func xpmTruncated() error {
	return metaerrors.ErrTruncated.
		WithMessage("values string ends early").
		WithDetail("format", "xpm")
}
