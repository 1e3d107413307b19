package formats

import (
	"bufio"
	"bytes"
	"context"
	"strconv"
	"strings"

	metaerrors "github.com/flaneur2020/filemeta/filemeta/errors"
	"github.com/flaneur2020/filemeta/filemeta/metainfo"
)

type xbmExtractor struct{}

func (xbmExtractor) Name() string         { return "xbm" }
func (xbmExtractor) MimeTypes() []string  { return []string{"image/x-xbitmap"} }
func (xbmExtractor) Extensions() []string { return []string{"xbm"} }

func (xbmExtractor) Match(head []byte) bool {
	return hasAnyPrefix(head, "#define ")
}

func (xbmExtractor) Extract(ctx context.Context, src Source, info *metainfo.Info) error {
	head, err := readTextHeader(src)
	if err != nil {
		return err
	}
	if !hasAnyPrefix(head, "#define ") {
		return metaerrors.NewFormatError("xbm", "missing #define")
	}

	width, height := -1, -1
	sc := bufio.NewScanner(bytes.NewReader(head))
	for sc.Scan() && (width < 0 || height < 0) {
		name, v, ok := xbmDefine(sc.Text())
		if !ok {
			continue
		}
		switch {
		case strings.HasSuffix(name, "_width"):
			width = v
		case strings.HasSuffix(name, "_height"):
			height = v
		}
	}
	if width <= 0 || height <= 0 {
		return metaerrors.NewFormatError("xbm", "missing width or height")
	}
	info.Group(metainfo.GroupTechnical).Append("Dimensions", metainfo.Size{Width: width, Height: height})
	return nil
}

// xbmDefine parses "#define name value".
func xbmDefine(line string) (string, int, bool) {
	f := strings.Fields(line)
	if len(f) != 3 || f[0] != "#define" {
		return "", 0, false
	}
	v, err := strconv.Atoi(f[2])
	if err != nil {
		return "", 0, false
	}
	return f[1], v, true
}
