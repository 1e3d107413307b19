package formats

import (
	"bufio"
	"context"
	"io"
	"math/bits"
	"strconv"
	"strings"

	metaerrors "github.com/flaneur2020/filemeta/filemeta/errors"
	"github.com/flaneur2020/filemeta/filemeta/metainfo"
)

var pnmTypes = [...]string{"bitmap", "graymap", "pixmap"}
var pnmFormats = [...]string{"plain", "raw"}

type pnmExtractor struct{}

func (pnmExtractor) Name() string { return "pnm" }
func (pnmExtractor) MimeTypes() []string {
	return []string{
		"image/x-portable-bitmap",
		"image/x-portable-graymap",
		"image/x-portable-pixmap",
		"image/x-portable-arbitrarymap",
	}
}
func (pnmExtractor) Extensions() []string { return []string{"pbm", "pgm", "ppm", "pnm", "pam"} }

func (pnmExtractor) Match(head []byte) bool {
	if len(head) < 3 || head[0] != 'P' || head[1] < '1' || head[1] > '7' {
		return false
	}
	return isPNMSpace(head[2]) || head[2] == '#'
}

func (pnmExtractor) Extract(ctx context.Context, src Source, info *metainfo.Info) error {
	head, err := readHeader(src, "pnm", 2)
	if err != nil {
		return err
	}
	if head[0] != 'P' || head[1] < '1' || head[1] > '7' {
		return errBadMagic("pnm")
	}
	n := int(head[1] - '0')

	r := &pnmReader{r: bufio.NewReader(io.NewSectionReader(src, 2, min(src.Size(), maxTextHeader)-2))}
	general := info.Group(metainfo.GroupGeneral)
	if n == 7 {
		return r.readPAM(general)
	}

	typ := (n - 1) % 3
	general.Append("Format", pnmFormats[(n-1)/3])
	general.Append("Type", pnmTypes[typ])

	width, err := r.number()
	if err != nil {
		return err
	}
	height, err := r.number()
	if err != nil {
		return err
	}
	bpp := 1
	if typ != 0 {
		maxVal, err := r.number()
		if err != nil {
			return err
		}
		bpp = bits.Len(uint(maxVal))
		if typ == 2 {
			bpp *= 3
		}
	}

	general.Append("Dimensions", metainfo.Size{Width: width, Height: height})
	r.appendComments(general)
	general.Append("BitDepth", bpp)
	return nil
}

func isPNMSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

// pnmReader tokenizes a netpbm header, collecting comments on the way.
type pnmReader struct {
	r        *bufio.Reader
	comments []string
}

func (p *pnmReader) token() (string, error) {
	for {
		b, err := p.r.ReadByte()
		if err != nil {
			return "", pnmTruncated()
		}
		if b == '#' {
			line, _ := p.r.ReadString('\n')
			p.comments = append(p.comments, strings.TrimSpace(line))
			continue
		}
		if !isPNMSpace(b) {
			_ = p.r.UnreadByte()
			break
		}
	}

	var sb strings.Builder
	for {
		b, err := p.r.ReadByte()
		if err != nil {
			break
		}
		if isPNMSpace(b) || b == '#' {
			_ = p.r.UnreadByte()
			break
		}
		sb.WriteByte(b)
	}
	return sb.String(), nil
}

func (p *pnmReader) number() (int, error) {
	tok, err := p.token()
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(tok)
	if err != nil || v < 0 {
		return 0, metaerrors.NewFormatError("pnm", "bad number "+strconv.Quote(tok))
	}
	return v, nil
}

func (p *pnmReader) line() (string, error) {
	line, err := p.r.ReadString('\n')
	if err != nil && line == "" {
		return "", pnmTruncated()
	}
	return strings.TrimSpace(line), nil
}

// readPAM reads the keyword header of a P7 arbitrary map.
func (p *pnmReader) readPAM(g *metainfo.Group) error {
	var width, height, depth, maxVal int
	tuple := ""
	for {
		line, err := p.line()
		if err != nil {
			return err
		}
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			p.comments = append(p.comments, strings.TrimSpace(line[1:]))
			continue
		}
		key, value, _ := strings.Cut(line, " ")
		value = strings.TrimSpace(value)
		if key == "ENDHDR" {
			break
		}
		var dst *int
		switch key {
		case "WIDTH":
			dst = &width
		case "HEIGHT":
			dst = &height
		case "DEPTH":
			dst = &depth
		case "MAXVAL":
			dst = &maxVal
		case "TUPLTYPE":
			tuple = strings.TrimSpace(tuple + " " + value)
			continue
		default:
			continue
		}
		v, err := strconv.Atoi(value)
		if err != nil || v < 0 {
			return metaerrors.NewFormatError("pnm", "bad "+key+" value")
		}
		*dst = v
	}

	g.Append("Format", "raw")
	if tuple != "" {
		g.Append("Type", tuple)
	}
	g.Append("Dimensions", metainfo.Size{Width: width, Height: height})
	p.appendComments(g)
	g.Append("BitDepth", bits.Len(uint(maxVal))*depth)
	return nil
}

func (p *pnmReader) appendComments(g *metainfo.Group) {
	c := strings.TrimSpace(strings.Join(p.comments, "\n"))
	if c != "" {
		g.Append("Comment", c)
	}
}

func pnmTruncated() error {
	return metaerrors.ErrTruncated.
		WithMessage("header ends early").
		WithDetail("format", "pnm")
}
