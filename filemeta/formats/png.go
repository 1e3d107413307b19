package formats

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/flaneur2020/filemeta/filemeta/chunk"
	metaerrors "github.com/flaneur2020/filemeta/filemeta/errors"
	"github.com/flaneur2020/filemeta/filemeta/logger"
	"github.com/flaneur2020/filemeta/filemeta/metainfo"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// maxInflatedText bounds decompressed zTXt and iTXt text.
const maxInflatedText = 1 << 20

var pngColorModes = map[byte]string{
	0: "Grayscale",
	2: "RGB",
	3: "Palette",
	4: "Grayscale/Alpha",
	6: "RGB/Alpha",
}

// pngChannels is the number of samples per pixel for each colour type.
var pngChannels = map[byte]int{0: 1, 2: 3, 3: 1, 4: 2, 6: 4}

type pngExtractor struct{}

func (pngExtractor) Name() string         { return "png" }
func (pngExtractor) MimeTypes() []string  { return []string{"image/png"} }
func (pngExtractor) Extensions() []string { return []string{"png"} }

func (pngExtractor) Match(head []byte) bool {
	return bytes.HasPrefix(head, pngMagic)
}

func (pngExtractor) Extract(ctx context.Context, src Source, info *metainfo.Info) error {
	s, err := chunk.NewScanner(src, src.Size(), chunk.PNG)
	if err != nil {
		return err
	}

	if !s.Scan() {
		if err := s.Err(); err != nil {
			return err
		}
		return metaerrors.NewFormatError("png", "missing IHDR chunk")
	}
	ihdr := s.Chunk()
	if ihdr.Tag != "IHDR" {
		return metaerrors.NewFormatError("png", fmt.Sprintf("first chunk is %q, want IHDR", ihdr.Tag))
	}
	if len(ihdr.Payload) < 13 {
		return metaerrors.NewFormatError("png", "IHDR shorter than 13 bytes")
	}

	p := ihdr.Payload
	width := binary.BigEndian.Uint32(p[0:4])
	height := binary.BigEndian.Uint32(p[4:8])
	depth, colorType, compression, interlace := p[8], p[9], p[10], p[12]

	bpp := int(depth)
	if n, ok := pngChannels[colorType]; ok {
		bpp *= n
	}

	tech := info.Group(metainfo.GroupTechnical)
	tech.Append("Resolution", metainfo.Size{Width: int(width), Height: int(height)})
	tech.Append("Bitdepth", bpp)
	if mode, ok := pngColorModes[colorType]; ok {
		tech.Append("Color mode", mode)
	} else {
		tech.Append("Color mode", "Unknown")
	}
	if compression == 0 {
		tech.Append("Compression", "deflate")
	} else {
		tech.Append("Compression", "Unknown")
	}
	switch interlace {
	case 0:
		tech.Append("Interlace", "None")
	case 1:
		tech.Append("Interlace", "Adam7")
	default:
		tech.Append("Interlace", "Unknown")
	}

	comments := info.Group(metainfo.GroupComment)
	return s.Walk(func(c chunk.Chunk) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		var key, text string
		var err error
		switch c.Tag {
		case "tEXt":
			key, text, err = pngText(c.Payload)
		case "zTXt":
			key, text, err = pngCompressedText(c.Payload)
		case "iTXt":
			key, text, err = pngInternationalText(c.Payload)
		default:
			return nil
		}
		if err != nil {
			logger.Debug("png: skipping %s chunk at offset %d: %v", c.Tag, c.Offset, err)
			return nil
		}
		comments.Append(key, text)
		return nil
	})
}

func splitKeyword(p []byte) (string, []byte, error) {
	i := bytes.IndexByte(p, 0)
	if i < 1 || i > 79 {
		return "", nil, fmt.Errorf("invalid keyword")
	}
	return latin1(p[:i]), p[i+1:], nil
}

func pngText(p []byte) (string, string, error) {
	key, rest, err := splitKeyword(p)
	if err != nil {
		return "", "", err
	}
	return key, latin1(rest), nil
}

func pngCompressedText(p []byte) (string, string, error) {
	key, rest, err := splitKeyword(p)
	if err != nil {
		return "", "", err
	}
	if len(rest) < 1 || rest[0] != 0 {
		return "", "", fmt.Errorf("unknown compression method")
	}
	raw, err := inflate(rest[1:])
	if err != nil {
		return "", "", err
	}
	return key, latin1(raw), nil
}

func pngInternationalText(p []byte) (string, string, error) {
	key, rest, err := splitKeyword(p)
	if err != nil {
		return "", "", err
	}
	if len(rest) < 2 {
		return "", "", fmt.Errorf("truncated iTXt header")
	}
	compressed, method := rest[0] == 1, rest[1]
	rest = rest[2:]
	// language tag and translated keyword
	for i := 0; i < 2; i++ {
		j := bytes.IndexByte(rest, 0)
		if j < 0 {
			return "", "", fmt.Errorf("truncated iTXt header")
		}
		rest = rest[j+1:]
	}
	if !compressed {
		return key, string(rest), nil
	}
	if method != 0 {
		return "", "", fmt.Errorf("unknown compression method")
	}
	raw, err := inflate(rest)
	if err != nil {
		return "", "", err
	}
	return key, string(raw), nil
}

func inflate(b []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(io.LimitReader(zr, maxInflatedText))
}
