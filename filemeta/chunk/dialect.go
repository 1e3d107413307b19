package chunk

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	metaerrors "github.com/flaneur2020/filemeta/filemeta/errors"
)

// Framing describes how a chunk payload is laid out after its header.
type Framing int

const (
	// Fixed payloads are Length contiguous bytes.
	Fixed Framing = iota
	// SubBlocks payloads are Length fixed bytes followed by 1-byte length-prefixed
	// sub-blocks ending at a zero-length sub-block (GIF data blocks).
	SubBlocks
)

// Header is a decoded chunk header.
type Header struct {
	Tag      string
	Type     string
	Length   int
	Trailer  int
	Framing  Framing
	Terminal bool
}

// Dialect describes the chunk layout of one container format.
type Dialect interface {
	Name() string
	// Signature validates and consumes the container signature and any fixed preamble.
	Signature(c *Cursor) error
	// Header reads the next chunk header at the cursor.
	Header(c *Cursor) (Header, error)
}

// LengthPrefixed is a dialect descriptor for containers whose chunks are a length
// field and a fixed-width tag, optionally followed by a trailer such as a CRC.
type LengthPrefixed struct {
	Label       string
	Magic       []byte
	LengthSize  int
	TagSize     int
	Order       binary.ByteOrder
	LengthFirst bool
	TrailerSize int
	Terminal    string
}

func (d *LengthPrefixed) Name() string { return d.Label }

func (d *LengthPrefixed) Signature(c *Cursor) error {
	return expectMagic(c, d.Label, d.Magic)
}

func (d *LengthPrefixed) Header(c *Cursor) (Header, error) {
	var n uint64
	var tag string
	if d.LengthFirst {
		n = c.Uint(d.LengthSize, d.Order)
		tag = string(c.Bytes(d.TagSize))
	} else {
		tag = string(c.Bytes(d.TagSize))
		n = c.Uint(d.LengthSize, d.Order)
	}
	if err := c.Err(); err != nil {
		return Header{}, err
	}
	if n > math.MaxInt32 {
		return Header{}, metaerrors.NewFormatError(d.Label, fmt.Sprintf("chunk %q length %d out of range", tag, n))
	}
	return Header{
		Tag:      tag,
		Length:   int(n),
		Trailer:  d.TrailerSize,
		Terminal: d.Terminal != "" && tag == d.Terminal,
	}, nil
}

func expectMagic(c *Cursor, format string, magic []byte) error {
	if c.Remaining() < int64(len(magic)) {
		return metaerrors.NewFormatError(format, "source shorter than signature")
	}
	if !bytes.Equal(c.Bytes(len(magic)), magic) {
		if err := c.Err(); err != nil {
			return err
		}
		return metaerrors.NewFormatError(format, "signature mismatch")
	}
	return c.Err()
}

// PNG chunks: BE32 length, 4-byte type, payload, CRC32. Iteration stops at IEND.
var PNG Dialect = &LengthPrefixed{
	Label:       "png",
	Magic:       []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'},
	LengthSize:  4,
	TagSize:     4,
	Order:       binary.BigEndian,
	LengthFirst: true,
	TrailerSize: 4,
	Terminal:    "IEND",
}

// GIF block tags.
const (
	GIFImage          = "\x2c"
	GIFTrailer        = "\x3b"
	GIFPlainText      = "\x21\x01"
	GIFGraphicControl = "\x21\xf9"
	GIFComment        = "\x21\xfe"
	GIFApplication    = "\x21\xff"
)

// GIFColorTableSize returns the byte size of a colour table described by a packed field.
func GIFColorTableSize(packed byte) int {
	return 3 * (2 << (packed & 0x07))
}

type gifDialect struct{}

// GIF yields image descriptors (tag GIFImage, payload: descriptor, local colour
// table, LZW code size, then the image data) and extensions (tag 0x21 + label,
// payload: sub-block data). The trailer byte ends iteration.
var GIF Dialect = gifDialect{}

func (gifDialect) Name() string { return "gif" }

func (gifDialect) Signature(c *Cursor) error {
	if c.Remaining() < 13 {
		return metaerrors.NewFormatError("gif", "source shorter than header")
	}
	magic := c.Bytes(6)
	if !bytes.Equal(magic, []byte("GIF87a")) && !bytes.Equal(magic, []byte("GIF89a")) {
		return metaerrors.NewFormatError("gif", "signature mismatch")
	}
	c.Skip(4) // logical screen width, height
	packed := c.U8()
	c.Skip(2) // background colour, aspect ratio
	if packed&0x80 != 0 {
		c.Skip(int64(GIFColorTableSize(packed)))
	}
	return c.Err()
}

func (gifDialect) Header(c *Cursor) (Header, error) {
	b := c.U8()
	if err := c.Err(); err != nil {
		return Header{}, err
	}
	switch b {
	case 0x3b:
		return Header{Tag: GIFTrailer, Terminal: true}, nil
	case 0x2c:
		desc := c.Peek(9)
		if err := c.Err(); err != nil {
			return Header{}, err
		}
		n := 9
		if desc[8]&0x80 != 0 {
			n += GIFColorTableSize(desc[8])
		}
		// +1 for the LZW minimum code size preceding the data sub-blocks
		return Header{Tag: GIFImage, Length: n + 1, Framing: SubBlocks}, nil
	case 0x21:
		label := c.U8()
		if err := c.Err(); err != nil {
			return Header{}, err
		}
		return Header{Tag: string([]byte{0x21, label}), Framing: SubBlocks}, nil
	}
	return Header{}, metaerrors.NewFormatError("gif", fmt.Sprintf("unknown block 0x%02x at offset %d", b, c.Pos()-1))
}

// JPEG marker tags.
const (
	JPEGComment = "\xfe"
	JPEGAPP1    = "\xe1"
	JPEGSOS     = "\xda"
	JPEGEOI     = "\xd9"
)

// IsSOF reports whether a marker starts a frame (SOF0..SOF15 except DHT, JPG and DAC).
func IsSOF(marker byte) bool {
	if marker < 0xc0 || marker > 0xcf {
		return false
	}
	return marker != 0xc4 && marker != 0xc8 && marker != 0xcc
}

type jpegDialect struct{}

// JPEG yields marker segments with the marker byte as tag. Standalone markers have
// empty payloads. Start of scan and end of image end iteration, so entropy-coded
// data is never walked.
var JPEG Dialect = jpegDialect{}

func (jpegDialect) Name() string { return "jpeg" }

func (jpegDialect) Signature(c *Cursor) error {
	return expectMagic(c, "jpeg", []byte{0xff, 0xd8})
}

func (jpegDialect) Header(c *Cursor) (Header, error) {
	start := c.Pos()
	if b := c.U8(); b != 0xff {
		if err := c.Err(); err != nil {
			return Header{}, err
		}
		return Header{}, metaerrors.NewFormatError("jpeg", fmt.Sprintf("expected marker at offset %d, got 0x%02x", start, b))
	}
	m := c.U8()
	for m == 0xff {
		m = c.U8()
	}
	if err := c.Err(); err != nil {
		return Header{}, err
	}

	h := Header{Tag: string([]byte{m})}
	switch {
	case m == 0xd9 || m == 0xda:
		h.Terminal = true
		return h, nil
	case m == 0x01 || (m >= 0xd0 && m <= 0xd7):
		return h, nil
	}

	n := c.U16(binary.BigEndian)
	if err := c.Err(); err != nil {
		return Header{}, err
	}
	if n < 2 {
		return Header{}, metaerrors.NewFormatError("jpeg", fmt.Sprintf("segment 0x%02x length %d below minimum", m, n))
	}
	h.Length = int(n) - 2
	return h, nil
}

// EXRMagic is the OpenEXR signature.
var EXRMagic = []byte{0x76, 0x2f, 0x31, 0x01}

const exrNameMax = 255

type exrDialect struct{}

// EXR yields header attributes: tag is the attribute name, Type its type name,
// payload its value. The empty name closing the header ends iteration.
var EXR Dialect = exrDialect{}

func (exrDialect) Name() string { return "exr" }

func (exrDialect) Signature(c *Cursor) error {
	if c.Remaining() < 8 {
		return metaerrors.NewFormatError("exr", "source shorter than header")
	}
	if err := expectMagic(c, "exr", EXRMagic); err != nil {
		return err
	}
	c.Skip(4) // version and flags
	return c.Err()
}

func (exrDialect) Header(c *Cursor) (Header, error) {
	name := c.CString(exrNameMax)
	if err := c.Err(); err != nil {
		return Header{}, err
	}
	if name == "" {
		return Header{Terminal: true}, nil
	}
	typ := c.CString(exrNameMax)
	size := c.I32(binary.LittleEndian)
	if err := c.Err(); err != nil {
		return Header{}, err
	}
	if size < 0 {
		return Header{}, metaerrors.NewFormatError("exr", fmt.Sprintf("attribute %q has negative size %d", name, size))
	}
	return Header{Tag: name, Type: typ, Length: int(size)}, nil
}

// Dialects lists the built-in dialects by name.
var Dialects = map[string]Dialect{
	"png":  PNG,
	"gif":  GIF,
	"jpeg": JPEG,
	"exr":  EXR,
}
