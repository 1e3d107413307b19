package formats

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/flaneur2020/filemeta/filemeta/chunk"
	metaerrors "github.com/flaneur2020/filemeta/filemeta/errors"
	"github.com/flaneur2020/filemeta/filemeta/metainfo"
)

const (
	exrGroupStandard = "Standard"
	exrGroupChannel  = "Channel"
	exrGroup3dsMax   = "3dsMax"

	exrTiledFlag = 0x200
)

var exrCompressions = map[byte]string{
	0: "No compression",
	1: "Run Length Encoding",
	2: "zip, individual scanlines",
	3: "zip, multi-scanline blocks",
	4: "piz compression",
	5: "pxr24",
	6: "b44",
	7: "b44a",
}

var exrLineOrders = map[byte]string{
	0: "increasing Y",
	1: "decreasing Y",
	2: "random Y",
}

var exrPixelTypes = map[int32]string{
	0: "32-bit unsigned integer",
	1: "16-bit floating-point",
	2: "32-bit floating-point",
}

// exrStandardStrings maps standard string attributes to item keys.
var exrStandardStrings = map[string]string{
	"comments": "Comments",
	"owner":    "Owner",
	"capDate":  "Capture Date",
}

// exrStandardFloats maps standard float attributes to item keys.
var exrStandardFloats = map[string]string{
	"expTime":        "Exposure time",
	"focus":          "Focus",
	"xDensity":       "X Density",
	"whiteLuminance": "White luminance",
	"isoSpeed":       "ISO speed",
	"aperture":       "Aperture",
}

var exr3dsMaxStrings = map[string]string{
	"version3dsMax": "Plugin version",
	"versionEXR":    "EXR version",
	"localTime":     "Local time",
	"systemTime":    "System time",
	"computerName":  "Computer name",
}

type exrExtractor struct{}

func (exrExtractor) Name() string         { return "exr" }
func (exrExtractor) MimeTypes() []string  { return []string{"image/x-exr"} }
func (exrExtractor) Extensions() []string { return []string{"exr"} }

func (exrExtractor) Match(head []byte) bool {
	return hasAnyPrefix(head, string(chunk.EXRMagic))
}

func (exrExtractor) Extract(ctx context.Context, src Source, info *metainfo.Info) error {
	s, err := chunk.NewScanner(src, src.Size(), chunk.EXR)
	if err != nil {
		return err
	}
	head, err := readHeader(src, "exr", 8)
	if err != nil {
		return err
	}
	version := binary.LittleEndian.Uint32(head[4:8])

	general := info.Group(metainfo.GroupGeneral)
	general.Append("Version", int(version&0xff))
	general.Append("Tiled image", version&exrTiledFlag != 0)

	return s.Walk(func(c chunk.Chunk) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return exrAttribute(info, c)
	})
}

func exrAttribute(info *metainfo.Info, c chunk.Chunk) error {
	le := binary.LittleEndian
	p := chunk.NewBytesCursor(c.Payload)
	bad := func() error {
		return metaerrors.NewFormatError("exr", fmt.Sprintf("malformed %s attribute %q", c.Type, c.Tag))
	}

	switch {
	case c.Tag == "dataWindow" && c.Type == "box2i":
		xMin, yMin, xMax, yMax := p.I32(le), p.I32(le), p.I32(le), p.I32(le)
		if p.Err() != nil {
			return bad()
		}
		info.Group(metainfo.GroupGeneral).Append("Dimensions", metainfo.Size{
			Width:  int(xMax) - int(xMin) + 1,
			Height: int(yMax) - int(yMin) + 1,
		})
	case c.Type == "preview":
		w, h := p.U32(le), p.U32(le)
		if p.Err() != nil {
			return bad()
		}
		info.Group(metainfo.GroupGeneral).Append("ThumbnailDimensions", metainfo.Size{Width: int(w), Height: int(h)})
	case c.Tag == "comment" && c.Type == "string":
		info.Group(metainfo.GroupGeneral).Append("Comment", string(c.Payload))
	case c.Tag == "compression" && c.Type == "compression":
		if len(c.Payload) != 1 {
			return bad()
		}
		if name, ok := exrCompressions[c.Payload[0]]; ok {
			info.Group(metainfo.GroupTechnical).Append("Compression", name)
		}
	case c.Tag == "lineOrder" && c.Type == "lineOrder":
		if len(c.Payload) != 1 {
			return bad()
		}
		if name, ok := exrLineOrders[c.Payload[0]]; ok {
			info.Group(metainfo.GroupTechnical).Append("Line Order", name)
		}
	case c.Type == "chlist":
		channels := info.Group(exrGroupChannel)
		for {
			name := p.CString(exrNameLimit)
			if p.Err() != nil {
				return bad()
			}
			if name == "" {
				break
			}
			typ := p.I32(le)
			p.Skip(4 + 8) // pLinear, reserved and sampling
			if p.Err() != nil {
				return bad()
			}
			if desc, ok := exrPixelTypes[typ]; ok {
				channels.Append(name, desc)
			} else {
				channels.Append(name, "Unknown")
			}
		}
	case c.Type == "string" && exrStandardStrings[c.Tag] != "":
		info.Group(exrGroupStandard).Append(exrStandardStrings[c.Tag], string(c.Payload))
	case c.Type == "string" && exr3dsMaxStrings[c.Tag] != "":
		info.Group(exrGroup3dsMax).Append(exr3dsMaxStrings[c.Tag], string(c.Payload))
	case c.Type == "float":
		v := float32Value(math.Float32frombits(p.U32(le)))
		if p.Err() != nil {
			return bad()
		}
		exrFloat(info.Group(exrGroupStandard), c.Tag, v)
	}
	return nil
}

// exrNameLimit bounds channel names.
const exrNameLimit = 255

// float32Value widens f keeping its shortest decimal form.
func float32Value(f float32) float64 {
	v, err := strconv.ParseFloat(strconv.FormatFloat(float64(f), 'g', -1, 32), 64)
	if err != nil {
		return float64(f)
	}
	return v
}

func exrFloat(g *metainfo.Group, name string, v float64) {
	switch name {
	case "utcOffset":
		if v > 0 {
			g.Append("UTC Offset", fmt.Sprintf("%.1f hours behind UTC", v/3600))
		} else {
			g.Append("UTC Offset", fmt.Sprintf("%.1f hours ahead of UTC", -v/3600))
		}
	case "longitude":
		if v < 0 {
			g.Append("Longitude", fmt.Sprintf("%.3f deg West", -v))
		} else {
			g.Append("Longitude", fmt.Sprintf("%.3f deg East", v))
		}
	case "latitude":
		if v < 0 {
			g.Append("Latitude", fmt.Sprintf("%.3f deg South", -v))
		} else {
			g.Append("Latitude", fmt.Sprintf("%.3f deg North", v))
		}
	case "altitude":
		g.Append("Altitude", fmt.Sprintf("%.1f", v))
	default:
		if key, ok := exrStandardFloats[name]; ok {
			g.Append(key, v)
		}
	}
}
