package formats

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/mknote"

	metaerrors "github.com/flaneur2020/filemeta/filemeta/errors"
	"github.com/flaneur2020/filemeta/filemeta/logger"
	"github.com/flaneur2020/filemeta/filemeta/metainfo"
)

func init() {
	exif.RegisterParsers(mknote.All...)
}

var flashModes = map[int]string{
	0x00: "No",
	0x01: "Fired",
	0x05: "Fired (?)",
	0x07: "Fired (!)",
	0x09: "Fill Fired",
	0x0d: "Fill Fired (?)",
	0x0f: "Fill Fired (!)",
	0x10: "Off",
	0x18: "Auto Off",
	0x19: "Auto Fired",
	0x1d: "Auto Fired (?)",
	0x1f: "Auto Fired (!)",
	0x20: "Not Available",
}

var whiteBalances = map[int]string{
	0:   "Unknown",
	1:   "Daylight",
	2:   "Fluorescent",
	3:   "Tungsten",
	17:  "Standard light A",
	18:  "Standard light B",
	19:  "Standard light C",
	20:  "D55",
	21:  "D65",
	22:  "D75",
	255: "Other",
}

var meteringModes = map[int]string{
	0:   "Unknown",
	1:   "Average",
	2:   "Center weighted average",
	3:   "Spot",
	4:   "MultiSpot",
	5:   "Pattern",
	6:   "Partial",
	255: "Other",
}

var exposurePrograms = map[int]string{
	0: "Not defined",
	1: "Manual",
	2: "Normal program",
	3: "Aperture priority",
	4: "Shutter priority",
	5: "Creative program (biased toward depth of field)",
	6: "Action program (biased toward fast shutter speed)",
	7: "Portrait mode (for closeup photos with the background out of focus)",
	8: "Landscape mode (for landscape photos with the background in focus)",
}

// decodeExif parses the EXIF/TIFF structure of src.
func decodeExif(src Source, format string) (*exif.Exif, error) {
	return decodeExifReader(io.NewSectionReader(src, 0, src.Size()), src.Name(), format)
}

// decodeExifReader parses a JPEG or TIFF stream. goexif panics on some
// malformed inputs; those surface as format errors.
func decodeExifReader(r io.Reader, name, format string) (x *exif.Exif, err error) {
	defer func() {
		if r := recover(); r != nil {
			x, err = nil, metaerrors.NewFormatError(format, fmt.Sprintf("exif decoder panic: %v", r))
		}
	}()

	x, err = exif.Decode(r)
	if err != nil {
		if x != nil && !exif.IsCriticalError(err) {
			logger.Debug("%s: partial exif in %s: %v", format, name, err)
			return x, nil
		}
		return nil, metaerrors.ErrFormat.
			WithMessage("no usable exif data").
			WithDetail("format", format).
			WithCause(err)
	}
	return x, nil
}

func exifString(x *exif.Exif, f exif.FieldName) (string, bool) {
	tag, err := x.Get(f)
	if err != nil {
		return "", false
	}
	s, err := tag.StringVal()
	if err != nil {
		return "", false
	}
	s = strings.TrimSpace(strings.TrimRight(s, "\x00"))
	return s, s != ""
}

func exifInt(x *exif.Exif, f exif.FieldName) (int, bool) {
	tag, err := x.Get(f)
	if err != nil {
		return 0, false
	}
	v, err := tag.Int(0)
	if err != nil {
		return 0, false
	}
	return v, true
}

func exifRat(x *exif.Exif, f exif.FieldName) (float64, bool) {
	tag, err := x.Get(f)
	if err != nil {
		return 0, false
	}
	num, den, err := tag.Rat2(0)
	if err != nil || den == 0 {
		return 0, false
	}
	return float64(num) / float64(den), true
}

func exifDateTime(x *exif.Exif) (string, bool) {
	if s, ok := exifString(x, exif.DateTimeOriginal); ok {
		return s, true
	}
	return exifString(x, exif.DateTime)
}

func appendLookup(g *metainfo.Group, key string, table map[int]string, v int) {
	if name, ok := table[v]; ok {
		g.Append(key, name)
		return
	}
	g.Append(key, fmt.Sprintf("Unknown (%d)", v))
}

// appendCameraExif writes the camera settings carried by an EXIF block.
func appendCameraExif(x *exif.Exif, g *metainfo.Group) {
	if s, ok := exifString(x, exif.Make); ok {
		g.Append("Camera make", s)
	}
	if s, ok := exifString(x, exif.Model); ok {
		g.Append("Camera model", s)
	}
	if s, ok := exifDateTime(x); ok {
		g.Append("Date/Time", s)
	}
	if v, ok := exifInt(x, exif.Orientation); ok && v != 0 {
		g.Append("Orientation", v)
	}
	if v, ok := exifInt(x, exif.Flash); ok {
		appendLookup(g, "Flash used", flashModes, v)
	}
	focal, hasFocal := exifRat(x, exif.FocalLength)
	if hasFocal && focal != 0 {
		g.Append("Focal length", fmt.Sprintf("%4.1f mm", focal))
	}
	ccd, hasCCD := exifCCDWidth(x)
	if v, ok := exifInt(x, exif.FocalLengthIn35mmFilm); ok && v != 0 {
		g.Append("35mm equivalent", fmt.Sprintf("%d mm", v))
	} else if hasFocal && focal != 0 && hasCCD {
		g.Append("35mm equivalent", fmt.Sprintf("%d mm", int(focal/ccd*35+0.5)))
	}
	if hasCCD {
		g.Append("CCD Width", fmt.Sprintf("%4.2f mm", ccd))
	}
	if v, ok := exifRat(x, exif.ExposureTime); ok && v != 0 {
		g.Append("Exposure time", formatExposure(v))
	}
	if v, ok := exifRat(x, exif.FNumber); ok && v != 0 {
		g.Append("Aperture", fmt.Sprintf("f/%3.1f", v))
	}
	if v, ok := exifRat(x, exif.SubjectDistance); ok && v != 0 {
		if v < 0 || math.IsInf(v, 0) || v >= 0xffffffff {
			g.Append("Focus Dist.", "Infinite")
		} else {
			g.Append("Focus Dist.", fmt.Sprintf("%5.2fm", v))
		}
	}
	if v, ok := exifRat(x, exif.ExposureBiasValue); ok && v != 0 {
		g.Append("Exposure bias", fmt.Sprintf("%4.2f", v))
	}
	if v, ok := exifInt(x, exif.WhiteBalance); ok {
		appendLookup(g, "Whitebalance", whiteBalances, v)
	}
	if v, ok := exifInt(x, exif.LightSource); ok && v != 0 {
		appendLookup(g, "Light source", whiteBalances, v)
	}
	if v, ok := exifInt(x, exif.MeteringMode); ok {
		appendLookup(g, "Metering Mode", meteringModes, v)
	}
	if v, ok := exifInt(x, exif.ExposureProgram); ok && v != 0 {
		appendLookup(g, "Exposure", exposurePrograms, v)
	}
	if v, ok := exifInt(x, exif.ISOSpeedRatings); ok && v != 0 {
		g.Append("ISO equiv.", fmt.Sprintf("%2d", v))
	}
	if s, ok := exifUserComment(x); ok {
		g.Append("UserComment", s)
	}
}

// focal plane resolution units in millimetres, keyed by FocalPlaneResolutionUnit
var focalPlaneUnits = map[int]float64{
	1: 25.4,
	2: 25.4,
	3: 10,
	4: 1,
	5: 0.001,
}

// exifCCDWidth derives the sensor width in millimetres from the larger pixel
// dimension and the focal plane resolution. A missing unit means inches.
func exifCCDWidth(x *exif.Exif) (float64, bool) {
	res, ok := exifRat(x, exif.FocalPlaneXResolution)
	if !ok || res <= 0 {
		return 0, false
	}
	unit := 2
	if v, ok := exifInt(x, exif.FocalPlaneResolutionUnit); ok {
		unit = v
	}
	mm, ok := focalPlaneUnits[unit]
	if !ok {
		return 0, false
	}
	w, _ := exifInt(x, exif.PixelXDimension)
	h, _ := exifInt(x, exif.PixelYDimension)
	if px := max(w, h); px > 0 {
		return float64(px) * mm / res, true
	}
	return 0, false
}

// formatExposure renders seconds with the reciprocal for fast shutter speeds.
func formatExposure(v float64) string {
	s := fmt.Sprintf("%6.3f", v)
	if v <= 0.5 {
		s += fmt.Sprintf(" (1/%d)", int(0.5+1/v))
	}
	return s
}

// exifUserComment decodes the UserComment field, which starts with an
// 8-byte character code.
func exifUserComment(x *exif.Exif) (string, bool) {
	tag, err := x.Get(exif.UserComment)
	if err != nil || len(tag.Val) <= 8 {
		return "", false
	}
	code, body := string(tag.Val[:8]), tag.Val[8:]
	var s string
	switch {
	case strings.HasPrefix(code, "ASCII"):
		s = string(body)
	case strings.HasPrefix(code, "UNICODE"):
		s = decodeUCS2(body, x.Tiff.Order.Uint16)
	default:
		s = latin1(body)
	}
	s = strings.TrimSpace(strings.TrimRight(s, "\x00 "))
	return s, s != ""
}

func decodeUCS2(b []byte, uint16Of func([]byte) uint16) string {
	var sb strings.Builder
	for i := 0; i+1 < len(b); i += 2 {
		r := rune(uint16Of(b[i : i+2]))
		if r == 0 {
			break
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
