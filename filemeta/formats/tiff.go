package formats

import (
	"context"
	"time"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/flaneur2020/filemeta/filemeta/metainfo"
)

const groupScanner = "Scanner"

// TIFF resolution units.
const (
	tiffResUnitNone = 1
	tiffResUnitCM   = 3
)

var tiffColorModes = map[int]string{
	0:     "Monochrome",
	1:     "Monochrome",
	2:     "RGB",
	3:     "Palette color",
	4:     "Transparency mask",
	5:     "Color separations",
	6:     "YCbCr",
	8:     "CIE Lab",
	10:    "ITU Lab",
	32844: "LOGL",
	32845: "LOGLUV",
}

var tiffCompressions = map[int]string{
	1:     "None",
	2:     "RLE",
	3:     "G3 Fax",
	4:     "G4 Fax",
	5:     "LZW",
	6:     "JPEG",
	7:     "JPEG DCT",
	8:     "Adobe Deflate",
	32766: "NeXT 2-bit RLE",
	32771: "RLE Word",
	32773: "Packbits",
	32809: "Thunderscan RLE",
	32895: "IT8 CT w/padding",
	32896: "IT8 linework RLE",
	32897: "IT8 monochrome",
	32898: "IT8 binary lineart",
	32908: "Pixar 10-bit LZW",
	32909: "Pixar 11-bit ZIP",
	32946: "Pixar deflate",
	32947: "Kodak DCS",
	34661: "ISO JBIG",
	34676: "SGI log luminance RLE",
	34677: "SGI log 24-bit packed",
}

const tiffDateLayout = "2006:01:02 15:04:05"

type tiffExtractor struct{}

func (tiffExtractor) Name() string         { return "tiff" }
func (tiffExtractor) MimeTypes() []string  { return []string{"image/tiff"} }
func (tiffExtractor) Extensions() []string { return []string{"tif", "tiff"} }

func (tiffExtractor) Match(head []byte) bool {
	return isTIFF(head)
}

func isTIFF(head []byte) bool {
	return hasAnyPrefix(head, "II*\x00", "MM\x00*")
}

func (tiffExtractor) Extract(ctx context.Context, src Source, info *metainfo.Info) error {
	head, err := readHeader(src, "tiff", 4)
	if err != nil {
		return err
	}
	if !isTIFF(head) {
		return errBadMagic("tiff")
	}
	x, err := decodeExif(src, "tiff")
	if err != nil {
		return err
	}

	general := info.Group(metainfo.GroupGeneral)
	if s, ok := exifString(x, exif.ImageDescription); ok {
		general.Append("Description", s)
	}
	width, _ := exifInt(x, exif.ImageWidth)
	height, _ := exifInt(x, exif.ImageLength)
	general.Append("Dimensions", metainfo.Size{Width: width, Height: height})

	bps, ok := exifInt(x, exif.BitsPerSample)
	if !ok {
		bps = 1
	}
	spp, ok := exifInt(x, exif.SamplesPerPixel)
	if !ok {
		spp = 1
	}
	general.Append("BitDepth", bps*spp)

	if xr, yr, ok := tiffResolution(x); ok {
		general.Append("Resolution", metainfo.Size{Width: int(xr), Height: int(yr)})
	}
	if v, ok := exifInt(x, exif.PhotometricInterpretation); ok {
		mode, known := tiffColorModes[v]
		if v == 2 && spp == 4 {
			mode = "RGBA"
		}
		if known {
			general.Append("ColorMode", mode)
		}
	}
	compression, ok := exifInt(x, exif.Compression)
	if !ok {
		compression = 1
	}
	if name, ok := tiffCompressions[compression]; ok {
		general.Append("Compression", name)
	}
	if s, ok := exifString(x, exif.DateTime); ok {
		if t, err := time.Parse(tiffDateLayout, s); err == nil {
			general.Append("DateTime", t)
		}
	}
	if s, ok := exifString(x, exif.Copyright); ok {
		general.Append("Copyright", s)
	}
	if s, ok := exifString(x, exif.Software); ok {
		general.Append("Software", s)
	}
	if s, ok := exifString(x, exif.Artist); ok {
		general.Append("Artist", s)
	}

	scannerMake, hasMake := exifString(x, exif.Make)
	scannerModel, hasModel := exifString(x, exif.Model)
	if hasMake || hasModel {
		scanner := info.Group(groupScanner)
		if hasMake {
			scanner.Append("Make", scannerMake)
		}
		if hasModel {
			scanner.Append("Model", scannerModel)
		}
	}
	return ctx.Err()
}

// tiffResolution returns the resolution in dots per inch.
func tiffResolution(x *exif.Exif) (float64, float64, bool) {
	xr, ok1 := exifRat(x, exif.XResolution)
	yr, ok2 := exifRat(x, exif.YResolution)
	if !ok1 || !ok2 {
		return 0, 0, false
	}
	unit, ok := exifInt(x, exif.ResolutionUnit)
	if !ok {
		unit = 2
	}
	switch unit {
	case tiffResUnitNone:
		return 0, 0, false
	case tiffResUnitCM:
		xr, yr = xr*2.54, yr*2.54
	}
	return xr, yr, xr > 0 && yr > 0
}
