package formats

import (
	"context"
	"encoding/xml"
	"image"
	_ "image/png"
	"io"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
	"golang.org/x/net/html/charset"

	metaerrors "github.com/flaneur2020/filemeta/filemeta/errors"
	"github.com/flaneur2020/filemeta/filemeta/logger"
	"github.com/flaneur2020/filemeta/filemeta/metainfo"
)

const (
	xpsRelsPart = "_rels/.rels"

	xpsRelFixedRepresentation = "http://schemas.microsoft.com/xps/2005/06/fixedrepresentation"
	xpsRelCoreProperties      = "http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties"
	xpsRelThumbnail           = "http://schemas.openxmlformats.org/package/2006/relationships/metadata/thumbnail"

	// maxXPSPart bounds the bytes read from one package part.
	maxXPSPart = 8 << 20
)

type xpsRelationships struct {
	Relationships []struct {
		Type   string `xml:"Type,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

type xpsDocumentSequence struct {
	References []struct {
		Source string `xml:"Source,attr"`
	} `xml:"DocumentReference"`
}

type xpsCoreProperties struct {
	Title       string `xml:"title"`
	Subject     string `xml:"subject"`
	Description string `xml:"description"`
	Creator     string `xml:"creator"`
	Keywords    string `xml:"keywords"`
	Created     string `xml:"created"`
	Modified    string `xml:"modified"`
}

type xpsExtractor struct{}

func (xpsExtractor) Name() string { return "xps" }
func (xpsExtractor) MimeTypes() []string {
	return []string{"application/vnd.ms-xpsdocument", "application/oxps"}
}
func (xpsExtractor) Extensions() []string { return []string{"xps", "oxps"} }

func (xpsExtractor) Match(head []byte) bool {
	return hasAnyPrefix(head, "PK\x03\x04")
}

func (xpsExtractor) Extract(ctx context.Context, src Source, info *metainfo.Info) error {
	zr, err := zip.NewReader(src, src.Size())
	if err != nil {
		return metaerrors.ErrFormat.
			WithMessage("not a zip package").
			WithDetail("format", "xps").
			WithCause(err)
	}

	var rels xpsRelationships
	if err := decodeXPSPart(zr, xpsRelsPart, &rels); err != nil {
		return err
	}
	var fixedRep, coreProps, thumb string
	for _, r := range rels.Relationships {
		switch r.Type {
		case xpsRelFixedRepresentation:
			fixedRep = r.Target
		case xpsRelCoreProperties:
			coreProps = r.Target
		case xpsRelThumbnail:
			thumb = r.Target
		}
	}
	if fixedRep == "" {
		return metaerrors.NewFormatError("xps", "no fixed representation")
	}

	var seq xpsDocumentSequence
	if err := decodeXPSPart(zr, fixedRep, &seq); err != nil {
		return err
	}

	general := info.Group(metainfo.GroupGeneral)
	if coreProps != "" {
		var props xpsCoreProperties
		if err := decodeXPSPart(zr, coreProps, &props); err != nil {
			return err
		}
		appendXPSProperties(general, props)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if thumb != "" {
		if size, err := xpsThumbnailSize(zr, thumb); err == nil {
			general.Append("ThumbnailDimensions", size)
		} else {
			logger.Debug("xps: skipping thumbnail %s in %s: %v", thumb, src.Name(), err)
		}
	}
	general.Append("Documents", len(seq.References))
	return nil
}

func appendXPSProperties(g *metainfo.Group, p xpsCoreProperties) {
	for _, kv := range []struct{ key, value string }{
		{"Title", p.Title},
		{"Subject", p.Subject},
		{"Description", p.Description},
		{"Author", p.Creator},
		{"Keywords", p.Keywords},
	} {
		if v := strings.TrimSpace(kv.value); v != "" {
			g.Append(kv.key, v)
		}
	}
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(p.Created)); err == nil {
		g.Append("CreationDate", t)
	}
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(p.Modified)); err == nil {
		g.Append("ModificationDate", t)
	}
}

// openXPSPart opens a package part by its absolute or relative part name.
// Part names compare case-insensitively.
func openXPSPart(zr *zip.Reader, name string) (io.ReadCloser, error) {
	name = path.Clean(strings.TrimPrefix(name, "/"))
	for _, f := range zr.File {
		if !strings.EqualFold(strings.TrimPrefix(f.Name, "/"), name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, metaerrors.ErrFormat.
				WithMessage("unreadable part "+name).
				WithDetail("format", "xps").
				WithCause(err)
		}
		return rc, nil
	}
	return nil, metaerrors.NewFormatError("xps", "missing part "+name)
}

func decodeXPSPart(zr *zip.Reader, name string, v interface{}) error {
	f, err := openXPSPart(zr, name)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := xml.NewDecoder(io.LimitReader(f, maxXPSPart))
	dec.CharsetReader = charset.NewReaderLabel
	if err := dec.Decode(v); err != nil {
		return metaerrors.ErrFormat.
			WithMessage("malformed part "+name).
			WithDetail("format", "xps").
			WithCause(err)
	}
	return nil
}

func xpsThumbnailSize(zr *zip.Reader, name string) (metainfo.Size, error) {
	f, err := openXPSPart(zr, name)
	if err != nil {
		return metainfo.Size{}, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(io.LimitReader(f, maxXPSPart))
	if err != nil {
		return metainfo.Size{}, err
	}
	return metainfo.Size{Width: cfg.Width, Height: cfg.Height}, nil
}
