// Package formats implements one metadata extractor per file format.
package formats

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/flaneur2020/filemeta/filemeta/metainfo"
)

// SniffLen is the number of leading bytes Sniff needs.
const SniffLen = 64

// Source is a sized random-access input.
type Source interface {
	io.ReaderAt
	Name() string
	Size() int64
	ModTime() time.Time
}

// Extractor reads one format and fills an Info.
type Extractor interface {
	Name() string
	MimeTypes() []string
	Extensions() []string
	// Match reports whether head (up to SniffLen leading bytes) looks like this format.
	Match(head []byte) bool
	Extract(ctx context.Context, src Source, info *metainfo.Info) error
}

// weakMatcher is implemented by extractors whose Match is a heuristic rather than a magic number.
type weakMatcher interface {
	weakMatch()
}

var registry = struct {
	sync.RWMutex
	list   []Extractor
	byName map[string]Extractor
}{byName: make(map[string]Extractor)}

// Register adds an extractor. It panics if the name is already taken.
func Register(e Extractor) {
	registry.Lock()
	defer registry.Unlock()
	if _, dup := registry.byName[e.Name()]; dup {
		panic(fmt.Sprintf("formats: extractor %q registered twice", e.Name()))
	}
	registry.byName[e.Name()] = e
	registry.list = append(registry.list, e)
}

// Lookup returns the extractor registered under name.
func Lookup(name string) (Extractor, bool) {
	registry.RLock()
	defer registry.RUnlock()
	e, ok := registry.byName[strings.ToLower(name)]
	return e, ok
}

// All returns the registered extractors in registration order.
func All() []Extractor {
	registry.RLock()
	defer registry.RUnlock()
	return append([]Extractor(nil), registry.list...)
}

// Sniff picks the extractor for a file from its name and leading bytes.
// An extractor claiming the file extension wins when its Match accepts head;
// otherwise magic-number matches are tried before heuristic ones.
func Sniff(name string, head []byte) (Extractor, bool) {
	all := All()

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext != "" {
		for _, e := range all {
			if hasExtension(e, ext) && e.Match(head) {
				return e, true
			}
		}
	}

	for _, weak := range []bool{false, true} {
		for _, e := range all {
			if _, ok := e.(weakMatcher); ok != weak {
				continue
			}
			if e.Match(head) {
				return e, true
			}
		}
	}
	return nil, false
}

func hasExtension(e Extractor, ext string) bool {
	for _, x := range e.Extensions() {
		if x == ext {
			return true
		}
	}
	return false
}

func init() {
	for _, e := range []Extractor{
		pngExtractor{},
		gifExtractor{},
		jpegExtractor{},
		bmpExtractor{},
		ddsExtractor{},
		dviExtractor{},
		exrExtractor{},
		icoExtractor{},
		pcxExtractor{},
		pdfExtractor{},
		pnmExtractor{},
		psExtractor{},
		tiffExtractor{},
		rawExtractor{},
		rgbExtractor{},
		xbmExtractor{},
		xpmExtractor{},
		xpsExtractor{},
		tgaExtractor{},
	} {
		Register(e)
	}
}
