// Package filemeta extracts descriptive metadata from image and document files.
package filemeta

import (
	"context"
	"fmt"
	"io"

	lru "github.com/hashicorp/golang-lru/v2"

	metaerrors "github.com/flaneur2020/filemeta/filemeta/errors"
	"github.com/flaneur2020/filemeta/filemeta/formats"
	"github.com/flaneur2020/filemeta/filemeta/logger"
	"github.com/flaneur2020/filemeta/filemeta/metainfo"
	"github.com/flaneur2020/filemeta/filemeta/storage"
)

// DefaultCacheSize is the number of results an Extractor keeps unless WithCacheSize is given.
const DefaultCacheSize = 256

// Option configures an Extractor.
type Option func(*Extractor)

// WithFormat forces one extractor by name and skips sniffing.
func WithFormat(name string) Option {
	return func(e *Extractor) {
		e.format = name
	}
}

// WithCacheSize sets how many results are cached by content digest.
// Zero or less disables caching.
func WithCacheSize(n int) Option {
	return func(e *Extractor) {
		e.cacheSize = n
	}
}

// Extractor picks the format of a blob and runs its extractor.
// It is safe for concurrent use.
type Extractor struct {
	format    string
	cacheSize int
	cache     *lru.Cache[string, *metainfo.Info]
}

// NewExtractor creates an Extractor.
func NewExtractor(opts ...Option) (*Extractor, error) {
	e := &Extractor{cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(e)
	}
	if e.format != "" {
		if _, ok := formats.Lookup(e.format); !ok {
			return nil, metaerrors.NewUnsupportedError(e.format)
		}
	}
	if e.cacheSize > 0 {
		cache, err := lru.New[string, *metainfo.Info](e.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create result cache: %w", err)
		}
		e.cache = cache
	}
	return e, nil
}

// Extract reads the metadata of blob. The File group comes first and carries
// the name, size and content digest. When the format extractor fails, the
// fields written before the failure are returned along with the error.
func (e *Extractor) Extract(ctx context.Context, blob storage.Blob) (*metainfo.Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ex, err := e.pick(blob)
	if err != nil {
		return nil, err
	}

	dgst, err := storage.DigestOf(blob)
	if err != nil {
		return nil, metaerrors.NewIOError(0, err)
	}
	// extractors may report the source mtime, so it is part of the identity
	key := fmt.Sprintf("%s@%s@%d", ex.Name(), dgst, blob.ModTime().UnixNano())

	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			logger.Debug("cache hit for %s (%s)", blob.Name(), dgst)
			return withFileGroup(cached.Clone(), blob, dgst.String()), nil
		}
	}

	info := metainfo.New(ex.Name(), ex.MimeTypes()[0])
	logger.Info("extracting %s as %s", blob.Name(), ex.Name())
	if err := ex.Extract(ctx, blob, info); err != nil {
		info.Prune()
		return withFileGroup(info, blob, dgst.String()), err
	}
	info.Prune()

	if e.cache != nil {
		e.cache.Add(key, info.Clone())
	}
	return withFileGroup(info, blob, dgst.String()), nil
}

// pick returns the forced extractor or sniffs one from the blob name and head.
func (e *Extractor) pick(blob storage.Blob) (formats.Extractor, error) {
	if e.format != "" {
		ex, _ := formats.Lookup(e.format)
		return ex, nil
	}

	head := make([]byte, min(blob.Size(), formats.SniffLen))
	if _, err := blob.ReadAt(head, 0); err != nil && err != io.EOF {
		return nil, metaerrors.NewIOError(0, err)
	}
	ex, ok := formats.Sniff(blob.Name(), head)
	if !ok {
		return nil, metaerrors.NewUnsupportedError(blob.Name())
	}
	logger.Debug("sniffed %s as %s", blob.Name(), ex.Name())
	return ex, nil
}

func withFileGroup(info *metainfo.Info, blob storage.Blob, dgst string) *metainfo.Info {
	file := &metainfo.Group{Name: metainfo.GroupFile}
	file.Append("Name", blob.Name())
	file.Append("Size", blob.Size())
	file.Append("Digest", dgst)
	info.Groups = append([]*metainfo.Group{file}, info.Groups...)
	return info
}
