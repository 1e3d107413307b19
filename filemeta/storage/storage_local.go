package storage

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	metaerrors "github.com/flaneur2020/filemeta/filemeta/errors"
	"github.com/flaneur2020/filemeta/filemeta/logger"
)

// LocalStorage serves files from the local filesystem. Directories given as
// roots are walked recursively.
type LocalStorage struct {
	roots []string
}

// NewLocalStorage creates a filesystem-backed storage over the given paths.
func NewLocalStorage(roots ...string) *LocalStorage {
	return &LocalStorage{roots: roots}
}

// List returns descriptors for every regular file under the roots, sorted by name.
func (s *LocalStorage) List(ctx context.Context) ([]Descriptor, error) {
	var descs []Descriptor
	seen := make(map[string]bool)

	add := func(path string, info fs.FileInfo) {
		if seen[path] || !info.Mode().IsRegular() {
			return
		}
		seen[path] = true
		descs = append(descs, Descriptor{Name: path, Size: info.Size(), ModTime: info.ModTime()})
	}

	for _, root := range s.roots {
		info, err := os.Stat(root)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, metaerrors.NewNotFoundError(root)
			}
			return nil, metaerrors.NewIOError(0, err)
		}
		if !info.IsDir() {
			add(root, info)
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				logger.Warn("skipping %s: %v", path, err)
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				logger.Warn("skipping %s: %v", path, err)
				return nil
			}
			add(path, info)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Slice(descs, func(i, j int) bool { return descs[i].Name < descs[j].Name })
	return descs, nil
}

// Open opens a regular file for reading.
func (s *LocalStorage) Open(ctx context.Context, name string) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, metaerrors.NewNotFoundError(name)
		}
		return nil, metaerrors.NewIOError(0, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, metaerrors.NewIOError(0, err)
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, metaerrors.ErrIO.WithMessage("not a regular file").WithDetail("name", name)
	}
	return &fileBlob{File: f, name: name, size: info.Size(), modTime: info.ModTime()}, nil
}

type fileBlob struct {
	*os.File
	name    string
	size    int64
	modTime time.Time
}

func (b *fileBlob) Name() string       { return b.name }
func (b *fileBlob) Size() int64        { return b.size }
func (b *fileBlob) ModTime() time.Time { return b.modTime }
