package storage

import (
	"context"
	"io"
	"time"

	"github.com/opencontainers/go-digest"
)

// Descriptor describes a file available from storage.
type Descriptor struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Blob is an open random-access byte source of known size.
type Blob interface {
	io.ReaderAt
	io.Closer
	Name() string
	Size() int64
	ModTime() time.Time
}

// Storage abstracts file enumeration and ranged reads.
type Storage interface {
	List(ctx context.Context) ([]Descriptor, error)
	Open(ctx context.Context, name string) (Blob, error)
}

// DigestOf computes the canonical content digest of a blob.
func DigestOf(b Blob) (digest.Digest, error) {
	return digest.Canonical.FromReader(io.NewSectionReader(b, 0, b.Size()))
}
