package storage

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/opencontainers/go-digest"

	metaerrors "github.com/flaneur2020/filemeta/filemeta/errors"
)

// MockStorage is a simple in-memory Storage implementation for tests.
type MockStorage struct {
	mu      sync.RWMutex
	blobs   map[string][]byte
	digests map[string]digest.Digest
	modTime time.Time
}

// NewMockStorage constructs an empty MockStorage.
func NewMockStorage() *MockStorage {
	return &MockStorage{
		blobs:   make(map[string][]byte),
		digests: make(map[string]digest.Digest),
		modTime: time.Date(2020, 1, 2, 3, 4, 0, 0, time.UTC),
	}
}

// List returns descriptors for all stored blobs, sorted by name.
func (m *MockStorage) List(ctx context.Context) ([]Descriptor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	descs := make([]Descriptor, 0, len(m.blobs))
	for name, data := range m.blobs {
		descs = append(descs, Descriptor{
			Name:    name,
			Size:    int64(len(data)),
			ModTime: m.modTime,
		})
	}
	sort.Slice(descs, func(i, j int) bool { return descs[i].Name < descs[j].Name })
	return descs, nil
}

// Open returns a reader over the named blob.
func (m *MockStorage) Open(ctx context.Context, name string) (Blob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.blobs[name]
	if !ok {
		return nil, metaerrors.NewNotFoundError(name)
	}
	return &memBlob{Reader: bytes.NewReader(data), name: name, modTime: m.modTime}, nil
}

// AddBlob stores a copy of data under name and returns its digest.
func (m *MockStorage) AddBlob(name string, data []byte) digest.Digest {
	m.mu.Lock()
	defer m.mu.Unlock()

	dgst := digest.FromBytes(data)
	m.blobs[name] = append([]byte(nil), data...)
	m.digests[name] = dgst
	return dgst
}

// Digest returns the digest recorded for name.
func (m *MockStorage) Digest(name string) (digest.Digest, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	dgst, ok := m.digests[name]
	return dgst, ok
}

type memBlob struct {
	*bytes.Reader
	name    string
	modTime time.Time
}

// NewBytesBlob wraps an in-memory buffer as a Blob.
func NewBytesBlob(name string, data []byte) Blob {
	return &memBlob{Reader: bytes.NewReader(data), name: name}
}

func (b *memBlob) Name() string       { return b.name }
func (b *memBlob) ModTime() time.Time { return b.modTime }
func (b *memBlob) Close() error       { return nil }
