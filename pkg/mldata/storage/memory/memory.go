// Package memory provides an in-memory BlobStore, used in tests and when
// the server runs without object storage.
package memory

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/tsi-mlops/mldata/pkg/mldata"
)

// Backend is an in-memory implementation of the mldata.BlobStore interface
type Backend struct {
	mu              sync.RWMutex
	objects         map[string][]byte
	objectsMimeType map[string]string
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		objects:         make(map[string][]byte),
		objectsMimeType: make(map[string]string),
	}
}

// Upload stores the blob directly
func (b *Backend) Upload(ctx context.Context, objectKey string, reader io.Reader) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[objectKey] = data
	if _, exists := b.objectsMimeType[objectKey]; !exists {
		b.objectsMimeType[objectKey] = "application/octet-stream"
	}
	return nil
}

// UploadWithParams stores the blob along with its MIME type
func (b *Backend) UploadWithParams(ctx context.Context, reader io.Reader, params mldata.UploadParams) error {
	if err := b.Upload(ctx, params.ObjectKey, reader); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.objectsMimeType[params.ObjectKey] = params.MimeType
	return nil
}

// Download streams the blob back
func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.objects[objectKey]
	if !exists {
		return nil, mldata.ErrFileNotFound
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete removes the blob. Deleting a missing key is a no-op.
func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.objects, objectKey)
	delete(b.objectsMimeType, objectKey)
	return nil
}

// ListKeys returns every stored object key
func (b *Backend) ListKeys(ctx context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.objects))
	for key := range b.objects {
		keys = append(keys, key)
	}
	return keys, nil
}
